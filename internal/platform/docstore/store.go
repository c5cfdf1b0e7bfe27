package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Collection keys.
const (
	KeyPatients  = "patients"
	KeyApprovals = "approvals"
	KeySchemes   = "schemes"
	KeyUsers     = "users"
)

// Store serializes read-modify-write cycles against a Blob. There is no
// coordination across processes sharing the same backend.
type Store struct {
	blob   Blob
	mu     sync.Mutex
	logger zerolog.Logger
}

func New(blob Blob, logger zerolog.Logger) *Store {
	return &Store{blob: blob, logger: logger.With().Str("component", "docstore").Logger()}
}

// Ping checks that the backend answers. A missing key counts as healthy.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.blob.Get(ctx, KeyPatients)
	if err != nil && !errors.Is(err, ErrNotExist) {
		return err
	}
	return nil
}

// InTx runs fn directly. Multi-collection writes are not atomic here;
// creation paths are idempotent and reconcile repairs partial writes.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// load must be called with s.mu held.
func load[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, err := s.blob.Get(ctx, key)
	if errors.Is(err, ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if len(raw) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Int("bytes", len(raw)).
			Msg("corrupted collection, treating as empty")
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Load returns a snapshot of the collection under key. A missing or
// malformed collection reads as empty.
func Load[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[T](ctx, s, key)
}

// Mutate loads the collection, applies fn, and writes the result back. When
// fn returns an error nothing is written. fn must not call back into s.
func Mutate[T any](ctx context.Context, s *Store, key string, fn func(items []T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := load[T](ctx, s, key)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.blob.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
