package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/schemedesk/schemedesk/internal/platform/docstore"
	"github.com/schemedesk/schemedesk/pkg/pagination"
)

// storedUser keeps the password hash, which User hides from JSON.
type storedUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

type repoDoc struct {
	store *docstore.Store
}

func NewRepoDoc(store *docstore.Store) Repository {
	return &repoDoc{store: store}
}

func (r *repoDoc) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now().UTC()
	return docstore.Mutate(ctx, r.store, docstore.KeyUsers, func(items []storedUser) ([]storedUser, error) {
		for _, existing := range items {
			if existing.Email == u.Email {
				return nil, ErrEmailTaken
			}
		}
		return append(items, storedUser{User: *u, PasswordHash: u.PasswordHash}), nil
	})
}

func (r *repoDoc) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, func(u *User) bool { return u.Email == email })
}

func (r *repoDoc) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.find(ctx, func(u *User) bool { return u.ID == id })
}

func (r *repoDoc) find(ctx context.Context, match func(*User) bool) (*User, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range items {
		if match(u) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *repoDoc) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	return pagination.Slice(items, limit, offset), len(items), nil
}

func (r *repoDoc) load(ctx context.Context) ([]*User, error) {
	items, err := docstore.Load[storedUser](ctx, r.store, docstore.KeyUsers)
	if err != nil {
		return nil, err
	}
	out := make([]*User, len(items))
	for i := range items {
		u := items[i].User
		u.PasswordHash = items[i].PasswordHash
		out[i] = &u
	}
	return out, nil
}
