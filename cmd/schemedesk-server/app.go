package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/schemedesk/schemedesk/internal/config"
	"github.com/schemedesk/schemedesk/internal/domain/approval"
	"github.com/schemedesk/schemedesk/internal/domain/identity"
	"github.com/schemedesk/schemedesk/internal/domain/patient"
	"github.com/schemedesk/schemedesk/internal/domain/scheme"
	"github.com/schemedesk/schemedesk/internal/domain/stats"
	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/internal/platform/db"
	"github.com/schemedesk/schemedesk/internal/platform/docstore"
	"github.com/schemedesk/schemedesk/internal/platform/events"
	"github.com/schemedesk/schemedesk/internal/platform/middleware"
	"github.com/schemedesk/schemedesk/internal/platform/websocket"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// backend holds the repositories for the configured store. Exactly one of
// pool and store is set.
type backend struct {
	name      string
	pool      *pgxpool.Pool
	store     *docstore.Store
	schemes   scheme.Repository
	approvals approval.Repository
	patients  patient.Repository
	users     identity.Repository
	tx        patient.TxRunner
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to database")
		return pgBackend(pool), nil
	case config.StoreFile:
		blob, err := docstore.NewFileBlob(cfg.DocstoreDir)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.DocstoreDir).Msg("using file document store")
		return docBackend(config.StoreFile, docstore.New(blob, logger)), nil
	case config.StoreS3:
		client, err := docstore.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		blob := docstore.NewS3Blob(client, cfg.DocstoreS3Bucket, cfg.DocstoreS3Prefix)
		logger.Info().Str("bucket", cfg.DocstoreS3Bucket).Msg("using s3 document store")
		return docBackend(config.StoreS3, docstore.New(blob, logger)), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func pgBackend(pool *pgxpool.Pool) *backend {
	return &backend{
		name:      config.StorePostgres,
		pool:      pool,
		schemes:   scheme.NewRepoPG(pool),
		approvals: approval.NewRepoPG(pool),
		patients:  patient.NewRepoPG(pool),
		users:     identity.NewRepoPG(pool),
		tx:        db.TxRunner{Pool: pool},
	}
}

func docBackend(name string, store *docstore.Store) *backend {
	return &backend{
		name:      name,
		store:     store,
		schemes:   scheme.NewRepoDoc(store),
		approvals: approval.NewRepoDoc(store),
		patients:  patient.NewRepoDoc(store),
		users:     identity.NewRepoDoc(store),
		tx:        store,
	}
}

func (b *backend) healthHandler() echo.HandlerFunc {
	if b.pool != nil {
		return db.PoolHealthHandler(b.pool)
	}
	return db.HealthHandler(b.name, b.store, nil)
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func openPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
		return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)), nil
	case config.EventsSQS:
		client, err := events.NewSQSClient(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("queue", cfg.SQSQueueURL).Msg("publishing events to sqs")
		return events.NewSQSPublisher(client, cfg.SQSQueueURL), nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}

type services struct {
	schemes   *scheme.Service
	approvals *approval.Service
	patients  *patient.Service
	stats     *stats.Service
	identity  *identity.Service
}

func newServices(cfg *config.Config, b *backend, publisher events.Publisher, issuer *auth.TokenIssuer, revocations *auth.TokenRevocationStore, logger zerolog.Logger) *services {
	schemeSvc := scheme.NewService(b.schemes)
	approvalSvc := approval.NewService(b.approvals, publisher, logger)
	return &services{
		schemes:   schemeSvc,
		approvals: approvalSvc,
		patients:  patient.NewService(b.patients, schemeSvc, approvalSvc, b.tx, cfg.DefaultFacilityName, logger),
		stats:     stats.NewService(b.patients, b.approvals),
		identity:  identity.NewService(b.users, issuer, revocations),
	}
}

// newServer builds the echo instance with every route registered. It does
// not start listening.
func newServer(cfg *config.Config, b *backend, svc *services, hub *websocket.Hub, jwtCfg auth.JWTConfig, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger, nil))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(rateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", b.healthHandler())

	identity.NewHandler(svc.identity).RegisterRoutes(apiV1)
	scheme.NewHandler(svc.schemes).RegisterRoutes(apiV1)
	patient.NewHandler(svc.patients).RegisterRoutes(apiV1)
	approval.NewHandler(svc.approvals).RegisterRoutes(apiV1)
	stats.NewHandler(svc.stats).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	return e
}

// rateLimiter limits each client IP to rps requests per second with the
// given burst.
func rateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		rps, burst = 100, 200
	}
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
