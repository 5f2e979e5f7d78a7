package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-identity-authority/app/db"
	"github.com/FACorreiaa/go-identity-authority/app/observability/metrics"
	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api/auth"
	"github.com/FACorreiaa/go-identity-authority/internal/api/notify"
	"github.com/FACorreiaa/go-identity-authority/internal/api/oauth"
	"github.com/FACorreiaa/go-identity-authority/internal/api/otp"
	"github.com/FACorreiaa/go-identity-authority/internal/api/revocation"
	"github.com/FACorreiaa/go-identity-authority/internal/api/storage"
	"github.com/FACorreiaa/go-identity-authority/internal/api/token"
	"github.com/FACorreiaa/go-identity-authority/internal/api/user"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	AuthHandler *auth.AuthHandler
	UserHandler *user.HandlerImpl
	Resolver    *auth.SessionResolver
	Reaper      *revocation.Reaper
	// Mailbox holds the last codes sent, development mode only.
	Mailbox *notify.MemoryNotifier
}

// NewContainer opens the database pool and wires every service on top of it.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	maxWait := time.Duration(cfg.Repositories.Postgres.MAXCONWAITINGTIME) * time.Second
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, maxWait, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	c, err := Build(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.Pool = pool
	return c, nil
}

// Build wires repositories, services and handlers against db.
func Build(ctx context.Context, cfg *config.Config, db database.DBTX, logger *slog.Logger) (*Container, error) {
	metrics.InitAppMetrics()
	m := metrics.Get()

	// Tokens
	keys, err := token.NewKeyTable(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt configuration: %w", err)
	}
	issuer := token.NewIssuer(keys, cfg.JWT)

	// Repositories
	userRepo := user.NewPostgresUserRepo(db, logger)
	ledger := revocation.NewPostgresLedger(db, logger)
	challengeRepo := otp.NewPostgresChallengeRepo(db, logger)

	// Code delivery
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var mailbox *notify.MemoryNotifier
	if cfg.Mode == "development" {
		mailbox = notify.NewMemoryNotifier(cfg.OTP.TTL)
		notifier = notify.MultiNotifier{notifier, mailbox}
	}
	engine := otp.NewEngine(challengeRepo, notifier, cfg.OTP, cfg.Security.BcryptCost, logger, m)

	// External providers
	google := oauth.NewGoogleVerifier(cfg.Google, nil, logger)
	uploads, err := storage.NewS3Storage(ctx, cfg.Storage.S3, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise object storage: %w", err)
	}

	// Services
	authService := auth.NewAuthService(userRepo, issuer, ledger, engine, google, cfg.Security.BcryptCost, logger, m)
	userService := user.NewUserService(userRepo, uploads, logger, m)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		AuthHandler: auth.NewAuthHandler(authService, logger),
		UserHandler: user.NewHandlerImpl(userService, logger),
		Resolver:    auth.NewSessionResolver(issuer, userRepo, ledger, logger, m),
		Reaper:      revocation.NewReaper(ledger, cfg.Revocation.PurgeInterval, logger),
		Mailbox:     mailbox,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
