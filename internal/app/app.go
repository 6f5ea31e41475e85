package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/controller"
	"github.com/Evgen-Mutagen/finledger/internal/events"
	"github.com/Evgen-Mutagen/finledger/internal/events/kafka"
	"github.com/Evgen-Mutagen/finledger/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
	"github.com/Evgen-Mutagen/finledger/internal/repository/memory"
	"github.com/Evgen-Mutagen/finledger/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg       *Config
	Router    *chi.Mux
	db        *repository.Database
	Logger    *zap.Logger
	Server    *http.Server
	publisher events.Publisher
}

func New(cfg *Config, logger *zap.Logger) (*App, error) {
	app := &App{
		cfg:    cfg,
		Router: chi.NewRouter(),
		Logger: logger,
	}

	userRepo, movementRepo, err := app.initStorage()
	if err != nil {
		return nil, err
	}

	app.initPublisher()
	app.initRouter(userRepo, movementRepo)
	return app, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	a.Server = &http.Server{
		Addr:              a.cfg.RunAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server",
			zap.String("address", a.cfg.RunAddress))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down server...")
	return a.shutdown()
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func (a *App) initStorage() (repository.UserRepository, repository.MovementRepository, error) {
	if a.cfg.DatabaseDriver == DriverMemory {
		a.Logger.Warn("Using in-memory storage, movements are lost on exit")
		return memory.NewUserStore(), memory.NewMovementStore(), nil
	}

	db, err := openDatabase(a.cfg, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	a.db = db

	return repository.NewUserRepository(db), repository.NewMovementRepository(db), nil
}

// Migrate applies pending migrations for the configured SQL database.
func Migrate(cfg *Config, logger *zap.Logger) error {
	if cfg.DatabaseDriver == DriverMemory {
		return errors.New("the memory driver has no schema to migrate")
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	return db.Close()
}

func openDatabase(cfg *Config, logger *zap.Logger) (*repository.Database, error) {
	db, err := repository.NewDatabase(repository.DatabaseConfig{
		Driver:         cfg.DatabaseDriver,
		DSN:            cfg.DatabaseURI,
		MigrationsPath: cfg.MigrationsPath,
	})
	if err != nil {
		logger.Error("Database initialization failed",
			zap.String("driver", cfg.DatabaseDriver),
			zap.String("dsn", cfg.MaskDBPassword()),
			zap.Error(err))
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	logger.Info("Database initialized successfully",
		zap.String("driver", cfg.DatabaseDriver),
		zap.String("migrations_path", cfg.MigrationsPath))
	return db, nil
}

func (a *App) initPublisher() {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.publisher = events.Noop{}
		return
	}

	a.publisher = kafka.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
	a.Logger.Info("Publishing movement events",
		zap.Strings("brokers", a.cfg.KafkaBrokers),
		zap.String("topic", a.cfg.KafkaTopic))
}

func (a *App) initRouter(userRepo repository.UserRepository, movementRepo repository.MovementRepository) {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(controller.RequestLogger(a.Logger))
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.Compress(5))

	// Services
	authService := service.NewAuthService(userRepo, a.cfg.JWTSecretKey, a.cfg.TokenTTL, a.Logger)
	ledgerService := service.NewLedgerService(userRepo, movementRepo, a.publisher, a.cfg.LedgerMaxRetries, a.Logger)
	balanceService := service.NewBalanceService(userRepo, movementRepo)
	profileService := service.NewProfileService(userRepo)

	logger := a.Logger
	// Controllers
	authController := controller.NewAuthController(authService, a.cfg.TokenTTL, logger)
	profileController := controller.NewProfileController(profileService, logger)
	balanceController := controller.NewBalanceController(balanceService, logger)
	statementController := controller.NewStatementController(ledgerService, logger)

	a.Router.Get("/health", controller.Health)

	a.Router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", authController.Register)
		r.Post("/sessions", authController.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middlewareinternal.JWTAuthMiddleware(authService, logger))

			r.Get("/profile", profileController.GetProfile)
			r.Get("/statements/balance", balanceController.GetBalance)
			r.Post("/statements/deposit", statementController.Deposit)
			r.Post("/statements/withdraw", statementController.Withdraw)
			r.Post("/statements/transfers/{user_id}", statementController.Transfer)
			r.Get("/statements/{statement_id}", balanceController.GetMovement)
		})
	})
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Server.Shutdown(ctx)
}
