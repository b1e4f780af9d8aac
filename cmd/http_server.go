package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"github.com/imec-int/monument-plwd-sub001/internal/auth"
	"github.com/imec-int/monument-plwd-sub001/internal/carecircle"
	carecirclePostgres "github.com/imec-int/monument-plwd-sub001/internal/carecircle/postgres"
	"github.com/imec-int/monument-plwd-sub001/internal/core/events"
	"github.com/imec-int/monument-plwd-sub001/internal/diary"
	"github.com/imec-int/monument-plwd-sub001/internal/notification"
	notificationPostgres "github.com/imec-int/monument-plwd-sub001/internal/notification/postgres"
	"github.com/imec-int/monument-plwd-sub001/internal/plwd"
	plwdPostgres "github.com/imec-int/monument-plwd-sub001/internal/plwd/postgres"
	"github.com/imec-int/monument-plwd-sub001/internal/session"
	"github.com/imec-int/monument-plwd-sub001/internal/transport"
	"github.com/imec-int/monument-plwd-sub001/internal/transport/middleware"
	"github.com/imec-int/monument-plwd-sub001/internal/transport/rest"
	"github.com/imec-int/monument-plwd-sub001/internal/user"
	userPostgres "github.com/imec-int/monument-plwd-sub001/internal/user/postgres"
)

const shutdownTimeout = 30 * time.Second

var withDispatcher bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	Bus           *events.EventBus
	Diary         *diary.Client
	Notifications notification.RepositoryAPI
}

func startHTTPServer() error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Logger.Info("starting HTTP server", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		deps.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if !deps.Bus.Wait(shutdownTimeout) {
			deps.Logger.Warn("event handlers still running at shutdown")
		}
		return nil
	})
	if withDispatcher {
		dispatcher := newDispatcher(deps.Config.Notifications, deps.Notifications, deps.Diary, deps.Logger)
		g.Go(func() error {
			return dispatcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	deps.Logger.Info("server stopped")
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	cfg, lg, err := setup()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := openGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.Auth0)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to build token verifier: %w", err)
	}
	diaryClient, err := newDiaryClient(cfg.Diary, lg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	bus := events.NewEventBus(lg)
	notificationRepo := notificationPostgres.NewNotificationRepository(gdb)
	notifications := notification.NewService(notificationRepo, lg)
	notifications.RegisterEventHandlers(bus)

	users := user.NewService(userPostgres.NewUserRepository(gdb), lg)
	circle := carecircle.NewService(carecirclePostgres.NewCarecircleRepository(gdb), users, bus, lg)
	users.SetMembershipLister(circle)
	plwds := plwd.NewService(plwdPostgres.NewPLWDRepository(gdb), circle, lg)

	base := transport.NewBaseHandler(lg)
	authz := session.NewAuthorizer(base, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Base:          base,
		Health:        rest.NewHealthHandler(db, diaryClient),
		Auth:          auth.NewHandler(verifier),
		Users:         user.NewHandler(users),
		PLWD:          plwd.NewHandler(base, plwds),
		Sessions:      session.NewHandler(base),
		Carecircle:    carecircle.NewHandler(base, circle),
		Diary:         diary.NewHandler(base, diaryClient, authz),
		Notifications: notification.NewHandler(base, notifications),
		Resolver:      session.NewResolver(users, plwds, circle, lg),
		Authorizer:    authz,
		RateLimiter:   middleware.NewSubjectRateLimiter(base, cfg.Server.UserRatePerSecond, cfg.Server.UserRateBurst),
	}, rest.Options{
		AllowedOrigins: cfg.Server.Origins(),
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		Logger:         lg,
	})

	return &Dependencies{
		Config:        cfg,
		DB:            db,
		Gorm:          gdb,
		Router:        router,
		Logger:        lg,
		Bus:           bus,
		Diary:         diaryClient,
		Notifications: notificationRepo,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// openGorm shares the sqlx pool with the gorm repositories.
func openGorm(db *sqlx.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return gdb, nil
}

func newDiaryClient(cfg internal.DiaryConfig, lg *slog.Logger) (*diary.Client, error) {
	client, err := diary.NewClient(diary.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		APIToken:       cfg.APIToken,
		RatePerSecond:  cfg.RatePerSecond,
		RateBurst:      cfg.RateBurst,
		ForwardTraceID: cfg.ForwardTraceID,
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to build diary client: %w", err)
	}
	return client, nil
}

func newDispatcher(cfg internal.NotificationsConfig, repo notification.RepositoryAPI, client *diary.Client, lg *slog.Logger) *notification.Dispatcher {
	return notification.NewDispatcher(repo, notification.NewDiarySender(client), notification.DispatcherConfig{
		MaxWorkers:   cfg.MaxWorkers,
		JobQueueSize: cfg.JobQueueSize,
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
	}, lg)
}

func init() {
	httpServerCmd.Flags().BoolVar(&withDispatcher, "with-dispatcher", true, "deliver notifications from this process")
}
