package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/auth"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/config"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/memory"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/postgres"
	infraredis "github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/redis"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/logging"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/metrics"
	transport "github.com/GuilhermeSP01/Escola-da-Biblia/internal/transport/http"
)

// store is what a backing store must provide to run the server.
type store interface {
	app.CohortRepository
	app.LessonRepository
	app.EnrollmentRepository
	app.AdminRegistry
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var admins []string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, admins)
		},
	}
	cmd.Flags().StringSliceVar(&admins, "admin", nil, "user ids granted admin on boot (repeatable)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string, bootstrapAdmins []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("auth.secret not set; using an ephemeral secret, tokens will not survive a restart")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		backing store
		loader  memory.LessonLoader
	)
	if cfg.Postgres.URL != "" {
		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		backing = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewLessonLoader(pool)
	} else {
		mem := memory.NewStore()
		backing, loader = mem, mem
		logger.Warn("postgres url not set; data is kept in memory only")
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var (
		catalog app.LessonCatalog
		locker  app.Locker
	)
	if redisClient != nil {
		catalog = infraredis.NewLessonCatalog(redisClient, loader, catalogTTL)
		locker = infraredis.NewLocker(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Second))
	} else {
		catalog = memory.NewLessonCatalog(loader, catalogTTL)
		locker = memory.NewLocker()
	}

	broadcaster := app.NewBroadcaster()
	var (
		events app.EventPublisher = broadcaster
		relay  *infraredis.EventRelay
	)
	if redisClient != nil {
		relay = infraredis.NewEventRelay(redisClient, "", broadcaster, logger.Named("relay"))
		events = relay
	}

	m := metrics.New()
	cohorts := app.NewCohortService(backing, locker, events, logger.Named("cohorts"))
	lessons := app.NewLessonService(backing, backing, catalog, logger.Named("lessons"))
	enrollments := app.NewEnrollmentService(backing, backing, backing, catalog,
		app.WithPassThreshold(cfg.Grading.PassThreshold),
		app.WithEvents(events),
		app.WithRecorder(m),
		app.WithLogger(logger.Named("enrollments")),
	)

	for _, id := range bootstrapAdmins {
		if err := backing.GrantAdmin(ctx, id); err != nil {
			return err
		}
		logger.Info("admin granted on boot", zap.String("user_id", id))
	}

	router := transport.NewRouter(transport.Deps{
		Cohorts:        cohorts,
		Lessons:        lessons,
		Enrollments:    enrollments,
		Admins:         backing,
		Tokens:         auth.NewService(secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
		Events:         broadcaster,
		Metrics:        m,
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if relay != nil {
		go func() {
			if err := relay.Run(runCtx, nil); err != nil {
				logger.Error("event relay stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
