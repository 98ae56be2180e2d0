package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/config"
	"exam-prep-service/internal/infra/memory"
	redisstore "exam-prep-service/internal/infra/redis"
	"exam-prep-service/internal/logging"
	"exam-prep-service/internal/metrics"
	transport "exam-prep-service/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "apply this seed file before serving")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(serviceName, cfg.Log.Level)
	m := metrics.New()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	paperTTL := config.TTLDuration(cfg.Paper.TTL, 10*time.Minute)
	var paperRepo app.PaperRepository
	if redisClient != nil {
		paperRepo = redisstore.NewPaperRepository(redisClient, stores.loader, paperTTL).WithObserver(m)
	} else {
		paperRepo = memory.NewPaperRepository(stores.loader, paperTTL).WithObserver(m)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Warn("no jwt secret configured, signing sessions with the development secret")
		secret = config.DevJWTSecret
	}
	tokens := auth.NewIssuer(secret, config.TTLDuration(cfg.Auth.MaxAge, 30*24*time.Hour))
	quiz := app.NewQuizService(sessions, paperRepo, stores.answers,
		app.WithLogger(log),
		app.WithObserver(m),
		app.WithGrace(config.TTLDuration(cfg.Quiz.Grace, app.DefaultGrace)),
		app.WithTickInterval(config.TTLDuration(cfg.Quiz.Tick, time.Second)),
		app.WithRetention(
			config.TTLDuration(cfg.Quiz.Linger, app.DefaultLinger),
			config.TTLDuration(cfg.Quiz.Idle, app.DefaultIdleTimeout),
		),
		app.WithSubscriptionGate(stores.users),
	)
	svc := transport.Services{
		Quiz:      quiz,
		Catalog:   app.NewCatalogService(stores.papers, paperRepo, log),
		Results:   app.NewResultService(stores.answers, paperRepo),
		Community: app.NewCommunityService(stores.comments, log),
		Accounts:  app.NewAccountService(stores.users, stores.plans, tokens, log),
		Answers:   app.NewAnswerService(stores.answers, paperRepo, log, m).WithUsers(stores.users),
	}

	if seedPath != "" {
		seed, err := loadSeed(seedPath)
		if err != nil {
			return err
		}
		if err := applySeed(ctx, seed, stores.papers, svc.Catalog, svc.Accounts, log); err != nil {
			return err
		}
	}

	router := transport.NewRouter(svc, transport.RouterConfig{
		Tokens:       tokens,
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.Secure,
		Origins:      cfg.Server.Origins,
		StaticDir:    cfg.Server.StaticDir,
		Metrics:      m,
		Log:          log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).WithField("storage", cfg.Storage.Driver).Info("starting exam prep service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quiz.RunSweeper(gctx, config.TTLDuration(cfg.Quiz.Sweep, time.Minute))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
