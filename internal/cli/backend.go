package cli

import (
	"context"
	"fmt"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/config"
	"exam-prep-service/internal/infra/memory"
	mongostore "exam-prep-service/internal/infra/mongo"
	"exam-prep-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
)

const serviceName = "exam-prep-service"

// backend is the set of stores for the configured storage driver.
type backend struct {
	papers   app.PaperStore
	loader   app.PaperLoader
	answers  app.AnswerStore
	comments app.CommentStore
	users    app.UserStore
	plans    app.PlanStore
	close    func()
}

func openBackend(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (backend, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, log)
	case "mongo":
		return openMongo(ctx, cfg)
	case "memory":
		log.Warn("using in-memory storage; data is lost on restart")
		papers := memory.NewPaperStore()
		return backend{
			papers:   papers,
			loader:   papers,
			answers:  memory.NewAnswerStore(),
			comments: memory.NewCommentStore(),
			users:    memory.NewUserStore(),
			plans:    memory.NewPlanStore(),
			close:    func() {},
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (backend, error) {
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return backend{}, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return backend{}, fmt.Errorf("connect postgres: %w", err)
	}
	db := postgres.Open(cfg.Postgres.URL)
	return backend{
		papers:   postgres.NewPaperStore(db),
		loader:   postgres.NewPaperLoader(pool),
		answers:  postgres.NewAnswerStore(db),
		comments: postgres.NewCommentStore(db),
		users:    postgres.NewUserStore(db),
		plans:    postgres.NewPlanStore(db),
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

func openMongo(ctx context.Context, cfg config.Config) (backend, error) {
	client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return backend{}, err
	}
	db := client.Database(cfg.Mongo.Database)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return backend{}, err
	}
	papers := mongostore.NewPaperStore(db)
	return backend{
		papers:   papers,
		loader:   papers,
		answers:  mongostore.NewAnswerStore(db),
		comments: mongostore.NewCommentStore(db),
		users:    mongostore.NewUserStore(db),
		plans:    mongostore.NewPlanStore(db),
		close:    func() { _ = client.Disconnect(context.Background()) },
	}, nil
}
