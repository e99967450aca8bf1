package main

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"clickup_collector/internal/config"
	"clickup_collector/internal/fields"
	"clickup_collector/internal/publisher"
	"clickup_collector/internal/service"
	"clickup_collector/internal/source/clickup"
	"clickup_collector/internal/storage/postgres"
)

type rootOptions struct {
	configPath string
}

// app holds the handles one command invocation owns. close releases them.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	rabbit *publisher.RabbitMQ

	users      *service.UserSyncService
	tasks      *service.SyncService
	aggregates *service.AggregationService
	pipeline   pipelineRunner
}

type pipelineRunner interface {
	Run(ctx context.Context, listID string, includeArchived bool) error
}

// loadConfig reads the config and builds the logger. needAPI selects the full validation.
func loadConfig(opts *rootOptions, needAPI bool) (*config.Config, *slog.Logger, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return nil, nil, err
	}
	logger = setupLogger(cfg.LogLevel)

	validate := cfg.ValidateDatabase
	if needAPI {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := postgres.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
	return db, nil
}

func newApp(ctx context.Context, opts *rootOptions, needAPI bool) (*app, error) {
	cfg, logger, err := loadConfig(opts, needAPI)
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, logger)
}

// buildApp opens the database and broker handles for an already validated config.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbit, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			QueueName:  cfg.RabbitMQ.QueueName,
			BindingKey: cfg.RabbitMQ.BindingKey,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			_ = db.Close()
			return nil, err
		}
		a.rabbit = rabbit
		pub = rabbit
	}

	taskStore := postgres.NewTaskStore(db)
	assignmentStore := postgres.NewAssignmentStore(db)
	userStore := postgres.NewUserStore(db)
	listStore := postgres.NewListStore(db)
	aggregateStore := postgres.NewAggregateStore(db)
	runStore := postgres.NewSyncRunStore(db)
	txManager := postgres.NewTransactionManager(db)

	decoder := fields.NewDecoder(fields.Config{
		ParentField: cfg.Fields.ParentField,
		ParentLabel: cfg.Fields.ParentLabel,
		ClientField: cfg.Fields.ClientField,
	}, logger)

	source := clickup.New(clickup.Config{
		BaseURL:        cfg.ClickUp.BaseURL,
		Token:          cfg.ClickUp.APIToken,
		Timeout:        cfg.ClickUp.Timeout,
		MaxAttempts:    cfg.ClickUp.Retry.MaxAttempts,
		InitialBackoff: cfg.ClickUp.Retry.InitialBackoff,
		MaxBackoff:     cfg.ClickUp.Retry.MaxBackoff,
	}, decoder, logger)

	upserter := service.NewUpserter(taskStore, assignmentStore, userStore)

	a.users = service.NewUserSyncService(source, userStore, runStore, txManager, cfg.Sync.AllowedRoles, logger)
	a.tasks = service.NewSyncService(source, taskStore, listStore, runStore, txManager, upserter, pub, logger)
	a.aggregates = service.NewAggregationService(taskStore, assignmentStore, aggregateStore, runStore, txManager, pub, logger)
	a.pipeline = service.NewPipeline(a.users, a.tasks, a.aggregates, logger)

	return a, nil
}

func (a *app) close() {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
