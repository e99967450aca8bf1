package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clickup_collector/internal/domain"
	"clickup_collector/internal/scheduler"
	"clickup_collector/internal/service"
	"clickup_collector/internal/storage/postgres"
	"clickup_collector/migrations"
)

func setupDBCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-db",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			db, err := openDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db, migrations.FS)
			if err != nil {
				logger.Error("failed to apply schema", "error", err)
				return err
			}
			logger.Info("schema ready", "migrations", applied)
			return nil
		},
	}
}

func syncUsersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-users",
		Short: "Synchronize workspace members into the users table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.users.Sync(cmd.Context())
			return err
		},
	}
}

func syncTasksCmd(opts *rootOptions) *cobra.Command {
	var (
		listID   string
		fullSync bool
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "sync-tasks",
		Short: "Synchronize the tasks of one list, incrementally unless --full-sync is set",
		Example: `  collector sync-tasks --list-id 901234567
  collector sync-tasks --list-id 901234567 --full-sync --archived`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("archived") {
				archived = a.cfg.Sync.IncludeArchived
			}
			id, err := resolveListID(listID, a.cfg.Sync.ListID)
			if err != nil {
				a.logger.Error("missing list id", "error", err)
				return err
			}

			_, err = a.tasks.Sync(cmd.Context(), service.SyncRequest{
				ListID:          id,
				FullSync:        fullSync,
				IncludeArchived: archived,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&listID, "list-id", "", "ClickUp list id (defaults to sync.list_id)")
	cmd.Flags().BoolVar(&fullSync, "full-sync", false, "ignore the watermark and fetch every task")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived tasks")

	return cmd
}

func generateAggregatesCmd(opts *rootOptions) *cobra.Command {
	var (
		listID string
		userID int64
	)

	cmd := &cobra.Command{
		Use:   "generate-aggregates",
		Short: "Recompute per-assignee time totals of root tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			var req service.AggregateRequest
			if cmd.Flags().Changed("list-id") {
				req.ListID = &listID
			}
			if cmd.Flags().Changed("user-id") {
				req.UserID = &userID
			}

			_, err = a.aggregates.Generate(cmd.Context(), req)
			return err
		},
	}

	cmd.Flags().StringVar(&listID, "list-id", "", "limit to root tasks of this list")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "limit to this assignee")

	return cmd
}

func fullSyncCmd(opts *rootOptions) *cobra.Command {
	var listID string

	cmd := &cobra.Command{
		Use:   "full-sync",
		Short: "Run users sync, a full task sync and aggregation for one list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := resolveListID(listID, a.cfg.Sync.ListID)
			if err != nil {
				a.logger.Error("missing list id", "error", err)
				return err
			}
			return a.pipeline.Run(cmd.Context(), id, a.cfg.Sync.IncludeArchived)
		},
	}

	cmd.Flags().StringVar(&listID, "list-id", "", "ClickUp list id (defaults to sync.list_id)")

	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full-sync pipeline on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig(opts, true)
			if err != nil {
				return err
			}

			listID, err := resolveListID("", cfg.Sync.ListID)
			if err != nil {
				logger.Error("serve needs sync.list_id", "error", err)
				return err
			}

			open := func(ctx context.Context) (*app, error) {
				return buildApp(ctx, cfg, logger)
			}
			sched, err := scheduler.NewScheduler(cfg.Sync.Schedule,
				perRunJob(open, listID, cfg.Sync.IncludeArchived),
				cfg.Sync.RunTimeout, logger)
			if err != nil {
				logger.Error("invalid schedule", "error", err)
				return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
			}

			logger.Info("starting collector",
				"list_id", listID,
				"schedule", cfg.Sync.Schedule,
				"publish_events", cfg.RabbitMQ.Enabled,
			)

			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
				return err
			}
			logger.Info("collector stopped")
			return nil
		},
	}
}

// perRunJob opens the database and broker handles at the start of every
// scheduled run and releases them when the run returns.
func perRunJob(open func(context.Context) (*app, error), listID string, includeArchived bool) scheduler.Job {
	return func(ctx context.Context) error {
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return a.pipeline.Run(ctx, listID, includeArchived)
	}
}

func resolveListID(flagValue, configured string) (string, error) {
	if id := strings.TrimSpace(flagValue); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(configured); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: --list-id or sync.list_id is required", domain.ErrConfiguration)
}
