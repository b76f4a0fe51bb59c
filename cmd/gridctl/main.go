package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridbase/gridbase/internal/application/services"
	"github.com/gridbase/gridbase/internal/bootstrap"
	"github.com/gridbase/gridbase/internal/infrastructure/database"
	"github.com/gridbase/gridbase/internal/infrastructure/search"
)

// gridctl is the operator CLI: index rebuilds and outbox maintenance
// against a running deployment's database and index directory.
func main() {
	root := &cobra.Command{
		Use:          "gridctl",
		Short:        "Operations CLI for the data platform",
		SilenceUsage: true,
	}

	root.AddCommand(reindexCmd(), outboxCleanupCmd(), outboxDrainCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect() (*services.ServiceManager, func(), error) {
	cfg := bootstrap.LoadConfig()
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	indexer := search.NewBleveIndexer(cfg.IndexDir)
	svcMgr := services.NewServiceManager(db, indexer)
	cleanup := func() {
		_ = indexer.Close()
		_ = db.Close()
	}
	return svcMgr, cleanup, nil
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <table>",
		Short: "Rebuild a table's search index from the primary store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcMgr, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			table, err := svcMgr.Schema.GetTableByName(ctx, args[0])
			if err != nil {
				return err
			}
			if err := svcMgr.Search.Reindex(ctx, table); err != nil {
				return err
			}
			log.Printf("✅ Reindexed table %q", table.Name)
			return nil
		},
	}
}

func outboxCleanupCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "outbox-cleanup",
		Short: "Delete processed outbox events older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcMgr, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := svcMgr.Outbox.CleanupProcessed(context.Background(), olderThan)
			if err != nil {
				return err
			}
			log.Printf("🧹 Removed %d processed events", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "retention window for processed events")
	return cmd
}

func outboxDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outbox-drain",
		Short: "Process all pending outbox events once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcMgr, cleanup, err := connect()
			if err != nil {
				return err
			}
			defer cleanup()

			return svcMgr.Outbox.ProcessOutbox(context.Background())
		},
	}
}
