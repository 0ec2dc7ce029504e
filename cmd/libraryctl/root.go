package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/libraryhub/internal/config"
	"github.com/geocoder89/libraryhub/internal/db"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/repo/postgres"
	"github.com/spf13/cobra"
)

type app struct {
	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Operator tasks for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if url, _ := cmd.Flags().GetString("database-url"); url != "" {
				a.cfg.DBURL = url
			}
			a.log = observability.NewLogger(a.cfg.Env, "libraryctl")
			slog.SetDefault(a.log)
			return nil
		},
	}

	root.PersistentFlags().String("database-url", "", "postgres URL (defaults to DATABASE_URL / DB_*)")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedAdminCmd(a),
		newSweepOverdueCmd(a),
	)

	return root
}

// openStore connects to postgres; the caller must invoke the returned close.
func (a *app) openStore(ctx context.Context) (*postgres.Store, func(), error) {
	pool, err := db.NewPool(ctx, a.cfg.DBURL, db.PoolConfig{MaxConns: 2})
	if err != nil {
		return nil, nil, fmt.Errorf("db connect failed: %w", err)
	}
	return postgres.NewStore(pool, nil), pool.Close, nil
}
