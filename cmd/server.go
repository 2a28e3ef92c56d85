package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/bookingd/internal/auth"
	"github.com/example/bookingd/internal/config"
	"github.com/example/bookingd/internal/db"
	"github.com/example/bookingd/internal/janitor"
	"github.com/example/bookingd/internal/migrate"
	"github.com/example/bookingd/internal/reservations"
	"github.com/example/bookingd/internal/schedule"
	"github.com/example/bookingd/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			repo := reservations.NewRepo(d)
			booker := &reservations.Booker{DB: d, Repo: repo, Calendar: cfg.Calendar}
			validator := &schedule.Validator{Calendar: cfg.Calendar, Conflicts: repo}

			// retention sweep
			j := &janitor.Janitor{
				Store:     repo,
				Retention: cfg.PurgeAfter,
				Interval:  cfg.PurgeInterval,
			}
			go func() { _ = j.Run(ctx) }()

			ws := &web.Server{
				Auth:      authStore,
				Repo:      repo,
				Booker:    booker,
				Validator: validator,
				BaseURL:   cfg.BaseURL,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
