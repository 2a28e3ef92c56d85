package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/bookingd/internal/config"
	"github.com/example/bookingd/internal/db"
	"github.com/example/bookingd/internal/migrate"
	"github.com/example/bookingd/internal/reservations"
	"github.com/example/bookingd/internal/schedule"
	"github.com/spf13/cobra"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Manage reservations (non-UI)",
	}
	cmd.AddCommand(newReservationListCmd())
	cmd.AddCommand(newReservationCreateCmd())
	cmd.AddCommand(newReservationSlotsCmd())
	return cmd
}

func openRepo(ctx context.Context) (config.Config, *db.DB, *reservations.Repo, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return config.Config{}, nil, nil, err
	}
	return cfg, d, reservations.NewRepo(d), nil
}

func newReservationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			list, err := repo.List(ctx)
			if err != nil {
				return err
			}
			for _, res := range list {
				fmt.Fprintf(os.Stdout, "id=%d customer=%q start=%s end=%s\n",
					res.ID, res.CustomerName,
					res.StartAt.Format(time.RFC3339), res.EndAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newReservationCreateCmd() *cobra.Command {
	var customer, start, end string

	c := &cobra.Command{
		Use:   "create",
		Short: "Book a reservation (validated like the web form)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			startAt, err := time.ParseInLocation("2006-01-02 15:04", start, cfg.Calendar.Location)
			if err != nil {
				return fmt.Errorf("invalid --start (want \"YYYY-MM-DD HH:MM\")")
			}
			endAt, err := time.ParseInLocation("2006-01-02 15:04", end, cfg.Calendar.Location)
			if err != nil {
				return fmt.Errorf("invalid --end (want \"YYYY-MM-DD HH:MM\")")
			}

			booker := &reservations.Booker{DB: d, Repo: repo, Calendar: cfg.Calendar}
			id, err := booker.Book(ctx, reservations.Reservation{
				CustomerName: customer,
				StartAt:      startAt,
				EndAt:        endAt,
			})
			if err != nil {
				if re := schedule.AsRuleError(err); re != nil {
					return fmt.Errorf("rejected: %s", re.Message)
				}
				return err
			}
			fmt.Fprintf(os.Stdout, "created reservation id=%d\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&customer, "customer", "", "customer name")
	c.Flags().StringVar(&start, "start", "", "start time \"YYYY-MM-DD HH:MM\" (calendar timezone)")
	c.Flags().StringVar(&end, "end", "", "end time \"YYYY-MM-DD HH:MM\" (calendar timezone)")
	_ = c.MarkFlagRequired("customer")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newReservationSlotsCmd() *cobra.Command {
	var date string

	c := &cobra.Command{
		Use:   "slots",
		Short: "Print the availability grid for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			day, err := time.ParseInLocation("2006-01-02", date, cfg.Calendar.Location)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}

			v := &schedule.Validator{Calendar: cfg.Calendar, Conflicts: repo}
			slots, err := v.DaySlots(ctx, day)
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintf(os.Stdout, "closed on %s\n", day.Format("2006-01-02"))
				return nil
			}
			for _, s := range slots {
				status := "free"
				if !s.Available {
					status = "booked"
				}
				fmt.Fprintf(os.Stdout, "%s - %s  %s\n",
					s.Range.Start.Format("15:04"), s.Range.End.Format("15:04"), status)
			}
			return nil
		},
	}

	c.Flags().StringVar(&date, "date", "", "day to inspect, YYYY-MM-DD")
	_ = c.MarkFlagRequired("date")
	return c
}
