package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one release sweep and deliver its notifications, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			tmdbClient, err := a.newTMDB()
			if err != nil {
				return err
			}
			tg, err := a.newTelegram()
			if err != nil {
				return err
			}
			sched, err := a.newScheduler(tmdbClient, tg)
			if err != nil {
				return err
			}

			report, err := sched.RunSweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Sweep", "Notifications", "Photo", "Text", "Dropped", "Duration"},
				[][]string{{
					report.ID.String(),
					fmt.Sprint(report.Notifications),
					fmt.Sprint(report.Delivery.Photo),
					fmt.Sprint(report.Delivery.Text),
					fmt.Sprint(report.Delivery.Dropped),
					report.Duration.Round(time.Millisecond).String(),
				}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}
