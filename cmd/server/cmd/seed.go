package cmd

import (
	"fmt"
	"time"

	"github.com/campusevents/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo colleges, users, events and activity",
		Long: `Seed inserts a small demo dataset. Existing rows are left alone, so the
command can be run more than once.

Demo logins:
  admin@<college domain>    / admin123
  student<N>@<college domain> / student123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := postgres.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			summary, err := postgres.Seed(cmd.Context(), pool, time.Now().In(cfg.Location()))
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Seed complete:")
			fmt.Fprintf(out, "  colleges:      %d\n", summary.Colleges)
			fmt.Fprintf(out, "  users:         %d\n", summary.Users)
			fmt.Fprintf(out, "  events:        %d\n", summary.Events)
			fmt.Fprintf(out, "  registrations: %d\n", summary.Registrations)
			fmt.Fprintf(out, "  attendance:    %d\n", summary.Attendance)
			fmt.Fprintf(out, "  feedback:      %d\n", summary.Feedback)
			return nil
		},
	}
}
