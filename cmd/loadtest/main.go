// Command loadtest replays student and admin traffic against a running
// server. Accounts are addressed by id and signed locally with JWT_SECRET,
// so the ids must exist in the target database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusevents/server/internal/loadtest"
	"github.com/campusevents/server/internal/testauth"
	"github.com/spf13/cobra"
)

type options struct {
	baseURL    string
	profile    string
	rps        int
	duration   time.Duration
	readRatio  float64
	noRamp     bool
	collegeID  int64
	adminID    int64
	studentIDs []int64
	eventIDs   []int64
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Generate campus event traffic against a server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the server to test")
	f.StringVar(&opts.profile, "profile", string(loadtest.ProfileLight), "load profile: light, medium, heavy, rush")
	f.IntVar(&opts.rps, "rps", 0, "requests per second (overrides profile)")
	f.DurationVar(&opts.duration, "duration", 0, "steady-state duration (overrides profile)")
	f.Float64Var(&opts.readRatio, "read-ratio", 0, "share of reads 0.0-1.0 (overrides profile)")
	f.BoolVar(&opts.noRamp, "no-ramp", false, "disable ramp-up and ramp-down")
	f.Int64Var(&opts.collegeID, "college-id", 1, "college the accounts belong to")
	f.Int64Var(&opts.adminID, "admin-id", 0, "admin user id for report traffic (0 disables)")
	f.Int64SliceVar(&opts.studentIDs, "student-ids", nil, "student user ids (required)")
	f.Int64SliceVar(&opts.eventIDs, "event-ids", nil, "event ids to browse and register for (required)")
	_ = cmd.MarkFlagRequired("student-ids")
	_ = cmd.MarkFlagRequired("event-ids")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	target, err := buildTarget(opts)
	if err != nil {
		return err
	}
	cfg, err := profileConfig(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running load profile: %s\n\n", opts.profile)
	stats, err := loadtest.NewLoadTester(target, out).RunCustom(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, stats.Report())
	return nil
}

func buildTarget(opts options) (loadtest.Target, error) {
	target := loadtest.Target{BaseURL: opts.baseURL, EventIDs: opts.eventIDs}
	for _, id := range opts.studentIDs {
		a, err := testauth.Student(id, opts.collegeID)
		if err != nil {
			return target, fmt.Errorf("student %d token: %w", id, err)
		}
		target.Students = append(target.Students, a)
	}
	if opts.adminID > 0 {
		a, err := testauth.Admin(opts.adminID, opts.collegeID)
		if err != nil {
			return target, fmt.Errorf("admin token: %w", err)
		}
		target.Admin = a
	}
	return target, nil
}

// profileConfig starts from the named profile and applies any overrides.
func profileConfig(opts options) (loadtest.ProfileConfig, error) {
	cfg, ok := loadtest.LoadProfiles[loadtest.LoadProfile(opts.profile)]
	if !ok {
		return cfg, fmt.Errorf("unknown profile: %s", opts.profile)
	}
	if opts.rps > 0 {
		cfg.RequestsPerSecond = opts.rps
	}
	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}
	if opts.readRatio > 0 {
		if opts.readRatio > 1 {
			return cfg, fmt.Errorf("--read-ratio must be between 0 and 1")
		}
		cfg.ReadWriteRatio = opts.readRatio
	}
	if opts.noRamp {
		cfg.RampUpTime = 0
		cfg.RampDownTime = 0
	}
	return cfg, nil
}
