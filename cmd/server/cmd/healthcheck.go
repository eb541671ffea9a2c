package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Exit codes used by container HEALTHCHECKs.
const (
	exitHealthy     = 0
	exitUnhealthy   = 1
	exitBadResponse = 2
)

var errBadResponse = errors.New("invalid health response")

type healthResponse struct {
	Status string                     `json:"status"`
	Checks map[string]json.RawMessage `json:"checks,omitempty"`
}

func newHealthcheckCommand() *cobra.Command {
	var (
		timeout time.Duration
		url     string
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check whether a running server reports healthy",
		Long: `Calls the server's /health endpoint.

Exit codes:
  0 - healthy (degraded also passes with --allow-degraded)
  1 - unhealthy or unreachable
  2 - the server answered with something that is not a health report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			allowDegraded, _ := cmd.Flags().GetBool("allow-degraded")
			if url == "" {
				url = defaultHealthURL()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := checkHealth(ctx, http.DefaultClient, url)
			code := healthExitCode(status, err, allowDegraded)
			if code != exitHealthy {
				if err == nil {
					err = fmt.Errorf("server status: %s", status)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Health check failed: %v\n", err)
				os.Exit(code)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server status: %s\n", status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "health URL (default: http://localhost:$SERVER_PORT/health)")
	cmd.Flags().Bool("allow-degraded", false, "treat a degraded report as healthy")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// checkHealth returns the reported status. 503 responses still carry a
// report, so only transport and decoding failures are errors.
func checkHealth(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request health: %w", err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status == "" {
		return "", fmt.Errorf("%w (HTTP %d)", errBadResponse, resp.StatusCode)
	}
	return body.Status, nil
}

func healthExitCode(status string, err error, allowDegraded bool) int {
	switch {
	case errors.Is(err, errBadResponse):
		return exitBadResponse
	case err != nil:
		return exitUnhealthy
	case status == "healthy", status == "degraded" && allowDegraded:
		return exitHealthy
	default:
		return exitUnhealthy
	}
}
