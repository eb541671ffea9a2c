// Command gentoken prints a bearer token for an existing user, for curl
// sessions against a local server.
package main

import (
	"fmt"
	"os"

	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/testauth"
	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		userID    int64
		collegeID int64
		role      string
		email     string
		baseURL   string
	)
	cmd := &cobra.Command{
		Use:   "gentoken",
		Short: "Print a JWT for an existing user (signed with JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := auth.Role(role)
			if r != auth.RoleAdmin && r != auth.RoleStudent {
				return fmt.Errorf("--role must be admin or student")
			}
			a, err := testauth.New(testauth.Config{
				Issuer:   os.Getenv("JWT_ISSUER"),
				Identity: auth.Identity{UserID: userID, CollegeID: collegeID, Role: r, Email: email},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "JWT Token:")
			fmt.Fprintln(out, a.Token())
			fmt.Fprintln(out, "\nTest with:")
			path := "/api/student/events"
			if r == auth.RoleAdmin {
				path = "/api/reports/overview"
			}
			fmt.Fprintf(out, "curl -H '%s: %s' %s%s\n", "Authorization", a.Header(), baseURL, path)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 1, "user id the token names")
	cmd.Flags().Int64Var(&collegeID, "college-id", 1, "college of the user")
	cmd.Flags().StringVar(&role, "role", "admin", "admin or student")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "server base URL for the example")
	return cmd
}
