// Package testauth mints bearer tokens for load tests, local tooling and
// integration tests. Tokens are signed with the server's JWT secret, so the
// user they name must exist and be active for the server to accept them.
//
// Never wire this into the serving path.
package testauth

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/campusevents/server/internal/auth"
)

// DevSecret matches JWT_SECRET in .env.example.
const DevSecret = "dev_jwt_secret_change_me_in_production_0123"

const (
	defaultIssuer = "campus-events"
	defaultTTL    = 24 * time.Hour
)

type Config struct {
	// Secret defaults to JWT_SECRET, then DevSecret.
	Secret string
	// Issuer must match the server's JWT_ISSUER.
	Issuer   string
	TTL      time.Duration
	Identity auth.Identity
}

// Authenticator adds one pre-signed token to requests.
type Authenticator struct {
	token    string
	identity auth.Identity
}

func New(cfg Config) (*Authenticator, error) {
	secret := cfg.Secret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		secret = DevSecret
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	token, err := auth.NewJWTManager(secret, ttl, issuer).Generate(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("generate token for user %d: %w", cfg.Identity.UserID, err)
	}
	return &Authenticator{token: token, identity: cfg.Identity}, nil
}

func (a *Authenticator) Token() string {
	return a.token
}

func (a *Authenticator) Identity() auth.Identity {
	return a.identity
}

// Header returns the Authorization header value.
func (a *Authenticator) Header() string {
	if a == nil || a.token == "" {
		return ""
	}
	return "Bearer " + a.token
}

func (a *Authenticator) AddAuth(req *http.Request) {
	if req == nil || a == nil {
		return
	}
	req.Header.Set("Authorization", a.Header())
}

// Student and Admin are shorthands for the two roles.
func Student(userID, collegeID int64) (*Authenticator, error) {
	return New(Config{Identity: auth.Identity{UserID: userID, CollegeID: collegeID, Role: auth.RoleStudent}})
}

func Admin(userID, collegeID int64) (*Authenticator, error) {
	return New(Config{Identity: auth.Identity{UserID: userID, CollegeID: collegeID, Role: auth.RoleAdmin}})
}
