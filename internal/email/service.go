// Package email renders and delivers the notification emails students get
// about their events, through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/campusevents/server/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

type Service struct {
	config       config.EmailConfig
	templates    *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
}

// RegistrationConfirmation is sent after a student registers for an event.
type RegistrationConfirmation struct {
	To          string
	StudentName string
	CollegeName string
	EventTitle  string
	EventDate   string
	StartTime   string
	EndTime     string
	Location    string
}

// FeedbackRequest is sent to attendees once an event is completed.
type FeedbackRequest struct {
	To          string
	StudentName string
	CollegeName string
	EventTitle  string
	EventDate   string
	FeedbackURL string
}

// NewService parses the embedded templates. A Resend client is only built
// when delivery is enabled and an API key is configured; otherwise every
// send is logged and dropped.
func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled && cfg.ResendAPIKey != "" {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

func (s *Service) Enabled() bool {
	return s.config.Enabled && s.resendClient != nil
}

func (s *Service) SendRegistrationConfirmation(ctx context.Context, msg RegistrationConfirmation) error {
	data := struct {
		RegistrationConfirmation
		CurrentYear int
	}{msg, time.Now().Year()}

	subject := "Registration confirmed: " + msg.EventTitle
	return s.deliver(ctx, msg.To, subject, "registration_confirmation", data)
}

func (s *Service) SendFeedbackRequest(ctx context.Context, msg FeedbackRequest) error {
	if msg.FeedbackURL != "" {
		if err := validateLink(msg.FeedbackURL); err != nil {
			return fmt.Errorf("invalid feedback link: %w", err)
		}
	}
	data := struct {
		FeedbackRequest
		CurrentYear int
	}{msg, time.Now().Year()}

	subject := "Tell us how " + msg.EventTitle + " went"
	return s.deliver(ctx, msg.To, subject, "feedback_request", data)
}

// deliver renders <kind>.html and sends it, or only logs when delivery is
// disabled.
func (s *Service) deliver(ctx context.Context, to, subject, kind string, data any) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	body, err := s.render(kind+".html", data)
	if err != nil {
		return err
	}

	if !s.Enabled() {
		s.logger.Info().
			Str("to", to).
			Str("kind", kind).
			Str("subject", subject).
			Msg("email delivery disabled, skipping")
		return nil
	}
	return s.sendViaResend(ctx, outgoing{to: to, subject: subject, html: body, kind: kind})
}

func (s *Service) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
