package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ErrRateLimited wraps Resend's 429 so job workers can back off.
var ErrRateLimited = errors.New("email rate limit exceeded")

// outgoing is one rendered notification. Kind becomes a Resend tag so
// confirmations and feedback requests can be told apart in delivery stats.
type outgoing struct {
	to      string
	subject string
	html    string
	kind    string
}

func (s *Service) sendViaResend(ctx context.Context, msg outgoing) error {
	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{msg.to},
		Subject: msg.subject,
		Html:    msg.html,
	}
	if msg.kind != "" {
		params.Tags = []resend.Tag{{Name: "notification", Value: msg.kind}}
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, params)
	var limited *resend.RateLimitError
	switch {
	case errors.As(err, &limited):
		s.logger.Warn().
			Str("kind", msg.kind).
			Str("remaining", limited.Remaining).
			Str("reset", limited.Reset).
			Msg("resend rate limit exceeded")
		return fmt.Errorf("%w (resets in %s seconds): %w", ErrRateLimited, limited.Reset, err)
	case err != nil:
		return fmt.Errorf("send %s email: resend API error: %w", msg.kind, err)
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("kind", msg.kind).
		Msg("notification email sent")
	return nil
}
