package resend

import (
	"context"
	"fmt"
	"net/url"

	resendapi "github.com/resend/resend-go/v2"
	"github.com/valid-names/internal/infrastructure/mail"
)

// Sender delivers mail through the Resend API.
type Sender struct {
	client *resendapi.Client
}

func NewSender(apiKey string) *Sender {
	return &Sender{client: resendapi.NewClient(apiKey)}
}

// WithBaseURL points the client at another API host (tests, proxies).
func (s *Sender) WithBaseURL(raw string) (*Sender, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse resend base url: %w", err)
	}
	s.client.BaseURL = u
	return s, nil
}

func (s *Sender) Name() string { return "resend" }

func (s *Sender) Deliver(ctx context.Context, msg mail.Message) (string, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, &resendapi.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}
