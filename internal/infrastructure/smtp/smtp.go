package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/valid-names/internal/config"
	"github.com/valid-names/internal/infrastructure/mail"
	"github.com/valid-names/internal/pkg/id"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers mail through an SMTP relay.
type Sender struct {
	host     string
	port     string
	username string
	password string
	send     sendFunc
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (s *Sender) Name() string { return "smtp" }

// Deliver honours ctx only before the dial; net/smtp has no cancellation.
func (s *Sender) Deliver(ctx context.Context, msg mail.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msgID := id.New() + "@" + s.host
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := s.send(addr, auth, envelopeAddress(msg.From), []string{msg.To}, buildMessage(msg, msgID, time.Now())); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msgID, nil
}

func buildMessage(msg mail.Message, msgID string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", msgID)
	fmt.Fprintf(&b, "Date: %s\r\n", at.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// envelopeAddress strips a display name: "Valid Names <a@b>" -> "a@b".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}
