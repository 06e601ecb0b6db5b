package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	texttemplate "text/template"
)

// Template names a message layout. Each file under templates/ defines a
// "subject" and a "body" block.
type Template string

const (
	TemplateVerification    Template = "verification"
	TemplatePasswordReset   Template = "passwordReset"
	TemplateDomainAvailable Template = "domainAvailable"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Message is a rendered email ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages. Deliver returns the provider's message id.
type Sender interface {
	Deliver(ctx context.Context, msg Message) (string, error)
	Name() string
}

// SendResult identifies a dispatched message.
type SendResult struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

type view struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Dispatcher renders a template and hands the result to a Sender. It does
// not retry.
type Dispatcher struct {
	from   string
	sender Sender
	views  map[Template]view
}

func NewDispatcher(from string, sender Sender) (*Dispatcher, error) {
	d := &Dispatcher{from: from, sender: sender, views: make(map[Template]view)}
	for _, t := range []Template{TemplateVerification, TemplatePasswordReset, TemplateDomainAvailable} {
		v, err := parseView(t)
		if err != nil {
			return nil, err
		}
		d.views[t] = v
	}
	return d, nil
}

func parseView(t Template) (view, error) {
	file := "templates/" + string(t) + ".tmpl"
	subj, err := texttemplate.ParseFS(templateFS, file)
	if err != nil {
		return view{}, fmt.Errorf("parse %s subject: %w", t, err)
	}
	body, err := htmltemplate.ParseFS(templateFS, file)
	if err != nil {
		return view{}, fmt.Errorf("parse %s body: %w", t, err)
	}
	if subj.Lookup("subject") == nil || body.Lookup("body") == nil {
		return view{}, fmt.Errorf("template %s must define subject and body", t)
	}
	return view{subject: subj, body: body}, nil
}

// Render produces the message for a template without sending it.
func (d *Dispatcher) Render(t Template, recipient string, vars map[string]any) (Message, error) {
	v, ok := d.views[t]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", t)
	}
	var subj, body bytes.Buffer
	if err := v.subject.ExecuteTemplate(&subj, "subject", vars); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", t, err)
	}
	if err := v.body.ExecuteTemplate(&body, "body", vars); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", t, err)
	}
	return Message{From: d.from, To: recipient, Subject: subj.String(), HTML: body.String()}, nil
}

func (d *Dispatcher) Send(ctx context.Context, t Template, recipient string, vars map[string]any) (*SendResult, error) {
	msg, err := d.Render(t, recipient, vars)
	if err != nil {
		return nil, err
	}
	msgID, err := d.sender.Deliver(ctx, msg)
	if err != nil {
		slog.Warn("mail delivery failed", "template", t, "provider", d.sender.Name(), "err", err)
		return nil, fmt.Errorf("send %s mail via %s: %w", t, d.sender.Name(), err)
	}
	slog.Info("mail sent", "template", t, "provider", d.sender.Name(), "id", msgID)
	return &SendResult{ID: msgID, Provider: d.sender.Name()}, nil
}

// MemorySender records messages instead of delivering them.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Name() string { return "memory" }

func (s *MemorySender) Deliver(_ context.Context, msg Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.messages = append(s.messages, msg)
	return fmt.Sprintf("mem-%d", len(s.messages)), nil
}

// Messages returns a copy of everything delivered so far.
func (s *MemorySender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}
