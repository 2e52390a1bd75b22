package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/Frusadev/frusablog-backend/internal/logging"
)

// Dispatcher sends templated mail. Fire-and-forget: callers log failures
// and move on, nothing is retried.
type Dispatcher interface {
	Send(ctx context.Context, email, subject, templateName string, tmplContext map[string]any, fallback string) error
}

type SMTPMailer struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	Templates *template.Template
}

func NewSMTPMailer(host, port, username, password, from string) (*SMTPMailer, error) {
	tmpl, err := template.New("mail").Parse(templates)
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &SMTPMailer{
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		From:      from,
		Templates: tmpl,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email, subject, templateName string, tmplContext map[string]any, fallback string) error {
	body, contentType := m.render(ctx, templateName, tmplContext, fallback)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\nContent-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	msg.WriteString(body)

	addr := m.Host + ":" + m.Port
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	if err := smtp.SendMail(addr, auth, m.From, []string{email}, msg.Bytes()); err != nil {
		return fmt.Errorf("mail: send to %s: %w", email, err)
	}
	return nil
}

// render falls back to the plain-text message when the template is
// missing or fails, so a template problem never blocks the mail.
func (m *SMTPMailer) render(ctx context.Context, templateName string, tmplContext map[string]any, fallback string) (string, string) {
	l := logging.FromContext(ctx).With("svc", "mail")

	t := m.Templates.Lookup(templateName)
	if t == nil {
		l.Warn("template not found, using fallback", "template", templateName)
		return fallback, "text/plain"
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, tmplContext); err != nil {
		l.Warn("template render failed, using fallback", "template", templateName, "error", err)
		return fallback, "text/plain"
	}
	return buf.String(), "text/html"
}

// LogMailer writes mail to the log instead of the wire. Used in dev and
// in tests.
type LogMailer struct {
	Sent []SentMail
}

type SentMail struct {
	Email    string
	Subject  string
	Template string
	Context  map[string]any
}

func (m *LogMailer) Send(ctx context.Context, email, subject, templateName string, tmplContext map[string]any, fallback string) error {
	logging.FromContext(ctx).Info("mail dispatched",
		"to", email, "subject", subject, "template", templateName)
	m.Sent = append(m.Sent, SentMail{Email: email, Subject: subject, Template: templateName, Context: tmplContext})
	return nil
}
