// Package email delivers campaign and reminder messages over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender sends plain-text messages through the configured SMTP server.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	subject   string
}

// NewSMTPSender creates an SMTP sender, or nil when email is not configured.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.IsEmailEnabled() {
		return nil
	}

	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		subject:   cfg.GetEmailFromName(),
	}
}

// Send delivers one rendered message to the prospect's email address.
func (s *SMTPSender) Send(ctx context.Context, p prospectrepo.Prospect, body string) error {
	if s == nil {
		return nil
	}
	return s.SendText(ctx, p.Email, s.subject, body)
}

// SendText sends a plain-text email.
func (s *SMTPSender) SendText(ctx context.Context, toEmail, subject, body string) error {
	if s == nil {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
