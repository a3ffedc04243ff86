// Package mail sends outgoing notification mail over SMTP.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"libshare/internal/config"
	"libshare/internal/libshare"
)

// SMTPMailer sends plain-text mail through a single SMTP server.
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
}

// NewSMTPMailer creates a mailer for the given server and sender address.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		host: host,
		auth: auth,
		from: from,
	}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address cannot be empty")
	}

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", to, m.from, subject, body))

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, message); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}

// NewMailerFromConfig creates a Mailer implementation based on the mail
// config type.
func NewMailerFromConfig(cfg config.MailConfig) (libshare.Mailer, error) {
	switch cfg.Type {
	case "none", "":
		return libshare.NopMailer{}, nil
	case "smtp":
		if cfg.Host == "" {
			return nil, fmt.Errorf("smtp mail requires host to be set")
		}
		port := cfg.Port
		if port == 0 {
			port = 25
		}
		return NewSMTPMailer(cfg.Host, port, cfg.Username, cfg.Password, cfg.From), nil
	default:
		return nil, fmt.Errorf("unknown mail type: %s", cfg.Type)
	}
}
