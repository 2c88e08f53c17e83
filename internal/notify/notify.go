// Package notify tells card owners about changes made on their behalf.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/josh-kwaku/bankcards-api/internal/logging"
)

// CardBlocked is the content of a card block notice.
type CardBlocked struct {
	To       string
	FullName string
	Masked   string
}

type SMTPConfig struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
}

type sendFunc func(e *email.Email, addr string, a smtp.Auth) error

// Mailer sends notices over SMTP. With no SMTP address configured it only
// logs what it would have sent.
type Mailer struct {
	cfg  SMTPConfig
	send sendFunc
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

func (m *Mailer) CardBlocked(ctx context.Context, n CardBlocked) error {
	log := logging.FromContext(ctx)

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{n.To}
	e.Subject = "Your card has been blocked"
	e.Text = []byte(cardBlockedBody(n))

	if m.cfg.Addr == "" {
		log.Info("smtp not configured, notice not sent", "to", n.To, "subject", e.Subject)
		return nil
	}

	var a smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Host
		if host == "" {
			host, _, _ = strings.Cut(m.cfg.Addr, ":")
		}
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}

	if err := m.send(e, m.cfg.Addr, a); err != nil {
		return fmt.Errorf("CardBlocked: %w", err)
	}
	log.Info("notice sent", slog.String("to", n.To), slog.String("subject", e.Subject))
	return nil
}

func cardBlockedBody(n CardBlocked) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", n.FullName)
	fmt.Fprintf(&b, "Your card %s has been blocked as you requested.\n", n.Masked)
	b.WriteString("Transfers to and from this card are no longer possible.\n")
	b.WriteString("\nBest regards,\nBank Cards")
	return b.String()
}
