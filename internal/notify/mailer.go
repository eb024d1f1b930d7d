package notify

import (
	"fmt"

	gomail "github.com/go-mail/mail"
	"github.com/rs/zerolog/log"

	"github.com/dealflow/platform-server-go/internal/config"
)

// Mailer sends best-effort notification email over SMTP. Every send failure
// is logged and dropped; notification must never fail a user-facing
// operation.
type Mailer struct {
	dialer *gomail.Dialer
	from   string

	// send is swapped out in tests.
	send func(m *gomail.Message) error
}

// NewMailer returns nil when SMTP is not configured; a nil *Mailer satisfies
// nothing and callers should pass a nil Notifier instead.
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	m := &Mailer{dialer: dialer, from: cfg.SMTPFrom}
	m.send = func(msg *gomail.Message) error { return m.dialer.DialAndSend(msg) }
	return m
}

// ConnectionEstablished notifies the user that a provider connection was
// created on their account.
func (m *Mailer) ConnectionEstablished(email, provider, capability string) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("New %s integration connected", provider))
	msg.SetBody("text/plain", fmt.Sprintf(
		"A %s integration (%s) was just connected to your account.\n\n"+
			"If this wasn't you, disconnect it from your integration settings immediately.\n",
		provider, capability))

	if err := m.send(msg); err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("failed to send connection notification")
		return
	}
	log.Debug().Str("provider", provider).Msg("connection notification sent")
}
