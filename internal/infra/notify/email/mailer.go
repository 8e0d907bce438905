package email

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"cspace/internal/app/policies"
	"cspace/internal/domain/shared/fault"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg Config) *Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), from: from}
}

func (m *Mailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fault.External("smtp", err)
	}
	return nil
}

var _ policies.Mailer = (*Mailer)(nil)
