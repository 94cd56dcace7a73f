package mailer

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	cfgpkg "github.com/harborlight/donations/pkg/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the opaque "send email" capability. Receipt and manage-link mail
// both go through it; callers decide whether a failure is fatal.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg *cfgpkg.Config) (*SMTPMailer, error) {
	if cfg.Mail.Host == "" || cfg.Mail.From == "" {
		return nil, fmt.Errorf("mail.host and mail.from are required")
	}
	d := gomail.NewDialer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password)
	return &SMTPMailer{dialer: d, from: cfg.Mail.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// noopMailer is used in dev when SMTP is not configured; sends are logged
// and dropped.
type noopMailer struct {
	log *zap.SugaredLogger
}

func (m *noopMailer) Send(ctx context.Context, msg *Message) error {
	m.log.Infow("mail_dropped_no_smtp", "to", msg.To, "subject", msg.Subject)
	return nil
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) (Mailer, error) {
	if cfg.Mail.Host == "" {
		if cfg.Env == cfgpkg.EnvProd {
			return nil, fmt.Errorf("mail.host is required in prod")
		}
		log.Warnw("smtp not configured, mail will be dropped")
		return &noopMailer{log: log}, nil
	}
	return NewSMTPMailer(cfg)
}

var Module = fx.Options(
	fx.Provide(New),
)
