package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/harborlight/donations/internal/platform/mailer"
	"github.com/harborlight/donations/pkg/tool"
)

// Service sends donor-facing mail. Every send is fire-and-forget: payment
// reconciliation must never fail because SMTP is down, so errors are logged
// and swallowed.
type Service struct {
	mailer mailer.Mailer
	log    *zap.SugaredLogger
}

func New(m mailer.Mailer, log *zap.SugaredLogger) *Service {
	return &Service{mailer: m, log: log}
}

func formatAmount(amountCents int64, currency string) string {
	return fmt.Sprintf("$%d.%02d %s", amountCents/100, amountCents%100, strings.ToUpper(currency))
}

// SendReceipt thanks a donor for a completed payment.
func (s *Service) SendReceipt(email, name string, amountCents int64, currency string, recurring bool) {
	subject := "Thank you for your donation"
	if recurring {
		subject = "Thank you for your monthly donation"
	}
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	kind := "donation"
	if recurring {
		kind = "monthly donation"
	}
	body := fmt.Sprintf("%s,\n\nWe received your %s of %s. Thank you for your support!\n",
		greeting, kind, formatAmount(amountCents, currency))

	s.send("receipt", &mailer.Message{To: email, Subject: subject, Body: body})
}

// SendManageLink mails a one-time link to the donor self-service portal.
func (s *Service) SendManageLink(email, name, url string, expiresAt time.Time) {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	body := fmt.Sprintf("%s,\n\nUse the link below to manage your donations. It can be used once and expires at %s.\n\n%s\n\nIf you did not request this, you can ignore this email.\n",
		greeting, expiresAt.UTC().Format(time.RFC1123), url)

	s.send("manage_link", &mailer.Message{To: email, Subject: "Manage your donations", Body: body})
}

func (s *Service) send(kind string, msg *mailer.Message) {
	go func() {
		// Detached from the request context on purpose; the caller has
		// usually already responded by the time this runs.
		if err := s.mailer.Send(context.Background(), msg); err != nil {
			s.log.Errorw("mail_send_failed", "kind", kind, "to_hash", tool.HashIdentifier(msg.To), "err", err)
			return
		}
		s.log.Infow("mail_sent", "kind", kind, "to_hash", tool.HashIdentifier(msg.To))
	}()
}

var Module = fx.Options(
	fx.Provide(New),
)
