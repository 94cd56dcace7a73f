package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborlight/donations/internal/app/service/processor"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/app/service/webhookevent"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/metrics"
)

// Stripe event payloads are a few KiB; anything near this cap is abuse.
const maxWebhookBody = 1 << 20

// @Summary      Stripe webhook receiver
// @Description  Verifies the event signature against the raw body, records the event once, and reconciles it. A processing failure answers 500 so the provider retries.
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.okResp
// @Failure      400  {object}  handlers.publicErrResp
// @Failure      500  {object}  handlers.publicErrResp
// @Router       /donations_stripe_webhook [post]
func ApiStripeWebhook(
	set *settings.Service,
	events *webhookevent.Service,
	proc *processor.Service,
	prom *metrics.Prometheus,
	log *zap.SugaredLogger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Signature verification needs the raw bytes exactly as sent;
		// nothing may re-serialize the body first.
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, publicErrResp{Error: "unreadable body"})
			return
		}

		creds, err := set.StripeCredentials(c.Request.Context())
		if err != nil {
			logctx.FromGin(c, log).Errorw("webhook_credentials_unavailable", "error", err.Error())
			c.JSON(http.StatusInternalServerError, publicErrResp{Error: "internal error"})
			return
		}

		event, err := stripeapi.VerifyEvent(body, c.GetHeader("Stripe-Signature"), creds.WebhookSecret)
		if err != nil {
			logctx.FromGin(c, log).Warnw("webhook_signature_rejected", "error", err.Error())
			c.JSON(http.StatusBadRequest, publicErrResp{Error: "invalid signature"})
			return
		}

		ctx := logctx.WithEventID(c.Request.Context(), event.ID)
		proceed, rec, err := events.Begin(ctx, event.ID, string(event.Type), body)
		if err != nil {
			logctx.FromCtx(ctx, log).Errorw("webhook_event_record_failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, publicErrResp{Error: "internal error"})
			return
		}
		if !proceed {
			// Already processed; acknowledging again is the idempotent answer.
			c.JSON(http.StatusOK, okResp{OK: true})
			return
		}

		start := time.Now()
		procErr := proc.Process(ctx, stripeapi.NewClient(creds), creds.Mode, &processor.Envelope{
			EventID: event.ID,
			Type:    string(event.Type),
			Data:    event.Data.Raw,
		})
		if prom != nil {
			prom.ObserveProcess("webhook", string(event.Type), start)
		}
		if procErr != nil {
			logctx.FromCtx(ctx, log).Errorw("webhook_event_failed", "type", event.Type, "error", procErr.Error())
			if mErr := events.MarkFailed(ctx, rec.ID, procErr); mErr != nil {
				logctx.FromCtx(ctx, log).Errorw("webhook_event_mark_failed_error", "error", mErr.Error())
			}
			// 500 makes the provider redeliver.
			c.JSON(http.StatusInternalServerError, publicErrResp{Error: "event processing failed"})
			return
		}

		if err := events.MarkSucceeded(ctx, rec.ID); err != nil {
			logctx.FromCtx(ctx, log).Errorw("webhook_event_mark_succeeded_error", "error", err.Error())
			c.JSON(http.StatusInternalServerError, publicErrResp{Error: "internal error"})
			return
		}
		c.JSON(http.StatusOK, okResp{OK: true})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, set *settings.Service, events *webhookevent.Service, proc *processor.Service, prom *metrics.Prometheus, log *zap.SugaredLogger) {
	r.POST("/donations_stripe_webhook", ApiStripeWebhook(set, events, proc, prom, log))
}
