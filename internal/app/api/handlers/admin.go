package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborlight/donations/internal/app/service/catalog"
	"github.com/harborlight/donations/internal/app/service/managetoken"
	"github.com/harborlight/donations/internal/app/service/processor"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/app/service/webhookevent"
	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/response"
	pkgtypes "github.com/harborlight/donations/pkg/types"
)

// AdminDeps bundles what the admin surface calls into.
type AdminDeps struct {
	Settings  *settings.Service
	Events    *webhookevent.Service
	Processor *processor.Service
	Catalog   *catalog.Service
	Tokens    *managetoken.Service
	Stripe    stripeapi.Factory
	Log       *zap.SugaredLogger
}

type cancelSubscriptionReq struct {
	StripeSubscriptionID string `json:"stripe_subscription_id"`
}

type cancelSubscriptionResp struct {
	Status     string     `json:"status"`
	CanceledAt *time.Time `json:"canceled_at"`
}

// @Summary      Cancel a subscription
// @Description  Cancels at the provider and converges the local row.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.cancelSubscriptionReq true "Subscription"
// @Success      200  {object}  response.APIResponse[handlers.cancelSubscriptionResp]
// @Router       /api/v1/admin/cancel_subscription [post]
func ApiAdminCancelSubscription(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelSubscriptionReq
		if err := c.ShouldBindJSON(&req); err != nil || req.StripeSubscriptionID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing stripe_subscription_id"))
			return
		}

		ctx := c.Request.Context()
		creds, err := d.Settings.StripeCredentials(ctx)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		api := d.Stripe(creds)

		detail, err := api.CancelSubscription(ctx, req.StripeSubscriptionID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		row, err := d.Processor.ApplySubscription(ctx, api, creds.Mode, detail)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		logctx.FromGin(c, d.Log).Infow("admin_subscription_canceled", "stripe_subscription_id", req.StripeSubscriptionID)
		c.JSON(http.StatusOK, response.OKT(&cancelSubscriptionResp{Status: string(row.Status), CanceledAt: row.CanceledAt}))
	}
}

type reprocessWebhookEventReq struct {
	StripeEventID string `json:"stripe_event_id"`
}

// @Summary      Reprocess a failed webhook event
// @Description  Re-runs reconciliation from the stored payload. Succeeded events are refused.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.reprocessWebhookEventReq true "Event"
// @Success      200  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/reprocess_webhook_event [post]
func ApiAdminReprocessWebhookEvent(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reprocessWebhookEventReq
		if err := c.ShouldBindJSON(&req); err != nil || req.StripeEventID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing stripe_event_id"))
			return
		}

		ctx := c.Request.Context()
		rec, err := d.Events.GetByStripeEventID(ctx, req.StripeEventID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown event"))
			return
		}
		if rec.Status == pkgtypes.WebhookEventStatusSucceeded {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "event already succeeded"))
			return
		}

		var stored struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Data struct {
				Object json.RawMessage `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Payload, &stored); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, "stored payload is not decodable"))
			return
		}

		creds, err := d.Settings.StripeCredentials(ctx)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		procErr := d.Processor.Process(ctx, d.Stripe(creds), creds.Mode, &processor.Envelope{
			EventID: rec.StripeEventID,
			Type:    rec.Type,
			Data:    stored.Data.Object,
		})
		if procErr != nil {
			if mErr := d.Events.MarkFailed(ctx, rec.ID, procErr); mErr != nil {
				logctx.FromGin(c, d.Log).Errorw("webhook_event_mark_failed_error", "error", mErr.Error())
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, procErr.Error()))
			return
		}
		if err := d.Events.MarkSucceeded(ctx, rec.ID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		logctx.FromGin(c, d.Log).Infow("admin_webhook_event_reprocessed", "stripe_event_id", rec.StripeEventID)
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type resendManageLinkReq struct {
	Email string `json:"email"`
}

// @Summary      Resend a manage link to a donor
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.resendManageLinkReq true "Donor email"
// @Success      200  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/resend_manage_link [post]
func ApiAdminResendManageLink(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resendManageLinkReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing email"))
			return
		}

		if err := d.Tokens.Resend(c.Request.Context(), req.Email); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type syncCatalogItemReq struct {
	CatalogItemID string `json:"catalog_item_id"`
}

type syncCatalogItemResp struct {
	StripeProductID string  `json:"stripe_product_id"`
	StripePriceID   *string `json:"stripe_price_id"`
}

// @Summary      Sync a catalog item's product and price cache
// @Description  Ensures the provider product exists and the cached price matches the item's current amount.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.syncCatalogItemReq true "Catalog item"
// @Success      200  {object}  response.APIResponse[handlers.syncCatalogItemResp]
// @Router       /api/v1/admin/sync_catalog_item [post]
func ApiAdminSyncCatalogItem(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncCatalogItemReq
		if err := c.ShouldBindJSON(&req); err != nil || req.CatalogItemID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing catalog_item_id"))
			return
		}

		ctx := c.Request.Context()
		item, err := d.Catalog.GetItemByID(ctx, req.CatalogItemID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown catalog item"))
			return
		}
		creds, err := d.Settings.StripeCredentials(ctx)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		cached, err := d.Catalog.EnsureItemPrice(ctx, d.Stripe(creds), creds.Mode, item)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		logctx.FromGin(c, d.Log).Infow("admin_catalog_item_synced", "catalog_item_id", item.ID, "mode", creds.Mode)
		c.JSON(http.StatusOK, response.OKT(&syncCatalogItemResp{
			StripeProductID: cached.StripeProductID,
			StripePriceID:   cached.StripePriceID,
		}))
	}
}

type listWebhookEventsReq struct {
	Filters []*pkgtypes.CommonFilter `json:"filters"`
	From    int                      `json:"from"`
	Size    int                      `json:"size"`
}

type listWebhookEventsResp struct {
	Items []*models.StripeWebhookEvent `json:"items"`
	Total int64                        `json:"total"`
}

// @Summary      List recent webhook events
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.listWebhookEventsReq true "Filters and paging"
// @Success      200  {object}  response.APIResponse[handlers.listWebhookEventsResp]
// @Router       /api/v1/admin/list_webhook_events [post]
func ApiAdminListWebhookEvents(d AdminDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req listWebhookEventsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		items, total, err := d.Events.List(c.Request.Context(), req.Filters, req.From, req.Size)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&listWebhookEventsResp{Items: items, Total: total}))
	}
}

func RegisterAdminRoutes(r gin.IRouter, d AdminDeps) {
	r.POST("/cancel_subscription", ApiAdminCancelSubscription(d))
	r.POST("/reprocess_webhook_event", ApiAdminReprocessWebhookEvent(d))
	r.POST("/resend_manage_link", ApiAdminResendManageLink(d))
	r.POST("/sync_catalog_item", ApiAdminSyncCatalogItem(d))
	r.POST("/list_webhook_events", ApiAdminListWebhookEvents(d))
}
