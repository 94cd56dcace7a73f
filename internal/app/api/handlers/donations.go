package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborlight/donations/internal/app/service/checkout"
	"github.com/harborlight/donations/internal/app/service/managetoken"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
)

// Public donation endpoints speak the portal's flat JSON dialect with
// camelCase keys, not the admin envelope. The paths and bodies are a frozen
// contract with the deployed frontend.

type createCheckoutSessionReq struct {
	Items             []checkout.CartItem `json:"items"`
	CustomAmountCents int64               `json:"customAmountCents"`
}

type createSubscriptionSessionReq struct {
	MonthlyAmountCents int64 `json:"monthlyAmountCents"`
}

type getCheckoutStatusReq struct {
	SessionID string `json:"sessionId"`
}

type requestManageLinkReq struct {
	Email string `json:"email"`
}

type createPortalSessionReq struct {
	Token string `json:"token"`
}

type urlResp struct {
	URL string `json:"url"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type publicErrResp struct {
	Error     string `json:"error"`
	RetryInMs int64  `json:"retryInMs,omitempty"`
	// Provider diagnostics, present on 502 only.
	ProviderErrorType string `json:"providerErrorType,omitempty"`
	ProviderErrorCode string `json:"providerErrorCode,omitempty"`
	ProviderRequestID string `json:"providerRequestId,omitempty"`
}

// writePublicError maps service errors onto the public status taxonomy:
// 422 validation, 429 rate limited, 502 upstream, 500 everything else.
func writePublicError(c *gin.Context, log *zap.SugaredLogger, err error) {
	var rl *checkout.RateLimitedError
	var up *stripeapi.UpstreamError
	switch {
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: err.Error()})
	case errors.As(err, &rl):
		c.JSON(http.StatusTooManyRequests, publicErrResp{Error: "too many requests", RetryInMs: rl.RetryIn.Milliseconds()})
	case errors.As(err, &up):
		logctx.FromGin(c, log).Errorw("stripe_upstream_error", "op", up.Op, "type", up.Type, "code", up.Code, "request_id", up.RequestID)
		c.JSON(http.StatusBadGateway, publicErrResp{
			Error:             "payment provider error",
			ProviderErrorType: up.Type,
			ProviderErrorCode: up.Code,
			ProviderRequestID: up.RequestID,
		})
	default:
		logctx.FromGin(c, log).Errorw("donation_request_failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, publicErrResp{Error: "internal error"})
	}
}

// @Summary      Create one-time donation checkout session
// @Description  Validates the cart and returns a hosted checkout URL.
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        request body handlers.createCheckoutSessionReq true "Cart"
// @Success      200  {object}  handlers.urlResp
// @Failure      422  {object}  handlers.publicErrResp
// @Failure      429  {object}  handlers.publicErrResp
// @Failure      502  {object}  handlers.publicErrResp
// @Router       /donations_create_checkout_session [post]
func ApiCreateCheckoutSession(svc *checkout.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCheckoutSessionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: "invalid request body"})
			return
		}

		url, err := svc.CreateCheckoutSession(c.Request.Context(), &checkout.CreateCheckoutRequest{
			Items:             req.Items,
			CustomAmountCents: req.CustomAmountCents,
			ClientIP:          c.ClientIP(),
			UserAgent:         c.Request.UserAgent(),
		})
		if err != nil {
			writePublicError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, urlResp{URL: url})
	}
}

// @Summary      Create monthly donation checkout session
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        request body handlers.createSubscriptionSessionReq true "Monthly amount"
// @Success      200  {object}  handlers.urlResp
// @Failure      422  {object}  handlers.publicErrResp
// @Router       /donations_create_subscription_session [post]
func ApiCreateSubscriptionSession(svc *checkout.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSubscriptionSessionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: "invalid request body"})
			return
		}

		url, err := svc.CreateSubscriptionSession(c.Request.Context(), req.MonthlyAmountCents, c.ClientIP())
		if err != nil {
			writePublicError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, urlResp{URL: url})
	}
}

// @Summary      Read checkout session status
// @Description  Backs the post-redirect thank-you page.
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        request body handlers.getCheckoutStatusReq true "Session id"
// @Success      200  {object}  checkout.CheckoutStatus
// @Router       /donations_get_checkout_status [post]
func ApiGetCheckoutStatus(svc *checkout.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req getCheckoutStatusReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: "invalid request body"})
			return
		}

		status, err := svc.GetCheckoutStatus(c.Request.Context(), req.SessionID)
		if err != nil {
			writePublicError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// @Summary      Request a manage-donations link by email
// @Description  Always answers ok so the response cannot be used to probe which emails have donated.
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        request body handlers.requestManageLinkReq true "Email"
// @Success      200  {object}  handlers.okResp
// @Router       /donations_request_manage_link [post]
func ApiRequestManageLink(svc *managetoken.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requestManageLinkReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
			c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: "email is required"})
			return
		}

		if err := svc.RequestLink(c.Request.Context(), req.Email, c.ClientIP()); err != nil {
			// Still ok: the body must not reveal whether the email exists,
			// and an internal failure here is indistinguishable from that.
			logctx.FromGin(c, log).Errorw("manage_link_request_failed", "error", err.Error())
		}
		c.JSON(http.StatusOK, okResp{OK: true})
	}
}

// @Summary      Redeem a manage token for a billing portal session
// @Tags         Donations
// @Accept       json
// @Produce      json
// @Param        request body handlers.createPortalSessionReq true "Token"
// @Success      200  {object}  handlers.urlResp
// @Failure      401  {object}  handlers.publicErrResp
// @Router       /donations_create_portal_session [post]
func ApiCreatePortalSession(svc *managetoken.Service, set *settings.Service, stripe stripeapi.Factory, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPortalSessionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, publicErrResp{Error: "invalid request body"})
			return
		}

		creds, err := set.StripeCredentials(c.Request.Context())
		if err != nil {
			writePublicError(c, log, err)
			return
		}
		url, err := svc.Redeem(c.Request.Context(), stripe(creds), req.Token)
		if err != nil {
			if errors.Is(err, managetoken.ErrInvalidToken) {
				c.JSON(http.StatusUnauthorized, publicErrResp{Error: managetoken.ErrInvalidToken.Error()})
				return
			}
			writePublicError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, urlResp{URL: url})
	}
}

func RegisterDonationRoutes(r gin.IRouter, log *zap.SugaredLogger, co *checkout.Service, mt *managetoken.Service, set *settings.Service, stripe stripeapi.Factory) {
	r.POST("/donations_create_checkout_session", ApiCreateCheckoutSession(co, log))
	r.POST("/donations_create_subscription_session", ApiCreateSubscriptionSession(co, log))
	r.POST("/donations_get_checkout_status", ApiGetCheckoutStatus(co, log))
	r.POST("/donations_request_manage_link", ApiRequestManageLink(mt, log))
	r.POST("/donations_create_portal_session", ApiCreatePortalSession(mt, set, stripe, log))
}
