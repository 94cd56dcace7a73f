package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) map[string]bool {
	set := make(map[string]bool)
	for _, rt := range r.Routes() {
		set[rt.Method+" "+rt.Path] = true
	}
	return set
}

func TestRegisterDonationRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDonationRoutes(r, nil, nil, nil, nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /donations_create_checkout_session"])
	require.True(t, routes["POST /donations_create_subscription_session"])
	require.True(t, routes["POST /donations_get_checkout_status"])
	require.True(t, routes["POST /donations_request_manage_link"])
	require.True(t, routes["POST /donations_create_portal_session"])
}

func TestRegisterWebhookRoutes_RegistersEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r, nil, nil, nil, nil, nil)

	require.True(t, routeSet(r)["POST /donations_stripe_webhook"])
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), AdminDeps{})

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/admin/cancel_subscription"])
	require.True(t, routes["POST /api/v1/admin/reprocess_webhook_event"])
	require.True(t, routes["POST /api/v1/admin/resend_manage_link"])
	require.True(t, routes["POST /api/v1/admin/sync_catalog_item"])
	require.True(t, routes["POST /api/v1/admin/list_webhook_events"])
}
