package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/harborlight/donations/docs"
	"github.com/harborlight/donations/internal/app/api/handlers"
	mw "github.com/harborlight/donations/internal/app/api/middleware"
	"github.com/harborlight/donations/internal/app/service/catalog"
	"github.com/harborlight/donations/internal/app/service/checkout"
	"github.com/harborlight/donations/internal/app/service/managetoken"
	"github.com/harborlight/donations/internal/app/service/processor"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/app/service/webhookevent"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	cfgpkg "github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newPrometheus() *metrics.Prometheus {
	return metrics.NewPrometheus("donations")
}

type routeDeps struct {
	fx.In

	Engine    *gin.Engine
	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Prom      *metrics.Prometheus
	Settings  *settings.Service
	Checkout  *checkout.Service
	Events    *webhookevent.Service
	Processor *processor.Service
	Catalog   *catalog.Service
	Tokens    *managetoken.Service
	Stripe    stripeapi.Factory
}

func registerRoutes(d routeDeps) {
	r := d.Engine

	if d.Cfg.MetricsAddr != "" {
		// Keep GET /metrics off the public listener.
		r.Use(d.Prom.HandlerFunc())
		d.Prom.ServeOn(d.Cfg.MetricsAddr)
		d.Log.Infow("metrics started", "addr", d.Cfg.MetricsAddr)
	} else {
		d.Prom.Use(r)
	}

	// Public browser-facing group: CORS locked to the portal origin.
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware(), mw.CORSMiddleware(d.Cfg.SiteOrigin))
	handlers.RegisterHealthRoutes(pub)
	handlers.RegisterDonationRoutes(pub, d.Log, d.Checkout, d.Tokens, d.Settings, d.Stripe)

	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Provider-facing webhook: no CORS, raw body semantics.
	wh := r.Group("/")
	wh.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(wh, d.Settings, d.Events, d.Processor, d.Prom, d.Log)

	// Admin APIs behind the role gate.
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	admin := apiV1.Group("/admin")
	admin.Use(mw.AdminAuthMiddleware(d.Cfg.Admin.JWTSecret))
	handlers.RegisterAdminRoutes(admin, handlers.AdminDeps{
		Settings:  d.Settings,
		Events:    d.Events,
		Processor: d.Processor,
		Catalog:   d.Catalog,
		Tokens:    d.Tokens,
		Stripe:    d.Stripe,
		Log:       d.Log,
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newPrometheus),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
