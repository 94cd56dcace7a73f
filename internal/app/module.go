package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/harborlight/donations/internal/app/api/server"
	"github.com/harborlight/donations/internal/app/service/catalog"
	"github.com/harborlight/donations/internal/app/service/checkout"
	"github.com/harborlight/donations/internal/app/service/donor"
	"github.com/harborlight/donations/internal/app/service/managetoken"
	"github.com/harborlight/donations/internal/app/service/processor"
	"github.com/harborlight/donations/internal/app/service/ratelimit"
	"github.com/harborlight/donations/internal/app/service/receipt"
	"github.com/harborlight/donations/internal/app/service/settings"
	"github.com/harborlight/donations/internal/app/service/webhookevent"
	"github.com/harborlight/donations/internal/platform/db"
	"github.com/harborlight/donations/internal/platform/mailer"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/config"
	"github.com/harborlight/donations/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	mailer.Module,
	stripeapi.Module,
	server.Module,
	settings.Module,
	ratelimit.Module,
	catalog.Module,
	donor.Module,
	receipt.Module,
	checkout.Module,
	webhookevent.Module,
	processor.Module,
	managetoken.Module,
)
