package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/viniciusprado/bazarlivre-backend/api/controllers"
	webhookcontrollers "github.com/viniciusprado/bazarlivre-backend/api/controllers/webhooks"
	"github.com/viniciusprado/bazarlivre-backend/api/middleware"
	"github.com/viniciusprado/bazarlivre-backend/internal/alerts"
	checkoutsvc "github.com/viniciusprado/bazarlivre-backend/internal/checkout"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/sales"
	"github.com/viniciusprado/bazarlivre-backend/internal/settlement"
	"github.com/viniciusprado/bazarlivre-backend/internal/webhooks"
	"github.com/viniciusprado/bazarlivre-backend/pkg/config"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
	pkgpaypal "github.com/viniciusprado/bazarlivre-backend/pkg/paypal"
	"github.com/viniciusprado/bazarlivre-backend/pkg/redis"
	pkgstripe "github.com/viniciusprado/bazarlivre-backend/pkg/stripe"
)

// Gateways groups the per-provider pieces the router mounts. A nil adapter
// leaves that provider's routes unmounted, so a deployment can run with a
// subset of providers configured.
type Gateways struct {
	Stripe      gateway.Adapter
	StripeGuard *webhooks.IdempotencyGuard

	PayPal      gateway.Adapter
	PayPalGuard *webhooks.IdempotencyGuard

	MercadoPago      gateway.Adapter
	MercadoPagoGuard *webhooks.IdempotencyGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	stripeClient *pkgstripe.Client,
	paypalClient *pkgpaypal.Client,
	gateways Gateways,
	checkoutService checkoutsvc.Service,
	orchestrator settlement.Orchestrator,
	alertsService alerts.Service,
	salesRepo sales.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if gateways.Stripe != nil && stripeClient != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(gateways.Stripe, orchestrator, stripeClient, gateways.StripeGuard, logg))
		}
		if gateways.PayPal != nil && paypalClient != nil {
			r.Post("/paypal", webhookcontrollers.PayPalWebhook(gateways.PayPal, orchestrator, paypalClient, cfg.PayPal.WebhookID, gateways.PayPalGuard, logg))
		}
		if gateways.MercadoPago != nil {
			r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(gateways.MercadoPago, orchestrator, gateways.MercadoPagoGuard, logg))
		}
	})

	r.Post("/api/v1/checkout/{gateway}", controllers.Checkout(checkoutService, logg))
	if capturer, ok := gateways.PayPal.(gateway.Capturer); ok {
		r.Post("/api/v1/paypal/orders/{orderID}/capture", controllers.CapturePayPalOrder(capturer, orchestrator, logg))
	}

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.ListSettlementAlerts(alertsService, logg))
			r.Post("/{alertID}/resolve", controllers.ResolveSettlementAlert(alertsService, logg))
		})
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.ListSalesByTransaction(salesRepo, logg))
			r.Post("/{saleID}/payout", controllers.MarkSalePayoutPaid(salesRepo, logg))
		})
	})

	return r
}
