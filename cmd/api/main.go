package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/viniciusprado/bazarlivre-backend/api/routes"
	"github.com/viniciusprado/bazarlivre-backend/internal/alerts"
	"github.com/viniciusprado/bazarlivre-backend/internal/checkout"
	"github.com/viniciusprado/bazarlivre-backend/internal/commission"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway/mercadopagogw"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway/paypalgw"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway/stripegw"
	"github.com/viniciusprado/bazarlivre-backend/internal/intents"
	"github.com/viniciusprado/bazarlivre-backend/internal/inventory"
	"github.com/viniciusprado/bazarlivre-backend/internal/products"
	"github.com/viniciusprado/bazarlivre-backend/internal/sales"
	"github.com/viniciusprado/bazarlivre-backend/internal/settlement"
	"github.com/viniciusprado/bazarlivre-backend/internal/webhooks"
	"github.com/viniciusprado/bazarlivre-backend/pkg/config"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
	pkgmercadopago "github.com/viniciusprado/bazarlivre-backend/pkg/mercadopago"
	"github.com/viniciusprado/bazarlivre-backend/pkg/metrics"
	"github.com/viniciusprado/bazarlivre-backend/pkg/migrate"
	pkgpaypal "github.com/viniciusprado/bazarlivre-backend/pkg/paypal"
	"github.com/viniciusprado/bazarlivre-backend/pkg/redis"
	pkgstripe "github.com/viniciusprado/bazarlivre-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(bootCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	var (
		adapters     []gateway.Adapter
		gateways     routes.Gateways
		stripeClient *pkgstripe.Client
		paypalClient *pkgpaypal.Client
	)

	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(bootCtx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(bootCtx, "failed to bootstrap stripe", err)
			os.Exit(1)
		}
		stripeAdapter, err := stripegw.New(stripegw.NewPaymentIntentClient(stripeClient))
		if err != nil {
			logg.Error(bootCtx, "failed to build stripe adapter", err)
			os.Exit(1)
		}
		guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe")
		if err != nil {
			logg.Error(bootCtx, "failed to build stripe idempotency guard", err)
			os.Exit(1)
		}
		adapters = append(adapters, stripeAdapter)
		gateways.Stripe = stripeAdapter
		gateways.StripeGuard = guard
	}

	if cfg.PayPal.ClientID != "" {
		paypalClient, err = pkgpaypal.NewClient(bootCtx, cfg.PayPal, logg)
		if err != nil {
			logg.Error(bootCtx, "failed to bootstrap paypal", err)
			os.Exit(1)
		}
		paypalAdapter, err := paypalgw.NewAdapter(paypalClient.API(), cfg.PayPal.ReturnURL, cfg.PayPal.CancelURL, logg)
		if err != nil {
			logg.Error(bootCtx, "failed to build paypal adapter", err)
			os.Exit(1)
		}
		guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "paypal")
		if err != nil {
			logg.Error(bootCtx, "failed to build paypal idempotency guard", err)
			os.Exit(1)
		}
		adapters = append(adapters, paypalAdapter)
		gateways.PayPal = paypalAdapter
		gateways.PayPalGuard = guard
	}

	if cfg.MercadoPago.AccessToken != "" {
		mpClient, err := pkgmercadopago.NewClient(cfg.MercadoPago, cfg.Gateway.RequestTimeout)
		if err != nil {
			logg.Error(bootCtx, "failed to bootstrap mercadopago", err)
			os.Exit(1)
		}
		mpAdapter, err := mercadopagogw.NewAdapter(mpClient, cfg.MercadoPago.SuccessURL, cfg.MercadoPago.FailureURL, logg)
		if err != nil {
			logg.Error(bootCtx, "failed to build mercadopago adapter", err)
			os.Exit(1)
		}
		guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "mercadopago")
		if err != nil {
			logg.Error(bootCtx, "failed to build mercadopago idempotency guard", err)
			os.Exit(1)
		}
		adapters = append(adapters, mpAdapter)
		gateways.MercadoPago = mpAdapter
		gateways.MercadoPagoGuard = guard
	}

	if len(adapters) == 0 {
		logg.Error(bootCtx, "no payment gateway configured", nil)
		os.Exit(1)
	}
	registry := gateway.NewRegistry(adapters...)

	fallbackPercent, err := decimal.NewFromString(cfg.Commission.DefaultPercent)
	if err != nil {
		logg.Error(bootCtx, "invalid default commission percent", err)
		os.Exit(1)
	}
	policy, err := commission.NewPolicy(commission.NewRepository(dbClient.DB()), logg, fallbackPercent)
	if err != nil {
		logg.Error(bootCtx, "failed to build commission policy", err)
		os.Exit(1)
	}

	alertsService, err := alerts.NewService(alerts.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(bootCtx, "failed to build alerts service", err)
		os.Exit(1)
	}

	salesRepo := sales.NewRepository(dbClient.DB())

	checkoutService, err := checkout.NewService(
		registry,
		products.NewRepository(dbClient.DB()),
		intents.NewRepository(dbClient.DB()),
		policy,
		cfg.Gateway,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(bootCtx, "failed to build checkout service", err)
		os.Exit(1)
	}

	orchestrator, err := settlement.New(
		dbClient,
		intents.NewRepository(dbClient.DB()),
		inventory.NewRepository(dbClient.DB()),
		salesRepo,
		alertsService,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(bootCtx, "failed to build settlement orchestrator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			stripeClient,
			paypalClient,
			gateways,
			checkoutService,
			orchestrator,
			alertsService,
			salesRepo,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down api server", err)
		}
	}

	if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
		logg.Error(ctx, "error closing resources", err)
	}
	logg.Info(ctx, "api server stopped")
}
