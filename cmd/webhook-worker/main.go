package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendio-backend/api/routes"
	"github.com/angelmondragon/vendio-backend/internal/affiliates"
	"github.com/angelmondragon/vendio-backend/internal/conversations"
	"github.com/angelmondragon/vendio-backend/internal/dispatch"
	"github.com/angelmondragon/vendio-backend/internal/notifications"
	"github.com/angelmondragon/vendio-backend/internal/orders"
	"github.com/angelmondragon/vendio-backend/internal/settlement"
	"github.com/angelmondragon/vendio-backend/internal/shippinglabels"
	"github.com/angelmondragon/vendio-backend/internal/subscriptions"
	"github.com/angelmondragon/vendio-backend/internal/users"
	stripewebhook "github.com/angelmondragon/vendio-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/vendio-backend/pkg/config"
	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
	"github.com/angelmondragon/vendio-backend/pkg/metrics"
	"github.com/angelmondragon/vendio-backend/pkg/redis"
	"github.com/angelmondragon/vendio-backend/pkg/shipping"
	"github.com/angelmondragon/vendio-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "webhook-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "webhook-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	carrierClient, err := shipping.NewClient(cfg.Carrier)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap carrier client", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())
	affiliatesRepo := affiliates.NewRepository(dbClient.DB())
	subscriptionsRepo := subscriptions.NewRepository(dbClient.DB())
	labelsRepo := shippinglabels.NewRepository(dbClient.DB())
	conversationsRepo := conversations.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	notificationsService, err := notifications.NewService(notificationsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	conversationsService, err := conversations.NewService(conversationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversations service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(dbClient, ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(dbClient, settlementRepo, usersRepo, stripeClient, logg, cfg.Fees, cfg.Stripe.TransferTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	affiliatesService, err := affiliates.NewService(affiliatesRepo, subscriptionsRepo, usersRepo, logg, cfg.Affiliate)
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliates service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatch.NewService(ordersRepo, usersRepo, notificationsService, logg, cfg.Dispatch)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	labelsService, err := shippinglabels.NewService(labelsRepo, carrierClient, ordersRepo, usersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping labels service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptionsRepo, usersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:        ordersService,
		OrderFinder:   ordersRepo,
		Settlement:    settlementService,
		Affiliates:    affiliatesService,
		Dispatch:      dispatchService,
		Labels:        labelsService,
		Subscriptions: subscriptionsService,
		Conversations: conversationsService,
		Notifications: notificationsService,
		Users:         usersRepo,
		Stripe:        stripeClient,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting webhook worker")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			stripeClient,
			webhookService,
			webhookGuard,
			webhookMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "webhook worker stopped unexpectedly", err)
		os.Exit(1)
	}
}
