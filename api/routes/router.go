package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vendio-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/vendio-backend/api/controllers/webhooks"
	"github.com/angelmondragon/vendio-backend/api/middleware"
	stripewebhook "github.com/angelmondragon/vendio-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/vendio-backend/pkg/config"
	"github.com/angelmondragon/vendio-backend/pkg/db"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
	"github.com/angelmondragon/vendio-backend/pkg/metrics"
	"github.com/angelmondragon/vendio-backend/pkg/redis"
	"github.com/angelmondragon/vendio-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbClient, redisClient, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookMetrics, logg))
	})

	return r
}
