package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anvaya/commerce-backend/api/controllers"
	webhookcontrollers "github.com/anvaya/commerce-backend/api/controllers/webhooks"
	"github.com/anvaya/commerce-backend/api/middleware"
	"github.com/anvaya/commerce-backend/internal/fulfillment"
	"github.com/anvaya/commerce-backend/internal/orders"
	"github.com/anvaya/commerce-backend/internal/returns"
	paymentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/payment"
	shipmentwebhook "github.com/anvaya/commerce-backend/internal/webhooks/shipment"
	"github.com/anvaya/commerce-backend/pkg/config"
	"github.com/anvaya/commerce-backend/pkg/db"
	"github.com/anvaya/commerce-backend/pkg/enums"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/metrics"
	"github.com/anvaya/commerce-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promGatherer prometheus.Gatherer,
	webhookMetrics *metrics.WebhookMetrics,
	ordersSvc orders.Service,
	returnsSvc returns.Service,
	pipelineSvc *fulfillment.Service,
	paymentWebhookSvc *paymentwebhook.Service,
	paymentWebhookGuard *paymentwebhook.IdempotencyGuard,
	shipmentWebhookSvc *shipmentwebhook.Service,
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

	if promGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(paymentWebhookSvc, paymentWebhookGuard, cfg.Razorpay, webhookMetrics, logg))
		r.Post("/shiprocket", webhookcontrollers.ShiprocketWebhook(shipmentWebhookSvc, cfg.Shiprocket, webhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersSvc, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.Post("/{orderId}/returns", controllers.CreateReturn(returnsSvc, logg))
		})
		r.Get("/returns", controllers.ListMyReturns(returnsSvc, logg))
		r.Get("/returns/{returnId}", controllers.GetReturn(returnsSvc, logg))
	})

	r.Route("/api/staff/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleStaff, enums.UserRoleAdmin))

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/", controllers.PipelineBoard(pipelineSvc, logg))
			r.Post("/advance", controllers.BulkAdvanceOrders(pipelineSvc, logg))
			r.Post("/{orderId}/advance", controllers.AdvanceOrder(pipelineSvc, logg))
			r.Post("/{orderId}/materials", controllers.SetMaterials(pipelineSvc, logg))
			r.Post("/{orderId}/notes", controllers.AddNote(pipelineSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.ListReturns(returnsSvc, logg))
			r.Post("/{returnId}/status", controllers.UpdateReturnStatus(returnsSvc, logg))
		})
	})

	return r
}
