package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printmitra/printmitra-backend/api/controllers"
	webhookcontrollers "github.com/printmitra/printmitra-backend/api/controllers/webhooks"
	"github.com/printmitra/printmitra-backend/api/middleware"
	"github.com/printmitra/printmitra-backend/internal/conversion"
	internalorders "github.com/printmitra/printmitra-backend/internal/orders"
	"github.com/printmitra/printmitra-backend/internal/payments"
	"github.com/printmitra/printmitra-backend/internal/printing"
	"github.com/printmitra/printmitra-backend/pkg/config"
	"github.com/printmitra/printmitra-backend/pkg/db"
	"github.com/printmitra/printmitra-backend/pkg/logger"
	"github.com/printmitra/printmitra-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Orders   internalorders.Service
	Payments payments.Service
	Pipeline *conversion.Pipeline
	Webhooks *conversion.WebhookService
	Fleet    printing.FleetMonitor
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	r.Post("/webhooks/render", webhookcontrollers.RenderWebhook(p.Webhooks, p.Config.Conversion.WebhookSecret, p.Logger))

	// Unversioned alias kept for gateway callbacks configured against the
	// bare path.
	r.Post("/payment/verify", controllers.PaymentVerify(p.Payments, p.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payment/verify", controllers.PaymentVerify(p.Payments, p.Logger))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(p.Orders, p.Logger))
			r.Get("/", controllers.OrderList(p.Orders, p.Logger))
			r.Get("/{orderRef}", controllers.OrderDetail(p.Orders, p.Logger))
			r.Post("/{orderRef}/transition", controllers.OrderTransition(p.Orders, p.Logger))
		})

		r.Get("/conversions/{jobId}", controllers.ConversionStatus(p.Pipeline, p.Logger))

		r.Route("/printers", func(r chi.Router) {
			r.Get("/health", controllers.PrinterHealth(p.Fleet, p.Logger))
			r.Get("/queues", controllers.PrinterQueues(p.Fleet, p.Logger))
			r.Post("/{printerIndex}/queue/pause", controllers.PrinterQueuePause(p.Fleet, p.Logger))
			r.Post("/{printerIndex}/queue/resume", controllers.PrinterQueueResume(p.Fleet, p.Logger))
		})
	})

	return r
}
