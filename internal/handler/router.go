package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	custommiddleware "github.com/ndemidov/smmpanel-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware SMM-панели.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Подлинность события подтверждает подпись тела, не токен
		r.Post("/webhooks/payment", h.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/services", h.GetServices)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Post("/orders/{orderID}/cancel", h.CancelOrder)

			r.Get("/balance", h.GetBalance)
			r.Get("/balance/history", h.GetBalanceHistory)

			r.Post("/payments/checkout", h.CreateCheckout)
			r.Get("/payments", h.GetPayments)

			r.Post("/tickets", h.CreateTicket)
			r.Get("/tickets", h.GetTickets)
			r.Get("/tickets/{ticketID}", h.GetTicket)
			r.Post("/tickets/{ticketID}/reply", h.ReplyTicket)
			r.Post("/tickets/{ticketID}/close", h.CloseTicket)

			r.Post("/keys", h.CreateAPIKey)
			r.Get("/keys", h.GetAPIKeys)
			r.Delete("/keys/{keyID}", h.DeleteAPIKey)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Get("/users", h.AdminGetUsers)
			r.Patch("/users/{userID}", h.AdminUpdateUser)
			r.Delete("/users/{userID}", h.AdminDeleteUser)
			r.Post("/users/{userID}/balance", h.AdminAdjustBalance)

			r.Post("/orders/{orderID}/refund", h.AdminRefundOrder)

			r.Get("/payments", h.AdminGetPayments)
			r.Post("/payments", h.AdminCreatePayment)

			r.Get("/providers", h.AdminGetProviders)
			r.Post("/providers", h.AdminCreateProvider)
			r.Put("/providers/{providerID}", h.AdminUpdateProvider)
			r.Delete("/providers/{providerID}", h.AdminDeleteProvider)
			r.Post("/providers/{providerID}/test", h.AdminTestProvider)
			r.Post("/providers/{providerID}/sync", h.AdminSyncProvider)

			r.Get("/services", h.AdminGetServices)
			r.Patch("/services/{serviceID}", h.AdminUpdateService)

			r.Get("/settings", h.AdminGetSettings)
			r.Put("/settings/{key}", h.AdminSetSetting)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorKind(w, http.StatusNotFound, "not_found", "route not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeErrorKind(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}
