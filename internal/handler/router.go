package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/shop-admin/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware консоли.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.TraceID)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	r.Post("/signin", h.SignIn)
	r.Post("/signout", h.SignOut)
	r.Post("/register/account", h.RegisterAccount)
	r.Post("/register/shop", h.RegisterShop)
	r.Get("/plan", h.Plan)
	r.Post("/plan/subscribe", h.Subscribe)

	r.Group(func(r chi.Router) {
		r.Use(h.access.Middleware)

		r.Get("/home", h.Home)
		r.Get("/notice", h.PaymentNotice)
		r.Post("/notice/dismiss", h.DismissNotice)
		r.Get("/completeProfile", h.CompleteProfile)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.Settings)

			r.Get("/profile", h.Profile)
			r.Put("/profile", h.UpdateProfile)

			r.Get("/businesshours", h.BusinessHours)
			r.Put("/businesshours", h.ReplaceBusinessHours)
			r.Post("/businesshours/days/{day}/toggle", h.ToggleDay)
			r.Post("/businesshours/days/{day}/slots", h.AddTimeSlot)
			r.Patch("/businesshours/days/{day}/slots/{slot}", h.SetTimeSlot)
			r.Delete("/businesshours/days/{day}/slots/{slot}", h.RemoveTimeSlot)

			r.Put("/notifications", h.RegisterNotifications)

			r.Get("/payments", h.Payments)
			r.Put("/payments/whatsapp", h.SetWhatsApp)
			r.Get("/mpconnect", h.ConnectMercadoPago)

			r.Get("/activity", h.Activity)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
