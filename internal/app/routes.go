package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)
	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(app.validateRequest)

	r.Get("/healthcheck", app.GetHealth)
	r.Get("/openapi.yaml", app.GetOpenAPIDocument)

	r.Route("/shows/{showId}", func(r chi.Router) {
		r.Post("/bookings", app.CreateBookingHandler)
		r.Get("/seats", app.GetAvailableSeatsHandler)
	})

	r.Route("/bookings/{bookingId}", func(r chi.Router) {
		r.Get("/", app.GetBookingHandler)
		r.Delete("/", app.CancelBookingHandler)
		r.Delete("/waitlist", app.CancelWaitingHandler)
	})

	r.Get("/users/{userId}/bookings", app.GetUserBookingsHandler)

	return r
}
