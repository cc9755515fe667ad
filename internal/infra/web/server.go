package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/application"
)

type Server struct {
	facade *application.PaymentFacade
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(facade *application.PaymentFacade, auth *AuthManager, logger *zerolog.Logger) *Server {
	return &Server{
		facade: facade,
		auth:   auth,
		log:    logger,
	}
}

// Router builds the API router. All /api/v1 routes require a valid JWT;
// health and metrics are open (they are expected to be bound on an internal
// port in production).
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/escrows", func(r chi.Router) {
			r.Post("/", s.createEscrowHandler())
			r.Get("/{shipmentID}", s.listShipmentHandler())
			r.Get("/{shipmentID}/refundable", s.refundableHandler())
			r.Post("/{shipmentID}/delivery", s.confirmDeliveryHandler())
			r.Post("/{shipmentID}/release", s.releaseEscrowHandler())
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Post("/", s.createRefundRequestHandler())
			r.Post("/{requestID}/approve", s.approveRefundHandler())
			r.Post("/{requestID}/reject", s.rejectRefundHandler())
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", s.createSubscriptionHandler())
			r.Post("/{subscriptionID}/cancel", s.cancelSubscriptionHandler())
		})

		r.Put("/config/{key}", s.updateConfigHandler())
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		r = r.WithContext(withActor(r.Context(), claims.Subject, claims.Role))
		next.ServeHTTP(w, r)
	})
}
