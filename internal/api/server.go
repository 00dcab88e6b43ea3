// Package api serves the dashboard's HTTP JSON API and its live views.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/httpx"
	"github.com/canchallena/panel/internal/realtime"
	"github.com/canchallena/panel/internal/service"
)

// Services groups what the handlers call.
type Services struct {
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Alerts       *service.AlertService
	Clients      *service.ClientService
	Dashboard    *service.DashboardService
}

type Options struct {
	AllowedOrigins []string
	// RatePerSecond and RateBurst bound each client address; zero disables.
	RatePerSecond float64
	RateBurst     int
	Location      *time.Location
}

type Server struct {
	svc      Services
	hub      *realtime.Hub
	opts     Options
	loc      *time.Location
	limiter  *clientLimiter
	upgrader websocket.Upgrader
	log      *zap.Logger
	now      func() time.Time
}

func NewServer(svc Services, hub *realtime.Hub, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		svc:  svc,
		hub:  hub,
		opts: opts,
		loc:  loc,
		log:  log,
		now:  time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	if opts.RatePerSecond > 0 {
		s.limiter = newClientLimiter(opts.RatePerSecond, opts.RateBurst)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	r.Get("/ws", s.handleLiveView)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		r.Get("/venues", s.handleVenues)
		r.Get("/grid", s.handleGrid)
		r.Get("/free-starts", s.handleFreeStarts)
		r.Get("/occupancy", s.handleOccupancy)
		r.Get("/dead-hours", s.handleDeadHours)
		r.Get("/dashboard", s.handleDashboard)

		r.Post("/slots/block", s.handleBlock)
		r.Post("/slots/{id}/unblock", s.handleUnblock)

		r.Get("/bookings", s.handleBookingsList)
		r.Post("/bookings", s.handleBookingCreate)
		r.Get("/bookings/{id}", s.handleBookingGet)
		r.Put("/bookings/{id}", s.handleBookingEdit)
		r.Post("/bookings/{id}/cancel", s.handleBookingCancel)
		r.Post("/bookings/{id}/status", s.handleBookingStatus)

		r.Get("/alerts", s.handleAlertsList)
		r.Post("/alerts/read", s.handleAlertsRead)
		r.Post("/alerts/{id}/resolve", s.handleAlertResolve)

		r.Get("/clients", s.handleClientsSearch)
		r.Get("/clients/{id}", s.handleClientDetail)
		r.Get("/conversations", s.handleConversations)
		r.Get("/conversations/{senderID}", s.handleThread)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
