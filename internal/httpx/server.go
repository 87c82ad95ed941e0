// Package httpx wires the marketplace's HTTP API. Authentication happens
// upstream; the gateway forwards the verified user id in X-User-ID.
package httpx

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/uzbk/farmmarket/internal/config"
	"github.com/uzbk/farmmarket/internal/geo"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/realtime"
)

const userIDHeader = "X-User-ID"

type Server struct {
	DB          *sql.DB
	Redis       *redis.Client
	Realtime    *realtime.Publisher
	Geocoder    *geo.Client
	Producers   Producers
	ServiceName string
	AdminUserID string
}

// Producers groups the per-topic event writers.
type Producers struct {
	OrderPlaced        *kafkax.Producer
	OrderStatusChanged *kafkax.Producer
	ListingSold        *kafkax.Producer
	ReviewCreated      *kafkax.Producer
}

func NewServer(db *sql.DB, rdb *redis.Client, geocoder *geo.Client, producers Producers, cfg *config.Config) *Server {
	return &Server{
		DB:          db,
		Redis:       rdb,
		Realtime:    realtime.NewPublisher(rdb),
		Geocoder:    geocoder,
		Producers:   producers,
		ServiceName: cfg.Service.Name,
		AdminUserID: cfg.Service.AdminUserID,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// the stream holds its connection open, so it sits outside the
		// request timeout applied to everything else
		r.Get("/chat/rooms/{roomID}/stream", s.streamRoom)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))
			s.apiRoutes(r)
		})
	})

	return r
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		r.Get("/", s.listListings)
		r.Post("/", s.createListing)
		r.Get("/{listingID}", s.getListing)
		r.Patch("/{listingID}", s.updateListing)
		r.Patch("/{listingID}/status", s.updateListingStatus)
		r.Get("/{listingID}/reviews", s.listListingReviews)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.placeOrder)
		r.Get("/", s.listOrders)
		r.Get("/{orderID}", s.getOrder)
		r.Get("/{orderID}/status", s.getOrderStatus)
		r.Patch("/{orderID}/status", s.advanceOrderStatus)
	})

	r.Route("/addresses", func(r chi.Router) {
		r.Get("/", s.listAddresses)
		r.Post("/", s.upsertAddress)
		r.Put("/{addressID}", s.upsertAddress)
		r.Delete("/{addressID}", s.deleteAddress)
	})

	r.Route("/reviews", func(r chi.Router) {
		r.Post("/", s.createReview)
		r.Get("/received", s.listReviewsReceived)
		r.Get("/given", s.listReviewsGiven)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Get("/rooms", s.listRooms)
		r.Post("/rooms", s.openRoom)
		r.Get("/rooms/{roomID}/messages", s.listMessages)
		r.Post("/rooms/{roomID}/messages", s.postMessage)
		r.Post("/rooms/{roomID}/read", s.markRead)
		r.Post("/rooms/{roomID}/leave", s.leaveRoom)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Get("/", s.getProfile)
		r.Post("/", s.createProfile)
		r.Patch("/nickname", s.updateNickname)
		r.Patch("/region", s.updateRegion)
		r.Get("/nickname-available", s.nicknameAvailable)
	})

	r.Route("/verification", func(r chi.Router) {
		r.Get("/", s.getVerification)
		r.Post("/", s.submitVerification)
	})

	r.Route("/admin/verifications", func(r chi.Router) {
		r.Get("/", s.listPendingVerifications)
		r.Post("/{userID}/approve", s.approveVerification)
		r.Post("/{userID}/reject", s.rejectVerification)
	})

	r.Get("/farms", s.listFarms)
}

// userID extracts the caller identity injected by the auth gateway.
// Returns "" (and writes a 401) when the header is missing.
func userID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
	}
	return id
}
