package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/uzbk/farmmarket/internal/events"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

type listingReq struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	RegionCode    *string          `json:"region_code"`
	RegionName    *string          `json:"region_name"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	ImagePaths    []string         `json:"image_paths"`
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	sellerID := userID(w, r)
	if sellerID == "" {
		return
	}

	var req listingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Title == "" || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and category are required"})
		return
	}

	listing, err := store.CreateListing(r.Context(), s.DB, store.CreateListingRequest{
		SellerID:      sellerID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		RegionCode:    req.RegionCode,
		RegionName:    req.RegionName,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		ImagePaths:    req.ImagePaths,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := store.GetListing(r.Context(), s.DB, chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := store.ListListingsCursor(r.Context(), s.DB, store.ListingFilter{
		Category:   q.Get("category"),
		RegionCode: q.Get("region"),
		SellerID:   q.Get("seller"),
		Search:     q.Get("q"),
	}, q.Get("cursor"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) updateListing(w http.ResponseWriter, r *http.Request) {
	sellerID := userID(w, r)
	if sellerID == "" {
		return
	}

	var req listingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	listing, err := store.UpdateListing(r.Context(), s.DB, chi.URLParam(r, "listingID"), sellerID,
		store.UpdateListingRequest{
			Title:         req.Title,
			Description:   req.Description,
			Category:      req.Category,
			RegionCode:    req.RegionCode,
			RegionName:    req.RegionName,
			Price:         req.Price,
			StockQuantity: req.StockQuantity,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type listingStatusReq struct {
	Status     string  `json:"status"`
	SoldRoomID *string `json:"sold_room_id"`
}

func (s *Server) updateListingStatus(w http.ResponseWriter, r *http.Request) {
	sellerID := userID(w, r)
	if sellerID == "" {
		return
	}

	var req listingStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !models.ValidListingStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown listing status"})
		return
	}

	listing, err := store.UpdateListingStatus(r.Context(), s.DB,
		chi.URLParam(r, "listingID"), sellerID, req.Status, req.SoldRoomID)
	if err != nil {
		writeError(w, err)
		return
	}

	if listing.Status == models.ListingStatusSold {
		s.afterListingSold(r, listing)
	}

	writeJSON(w, http.StatusOK, listing)
}

// afterListingSold posts the sold marker into the winning room and
// publishes the ListingSold event. Best effort after the status commit.
func (s *Server) afterListingSold(r *http.Request, listing *models.Listing) {
	ctx := r.Context()

	if listing.SoldRoomID != nil {
		marker, err := chatSoldMarker(listing)
		if err != nil {
			log.Printf("listing %s: encode sold marker: %v", listing.ID, err)
		} else if msg, err := store.PostMessage(ctx, s.DB, *listing.SoldRoomID, listing.SellerID, marker); err != nil {
			log.Printf("listing %s: post sold marker: %v", listing.ID, err)
		} else if err := s.Realtime.PublishMessage(ctx, msg); err != nil {
			log.Printf("listing %s: publish sold marker: %v", listing.ID, err)
		}
	}

	payload := events.ListingSoldPayload{ListingID: listing.ID, SellerID: listing.SellerID}
	if listing.SoldRoomID != nil {
		payload.RoomID = *listing.SoldRoomID
	}
	env, err := events.NewEnvelope(events.EventListingSold, s.ServiceName, listing.ID, payload)
	if err != nil {
		log.Printf("listing %s: build sold event: %v", listing.ID, err)
		return
	}
	s.Producers.ListingSold.Publish(events.PartitionKey(listing.ID), kafkax.MustMarshal(env))
}
