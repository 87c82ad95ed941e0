package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uzbk/farmmarket/internal/events"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/store"
)

type createReviewReq struct {
	ListingID string `json:"listing_id"`
	Rating    int    `json:"rating"`
	Content   string `json:"content"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	reviewerID := userID(w, r)
	if reviewerID == "" {
		return
	}

	var req createReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	review, err := store.CreateReview(r.Context(), s.DB, store.CreateReviewRequest{
		ReviewerID: reviewerID,
		ListingID:  req.ListingID,
		Rating:     req.Rating,
		Content:    req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	env, err := events.NewEnvelope(events.EventReviewCreated, s.ServiceName, review.ListingID,
		events.ReviewCreatedPayload{
			ReviewID:   review.ID,
			ListingID:  review.ListingID,
			ReviewerID: review.ReviewerID,
			RevieweeID: review.RevieweeID,
			Rating:     review.Rating,
		})
	if err != nil {
		log.Printf("review %s: build event: %v", review.ID, err)
	} else {
		s.Producers.ReviewCreated.Publish(events.PartitionKey(review.ListingID), kafkax.MustMarshal(env))
	}

	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) listReviewsReceived(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	// ?seller= lets anyone browse a seller's public reviews
	target := r.URL.Query().Get("seller")
	if target == "" {
		target = callerID
	}

	page, err := store.ListReviewsReceived(r.Context(), s.DB, target,
		r.URL.Query().Get("cursor"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) listReviewsGiven(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	page, err := store.ListReviewsGiven(r.Context(), s.DB, callerID,
		r.URL.Query().Get("cursor"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) listListingReviews(w http.ResponseWriter, r *http.Request) {
	listing, err := store.GetListing(r.Context(), s.DB, chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, err)
		return
	}

	avg, count, err := store.SellerRating(r.Context(), s.DB, listing.SellerID)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := store.ListReviewsReceived(r.Context(), s.DB, listing.SellerID,
		r.URL.Query().Get("cursor"), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"seller_rating": avg,
		"review_count":  count,
		"reviews":       page,
	})
}
