package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uzbk/farmmarket/internal/chat"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

// chatSoldMarker encodes the sold system message for a listing.
func chatSoldMarker(listing *models.Listing) (string, error) {
	return chat.Sold(chat.SoldPayload{
		ListingID: listing.ID,
		Title:     listing.Title,
	}).Encode()
}

type openRoomReq struct {
	ListingID *string `json:"listing_id"`
	SellerID  string  `json:"seller_id"`
}

func (s *Server) openRoom(w http.ResponseWriter, r *http.Request) {
	buyerID := userID(w, r)
	if buyerID == "" {
		return
	}

	var req openRoomReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	sellerID := req.SellerID
	if req.ListingID == nil && sellerID == "" {
		// support conversation with the marketplace operator
		sellerID = s.AdminUserID
	}
	if sellerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seller_id is required"})
		return
	}

	room, err := store.GetOrCreateRoom(r.Context(), s.DB, req.ListingID, buyerID, sellerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	memberID := userID(w, r)
	if memberID == "" {
		return
	}

	rooms, err := store.ListRooms(r.Context(), s.DB, memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// messageView decorates a stored message with its decoded kind so clients
// can render receipts and sold markers without reparsing the sentinel.
type messageView struct {
	models.ChatMessage
	Kind string `json:"kind"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	memberID := userID(w, r)
	if memberID == "" {
		return
	}

	page, err := store.ListMessages(r.Context(), s.DB, chi.URLParam(r, "roomID"), memberID,
		r.URL.Query().Get("cursor"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}

	messages, _ := page.Items.([]models.ChatMessage)
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{
			ChatMessage: m,
			Kind:        chat.Decode(m.Content).Kind.String(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":       views,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

type postMessageReq struct {
	Content string `json:"content"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	senderID := userID(w, r)
	if senderID == "" {
		return
	}

	var req postMessageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	msg, err := store.PostMessage(r.Context(), s.DB, chi.URLParam(r, "roomID"), senderID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Realtime.PublishMessage(r.Context(), msg); err != nil {
		// delivery is best effort; the row is already durable
		_ = err
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	memberID := userID(w, r)
	if memberID == "" {
		return
	}
	if err := store.MarkRead(r.Context(), s.DB, chi.URLParam(r, "roomID"), memberID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) leaveRoom(w http.ResponseWriter, r *http.Request) {
	memberID := userID(w, r)
	if memberID == "" {
		return
	}
	if err := store.LeaveRoom(r.Context(), s.DB, chi.URLParam(r, "roomID"), memberID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamRoom pushes new room messages to the client as server-sent events.
// Members who left may still stream, same as reading history.
func (s *Server) streamRoom(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}
	roomID := chi.URLParam(r, "roomID")

	room, err := store.GetRoom(r.Context(), s.DB, roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if callerID != room.BuyerID && callerID != room.SellerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a participant"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	msgs, err := s.Realtime.Subscribe(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
