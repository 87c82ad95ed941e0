package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/uzbk/farmmarket/internal/chat"
	"github.com/uzbk/farmmarket/internal/events"
	kafkax "github.com/uzbk/farmmarket/internal/kafka"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/notifier"
	"github.com/uzbk/farmmarket/internal/store"
)

type placeOrderReq struct {
	ListingID         string `json:"listing_id"`
	Quantity          int    `json:"quantity"`
	ReceiverName      string `json:"receiver_name"`
	ReceiverPhone     string `json:"receiver_phone"`
	PostalCode        string `json:"postal_code"`
	RoadAddress       string `json:"road_address"`
	AddressDetail     string `json:"address_detail"`
	SaveAddress       bool   `json:"save_address"`
	SetDefaultAddress bool   `json:"set_default_address"`
}

type placeOrderResp struct {
	Order          *models.Order `json:"order"`
	RemainingStock int           `json:"remaining_stock"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := userID(w, r)
	if buyerID == "" {
		return
	}

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := store.PlaceOrder(ctx, s.DB, store.PlaceOrderRequest{
		BuyerID:   buyerID,
		ListingID: req.ListingID,
		Quantity:  req.Quantity,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  req.ReceiverName,
			ReceiverPhone: req.ReceiverPhone,
			PostalCode:    req.PostalCode,
			RoadAddress:   req.RoadAddress,
			AddressDetail: req.AddressDetail,
		},
		SaveAddress:       req.SaveAddress,
		SetDefaultAddress: req.SetDefaultAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// The order is durable from here; receipt and events are best effort.
	s.afterOrderPlaced(ctx, result)

	writeJSON(w, http.StatusCreated, placeOrderResp{
		Order:          result.Order,
		RemainingStock: result.RemainingStock,
	})
}

// afterOrderPlaced posts the chat notifications and publishes the
// OrderPlaced event. Failures are logged, never surfaced: the purchase
// already committed.
func (s *Server) afterOrderPlaced(ctx context.Context, result *store.PlaceOrderResult) {
	order := result.Order

	listing, err := store.GetListing(ctx, s.DB, order.ListingID)
	if err != nil {
		log.Printf("order %s: load listing for receipt: %v", order.ID, err)
	} else {
		s.postOrderMessages(ctx, order, listing)
	}

	env, err := events.NewEnvelope(events.EventOrderPlaced, s.ServiceName, order.ID, events.OrderPlacedPayload{
		OrderID:        order.ID,
		ListingID:      order.ListingID,
		BuyerID:        order.BuyerID,
		SellerID:       order.SellerID,
		Quantity:       order.Quantity,
		TotalPrice:     order.TotalPrice.String(),
		RemainingStock: result.RemainingStock,
	})
	if err != nil {
		log.Printf("order %s: build event: %v", order.ID, err)
		return
	}
	s.Producers.OrderPlaced.Publish(events.PartitionKey(order.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
	)
}

// postOrderMessages drops two rows into the buyer-seller room: the plain
// payment notice the participants read, then the structured receipt card.
func (s *Server) postOrderMessages(ctx context.Context, order *models.Order, listing *models.Listing) {
	room, err := store.GetOrCreateRoom(ctx, s.DB, &order.ListingID, order.BuyerID, order.SellerID)
	if err != nil {
		log.Printf("order %s: open room: %v", order.ID, err)
		return
	}

	notice := fmt.Sprintf("Payment completed for %s x%d (total %s).",
		listing.Title, order.Quantity, order.TotalPrice.String())
	if msg, err := store.PostMessage(ctx, s.DB, room.ID, order.BuyerID, notice); err != nil {
		log.Printf("order %s: post payment notice: %v", order.ID, err)
	} else if err := s.Realtime.PublishMessage(ctx, msg); err != nil {
		log.Printf("order %s: publish payment notice: %v", order.ID, err)
	}

	thumb, err := store.FirstListingImagePath(ctx, s.DB, order.ListingID)
	if err != nil {
		log.Printf("order %s: load thumbnail: %v", order.ID, err)
	}
	receipt, err := chat.OrderReceipt(chat.OrderPayload{
		OrderID:       order.ID,
		ListingID:     order.ListingID,
		Title:         listing.Title,
		Quantity:      order.Quantity,
		TotalPrice:    order.TotalPrice,
		ThumbnailPath: thumb,
	}).Encode()
	if err != nil {
		log.Printf("order %s: encode receipt: %v", order.ID, err)
		return
	}
	if msg, err := store.PostMessage(ctx, s.DB, room.ID, order.BuyerID, receipt); err != nil {
		log.Printf("order %s: post receipt: %v", order.ID, err)
	} else if err := s.Realtime.PublishMessage(ctx, msg); err != nil {
		log.Printf("order %s: publish receipt: %v", order.ID, err)
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	order, err := store.GetOrder(r.Context(), s.DB, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if callerID != order.BuyerID && callerID != order.SellerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a party to this order"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// getOrderStatus answers status polls. The row is always loaded first so
// the buyer/seller check runs before anything is revealed; the cache, when
// warm, only supplies a possibly fresher status string.
func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}
	orderID := chi.URLParam(r, "orderID")

	order, err := store.GetOrder(r.Context(), s.DB, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if callerID != order.BuyerID && callerID != order.SellerID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a party to this order"})
		return
	}

	status := string(order.Status)
	if cached, err := notifier.CachedStatus(r.Context(), s.Redis, orderID); err == nil && cached != "" {
		status = cached
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": status})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := queryInt(r, "limit", 20)

	var (
		page *store.CursorPage
		err  error
	)
	if r.URL.Query().Get("role") == "seller" {
		page, err = store.ListSellerOrders(r.Context(), s.DB, callerID, cursor, limit)
	} else {
		page, err = store.ListBuyerOrders(r.Context(), s.DB, callerID, cursor, limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type advanceStatusReq struct {
	Status string `json:"status"`
}

func (s *Server) advanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	callerID := userID(w, r)
	if callerID == "" {
		return
	}

	var req advanceStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	orderID := chi.URLParam(r, "orderID")
	before, err := store.GetOrder(r.Context(), s.DB, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := store.AdvanceOrderStatus(r.Context(), s.DB, orderID, callerID, models.OrderStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	env, err := events.NewEnvelope(events.EventOrderStatusChanged, s.ServiceName, order.ID,
		events.OrderStatusChangedPayload{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			FromStatus: string(before.Status),
			ToStatus:   string(order.Status),
		})
	if err != nil {
		log.Printf("order %s: build status event: %v", order.ID, err)
	} else {
		s.Producers.OrderStatusChanged.Publish(events.PartitionKey(order.ID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		)
	}

	writeJSON(w, http.StatusOK, order)
}
