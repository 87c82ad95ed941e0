// Package events defines the marketplace's published event envelope and
// per-event payloads.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventListingSold        = "ListingSold"
	EventReviewCreated      = "ReviewCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload for publishing. The correlation id groups
// every event about one order (or listing) on the same stream.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

type OrderPlacedPayload struct {
	OrderID        string `json:"order_id"`
	ListingID      string `json:"listing_id"`
	BuyerID        string `json:"buyer_id"`
	SellerID       string `json:"seller_id"`
	Quantity       int    `json:"quantity"`
	TotalPrice     string `json:"total_price"`
	RemainingStock int    `json:"remaining_stock"`
}

type OrderStatusChangedPayload struct {
	OrderID    string `json:"order_id"`
	BuyerID    string `json:"buyer_id"`
	SellerID   string `json:"seller_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

type ListingSoldPayload struct {
	ListingID string `json:"listing_id"`
	SellerID  string `json:"seller_id"`
	RoomID    string `json:"room_id,omitempty"`
}

type ReviewCreatedPayload struct {
	ReviewID   string `json:"review_id"`
	ListingID  string `json:"listing_id"`
	ReviewerID string `json:"reviewer_id"`
	RevieweeID string `json:"reviewee_id"`
	Rating     int    `json:"rating"`
}
