// Package chat models the structured system messages that ride inside the
// plain-text content column of chat_messages. Stored messages use a
// sentinel-prefixed encoding ("__SOLD__:...", "ORDER:{...}"), which is kept
// at the serialization boundary for compatibility; everything above it works
// with the typed Message union.
package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindText Kind = iota
	KindSold
	KindOrder
	KindPaymentRequest
)

func (k Kind) String() string {
	switch k {
	case KindSold:
		return "sold"
	case KindOrder:
		return "order"
	case KindPaymentRequest:
		return "payment_request"
	default:
		return "text"
	}
}

const (
	soldPrefix   = "__SOLD__:"
	orderPrefix  = "ORDER:"
	payReqPrefix = "PAYREQ:"
)

const MaxContentLength = 500

type Message struct {
	Kind           Kind
	Text           string
	Sold           *SoldPayload
	Order          *OrderPayload
	PaymentRequest *PaymentRequestPayload
}

// SoldPayload marks a conversation as the one a sale was attributed to.
// Legacy wire format is "__SOLD__:{listing_id}:{title}".
type SoldPayload struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
}

// OrderPayload is the purchase receipt card posted after checkout commits.
type OrderPayload struct {
	OrderID       string          `json:"order_id"`
	ListingID     string          `json:"listing_id"`
	Title         string          `json:"title"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	ThumbnailPath string          `json:"thumbnail_path,omitempty"`
}

type PaymentRequestPayload struct {
	ListingID string          `json:"listing_id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
}

func Text(content string) Message {
	return Message{Kind: KindText, Text: content}
}

func Sold(p SoldPayload) Message {
	return Message{Kind: KindSold, Sold: &p}
}

func OrderReceipt(p OrderPayload) Message {
	return Message{Kind: KindOrder, Order: &p}
}

func PaymentRequest(p PaymentRequestPayload) Message {
	return Message{Kind: KindPaymentRequest, PaymentRequest: &p}
}

// Encode renders the message into the stored content string.
func (m Message) Encode() (string, error) {
	switch m.Kind {
	case KindText:
		return m.Text, nil
	case KindSold:
		if m.Sold == nil {
			return "", fmt.Errorf("encode message: nil sold payload")
		}
		return soldPrefix + m.Sold.ListingID + ":" + m.Sold.Title, nil
	case KindOrder:
		if m.Order == nil {
			return "", fmt.Errorf("encode message: nil order payload")
		}
		b, err := json.Marshal(m.Order)
		if err != nil {
			return "", fmt.Errorf("encode order payload: %w", err)
		}
		return orderPrefix + string(b), nil
	case KindPaymentRequest:
		if m.PaymentRequest == nil {
			return "", fmt.Errorf("encode message: nil payment request payload")
		}
		b, err := json.Marshal(m.PaymentRequest)
		if err != nil {
			return "", fmt.Errorf("encode payment request payload: %w", err)
		}
		return payReqPrefix + string(b), nil
	}
	return "", fmt.Errorf("encode message: unknown kind %d", m.Kind)
}

// Decode parses stored content back into a typed message. Content that does
// not carry a known sentinel, or carries one with a malformed payload, is
// returned as plain text so old or foreign rows still render.
func Decode(content string) Message {
	switch {
	case strings.HasPrefix(content, soldPrefix):
		rest := strings.TrimPrefix(content, soldPrefix)
		id, title, ok := strings.Cut(rest, ":")
		if !ok || id == "" {
			return Text(content)
		}
		return Sold(SoldPayload{ListingID: id, Title: title})

	case strings.HasPrefix(content, orderPrefix):
		var p OrderPayload
		if err := json.Unmarshal([]byte(strings.TrimPrefix(content, orderPrefix)), &p); err != nil {
			return Text(content)
		}
		return OrderReceipt(p)

	case strings.HasPrefix(content, payReqPrefix):
		var p PaymentRequestPayload
		if err := json.Unmarshal([]byte(strings.TrimPrefix(content, payReqPrefix)), &p); err != nil {
			return Text(content)
		}
		return PaymentRequest(p)
	}

	return Text(content)
}
