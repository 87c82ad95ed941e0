package chat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSold(t *testing.T) {
	msg := Sold(SoldPayload{
		ListingID: "a3f1c9e2-40b1-4f7d-9f0e-9a61c1b2d3e4",
		Title:     "Organic apples: 5kg box",
	})

	encoded, err := msg.Encode()
	require.NoError(t, err)
	assert.Equal(t, "__SOLD__:a3f1c9e2-40b1-4f7d-9f0e-9a61c1b2d3e4:Organic apples: 5kg box", encoded)

	decoded := Decode(encoded)
	require.Equal(t, KindSold, decoded.Kind)
	assert.Equal(t, "a3f1c9e2-40b1-4f7d-9f0e-9a61c1b2d3e4", decoded.Sold.ListingID)
	// title keeps its own colons
	assert.Equal(t, "Organic apples: 5kg box", decoded.Sold.Title)
}

func TestEncodeDecodeOrderReceipt(t *testing.T) {
	msg := OrderReceipt(OrderPayload{
		OrderID:       "order-1",
		ListingID:     "listing-1",
		Title:         "Sweet potatoes",
		Quantity:      2,
		TotalPrice:    decimal.NewFromInt(20000),
		ThumbnailPath: "listing-1/cover.jpg",
	})

	encoded, err := msg.Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, "ORDER:")

	decoded := Decode(encoded)
	require.Equal(t, KindOrder, decoded.Kind)
	assert.Equal(t, "order-1", decoded.Order.OrderID)
	assert.Equal(t, 2, decoded.Order.Quantity)
	assert.True(t, decoded.Order.TotalPrice.Equal(decimal.NewFromInt(20000)))
}

func TestEncodeDecodePaymentRequest(t *testing.T) {
	msg := PaymentRequest(PaymentRequestPayload{
		ListingID: "listing-2",
		Title:     "Fresh eggs",
		Amount:    decimal.NewFromInt(12000),
	})

	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := Decode(encoded)
	require.Equal(t, KindPaymentRequest, decoded.Kind)
	assert.True(t, decoded.PaymentRequest.Amount.Equal(decimal.NewFromInt(12000)))
}

func TestDecodePlainText(t *testing.T) {
	decoded := Decode("hello, is this still available?")
	assert.Equal(t, KindText, decoded.Kind)
	assert.Equal(t, "hello, is this still available?", decoded.Text)
}

func TestDecodeMalformedPayloadFallsBackToText(t *testing.T) {
	for _, content := range []string{
		"ORDER:not-json",
		"PAYREQ:{broken",
		"__SOLD__:",
		"__SOLD__:no-title-separator",
	} {
		decoded := Decode(content)
		assert.Equal(t, KindText, decoded.Kind, "content %q", content)
		assert.Equal(t, content, decoded.Text)
	}
}

func TestEncodeRejectsMissingPayload(t *testing.T) {
	_, err := Message{Kind: KindOrder}.Encode()
	assert.Error(t, err)

	_, err = Message{Kind: KindSold}.Encode()
	assert.Error(t, err)
}
