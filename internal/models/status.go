package models

type OrderStatus string

const (
	OrderStatusPaymentCompleted OrderStatus = "PAYMENT_COMPLETED"
	OrderStatusShipping         OrderStatus = "SHIPPING"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusConfirmed        OrderStatus = "CONFIRMED"
)

// Transitions only ever move forward; there is no cancellation or refund
// path, so terminal CONFIRMED has no successors.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPaymentCompleted: {OrderStatusShipping: true},
	OrderStatusShipping:         {OrderStatusDelivered: true},
	OrderStatusDelivered:        {OrderStatusConfirmed: true},
	OrderStatusConfirmed:        {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func ValidOrderStatus(s OrderStatus) bool {
	_, ok := validNext[s]
	return ok
}

func ValidListingStatus(s string) bool {
	switch s {
	case ListingStatusOnSale, ListingStatusReserved, ListingStatusSold:
		return true
	}
	return false
}
