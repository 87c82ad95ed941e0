package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Profile struct {
	ID         string    `json:"id"`
	Nickname   *string   `json:"nickname"`
	RegionCode *string   `json:"region_code"`
	RegionName *string   `json:"region_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SellerVerification struct {
	UserID              string     `json:"user_id"`
	FarmName            string     `json:"farm_name"`
	OwnerName           string     `json:"owner_name"`
	Phone               string     `json:"phone"`
	Address             string     `json:"address"`
	AddressDetail       *string    `json:"address_detail"`
	LocationNote        *string    `json:"location_note"`
	Description         *string    `json:"description"`
	BusinessLicensePath string     `json:"business_license_path"`
	Latitude            *float64   `json:"latitude"`
	Longitude           *float64   `json:"longitude"`
	Status              string     `json:"status"`
	RequestedAt         time.Time  `json:"requested_at"`
	ReviewedAt          *time.Time `json:"reviewed_at"`
	ReviewedBy          *string    `json:"reviewed_by"`
	RejectionReason     *string    `json:"rejection_reason"`
}

type Listing struct {
	ID            string           `json:"id"`
	SellerID      string           `json:"seller_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Category      string           `json:"category"`
	RegionCode    *string          `json:"region_code"`
	RegionName    *string          `json:"region_name"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Status        string           `json:"status"`
	SoldRoomID    *string          `json:"sold_room_id"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Images        []ListingImage   `json:"images,omitempty"`
}

type ListingImage struct {
	ID          string `json:"id"`
	ListingID   string `json:"listing_id"`
	StoragePath string `json:"storage_path"`
	SortOrder   int    `json:"sort_order"`
}

type ShippingAddress struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	ReceiverName  string    `json:"receiver_name"`
	ReceiverPhone string    `json:"receiver_phone"`
	PostalCode    string    `json:"postal_code"`
	RoadAddress   string    `json:"road_address"`
	AddressDetail string    `json:"address_detail,omitempty"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Order is an append-only record of a completed purchase. The shipping
// fields are copied from the address at creation time so later address
// edits never change order history.
type Order struct {
	ID            string          `json:"id"`
	ListingID     string          `json:"listing_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        OrderStatus     `json:"status"`
	ReceiverName  string          `json:"receiver_name"`
	ReceiverPhone string          `json:"receiver_phone"`
	PostalCode    string          `json:"postal_code"`
	RoadAddress   string          `json:"road_address"`
	AddressDetail string          `json:"address_detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Review struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id"`
	ListingID  string    `json:"listing_id"`
	Rating     int       `json:"rating"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatRoom ties a buyer and a seller, usually around a listing. A room with
// no listing is a support conversation.
type ChatRoom struct {
	ID               string     `json:"id"`
	ListingID        *string    `json:"listing_id"`
	BuyerID          string     `json:"buyer_id"`
	SellerID         string     `json:"seller_id"`
	BuyerLastReadAt  *time.Time `json:"buyer_last_read_at"`
	SellerLastReadAt *time.Time `json:"seller_last_read_at"`
	BuyerLeftAt      *time.Time `json:"buyer_left_at,omitempty"`
	SellerLeftAt     *time.Time `json:"seller_left_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusApproved = "APPROVED"
	VerificationStatusRejected = "REJECTED"
)

const (
	ListingStatusOnSale   = "ON_SALE"
	ListingStatusReserved = "RESERVED"
	ListingStatusSold     = "SOLD"
)
