package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

// MaxQuantityPerOrder caps a single checkout regardless of stock.
const MaxQuantityPerOrder = 10

// ValidationError is a bad-input failure detected before any write.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

type ShippingSnapshot struct {
	ReceiverName  string
	ReceiverPhone string
	PostalCode    string
	RoadAddress   string
	AddressDetail string
}

type PlaceOrderRequest struct {
	BuyerID  string
	ListingID string
	Quantity int
	Shipping ShippingSnapshot

	// SaveAddress also stores the snapshot in the buyer's address book,
	// inside the same transaction as the order.
	SaveAddress       bool
	SetDefaultAddress bool
}

type PlaceOrderResult struct {
	Order          *models.Order
	RemainingStock int
}

func (r PlaceOrderRequest) validate() error {
	if r.BuyerID == "" {
		return ValidationError("buyer id is required")
	}
	if r.ListingID == "" {
		return ValidationError("listing id is required")
	}
	if r.Quantity <= 0 {
		return ValidationError("quantity must be positive")
	}
	if r.Quantity > MaxQuantityPerOrder {
		return ValidationError(fmt.Sprintf("quantity exceeds the %d per-order limit", MaxQuantityPerOrder))
	}
	if r.Shipping.ReceiverName == "" {
		return ValidationError("receiver name is required")
	}
	if r.Shipping.ReceiverPhone == "" {
		return ValidationError("receiver phone is required")
	}
	if r.Shipping.RoadAddress == "" {
		return ValidationError("road address is required")
	}
	return nil
}

// PlaceOrder validates the purchase, then runs the stock check, the
// decrement and the order insert as one retryable transaction. Either the
// stock goes down and an order row exists, or neither happened. The
// post-purchase chat receipt and event publishing are the caller's
// responsibility and are not part of this unit.
func PlaceOrder(ctx context.Context, db *sql.DB, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var result *PlaceOrderResult

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		if req.SaveAddress {
			_, err := upsertAddressTx(ctx, tx, UpsertAddressRequest{
				OwnerID:       req.BuyerID,
				ReceiverName:  req.Shipping.ReceiverName,
				ReceiverPhone: req.Shipping.ReceiverPhone,
				PostalCode:    req.Shipping.PostalCode,
				RoadAddress:   req.Shipping.RoadAddress,
				AddressDetail: req.Shipping.AddressDetail,
				SetDefault:    req.SetDefaultAddress,
			})
			if err != nil {
				return err
			}
		}

		var (
			sellerID string
			title    string
			price    *decimal.Decimal
			stock    *int
			status   string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT seller_id, title, price, stock_quantity, status
			 FROM listings
			 WHERE id = $1
			 FOR UPDATE`,
			req.ListingID).Scan(&sellerID, &title, &price, &stock, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrListingNotFound
			}
			return fmt.Errorf("lock listing: %w", err)
		}

		if sellerID == req.BuyerID {
			return ValidationError("cannot purchase your own listing")
		}
		if status == models.ListingStatusSold {
			return ValidationError("listing is no longer on sale")
		}
		if price == nil {
			return database.ErrListingUnpriced
		}
		if stock == nil || *stock < req.Quantity {
			return database.ErrInsufficientStock
		}

		var remaining int
		err = tx.QueryRowContext(ctx,
			`UPDATE listings
			 SET stock_quantity = stock_quantity - $1,
			     updated_at = NOW()
			 WHERE id = $2
			   AND stock_quantity >= $1
			 RETURNING stock_quantity`,
			req.Quantity, req.ListingID).Scan(&remaining)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrInsufficientStock
			}
			return fmt.Errorf("decrement stock: %w", err)
		}

		unitPrice := *price
		totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

		order := &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders
				(id, listing_id, buyer_id, seller_id, quantity, unit_price, total_price, status,
				 receiver_name, receiver_phone, postal_code, road_address, address_detail,
				 created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			 RETURNING id, listing_id, buyer_id, seller_id, quantity, unit_price, total_price, status,
				receiver_name, receiver_phone, postal_code, road_address, address_detail,
				created_at, updated_at`,
			uuid.NewString(), req.ListingID, req.BuyerID, sellerID, req.Quantity,
			unitPrice, totalPrice, models.OrderStatusPaymentCompleted,
			req.Shipping.ReceiverName, req.Shipping.ReceiverPhone, req.Shipping.PostalCode,
			req.Shipping.RoadAddress, req.Shipping.AddressDetail).Scan(
			&order.ID,
			&order.ListingID,
			&order.BuyerID,
			&order.SellerID,
			&order.Quantity,
			&order.UnitPrice,
			&order.TotalPrice,
			&order.Status,
			&order.ReceiverName,
			&order.ReceiverPhone,
			&order.PostalCode,
			&order.RoadAddress,
			&order.AddressDetail,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		result = &PlaceOrderResult{Order: order, RemainingStock: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id string) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, listing_id, buyer_id, seller_id, quantity, unit_price, total_price, status,
			receiver_name, receiver_phone, postal_code, road_address, address_detail,
			created_at, updated_at
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.ListingID,
		&order.BuyerID,
		&order.SellerID,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalPrice,
		&order.Status,
		&order.ReceiverName,
		&order.ReceiverPhone,
		&order.PostalCode,
		&order.RoadAddress,
		&order.AddressDetail,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// AdvanceOrderStatus moves an order one step forward. The seller drives
// SHIPPING and DELIVERED; only the buyer may enter CONFIRMED, and only
// from DELIVERED. The update is conditional on the observed status so two
// racing writers cannot both advance.
func AdvanceOrderStatus(ctx context.Context, db *sql.DB, orderID, actorID string, next models.OrderStatus) (*models.Order, error) {
	if !models.ValidOrderStatus(next) {
		return nil, database.ErrInvalidTransition
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var (
			buyerID  string
			sellerID string
			current  models.OrderStatus
		)
		err := tx.QueryRowContext(ctx,
			`SELECT buyer_id, seller_id, status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&buyerID, &sellerID, &current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !models.CanTransition(current, next) {
			return database.ErrInvalidTransition
		}

		switch next {
		case models.OrderStatusConfirmed:
			if actorID != buyerID {
				return database.ErrInvalidTransition
			}
		default:
			if actorID != sellerID {
				return database.ErrInvalidTransition
			}
		}

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, updated_at = NOW()
			 WHERE id = $2 AND status = $3
			 RETURNING id, listing_id, buyer_id, seller_id, quantity, unit_price, total_price, status,
				receiver_name, receiver_phone, postal_code, road_address, address_detail,
				created_at, updated_at`,
			next, orderID, current).Scan(
			&order.ID,
			&order.ListingID,
			&order.BuyerID,
			&order.SellerID,
			&order.Quantity,
			&order.UnitPrice,
			&order.TotalPrice,
			&order.Status,
			&order.ReceiverName,
			&order.ReceiverPhone,
			&order.PostalCode,
			&order.RoadAddress,
			&order.AddressDetail,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrInvalidTransition
			}
			return fmt.Errorf("advance order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListBuyerOrders pages a buyer's purchase history, newest first.
func ListBuyerOrders(ctx context.Context, db *sql.DB, buyerID, cursor string, limit int) (*CursorPage, error) {
	return listOrdersCursor(ctx, db, "buyer_id", buyerID, cursor, limit)
}

// ListSellerOrders pages a seller's sales, newest first.
func ListSellerOrders(ctx context.Context, db *sql.DB, sellerID, cursor string, limit int) (*CursorPage, error) {
	return listOrdersCursor(ctx, db, "seller_id", sellerID, cursor, limit)
}

func listOrdersCursor(ctx context.Context, db *sql.DB, column, userID, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, listing_id, buyer_id, seller_id, quantity, unit_price, total_price, status,
			receiver_name, receiver_phone, postal_code, road_address, address_detail,
			created_at, updated_at
		FROM orders
		WHERE %s = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, column)

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.ListingID,
			&order.BuyerID,
			&order.SellerID,
			&order.Quantity,
			&order.UnitPrice,
			&order.TotalPrice,
			&order.Status,
			&order.ReceiverName,
			&order.ReceiverPhone,
			&order.PostalCode,
			&order.RoadAddress,
			&order.AddressDetail,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
