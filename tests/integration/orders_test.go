package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

func TestPlaceOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 12000, 10)

	result := placeTestOrder(t, db, buyer, listing.ID, 3)

	order := result.Order
	if order.ID == "" {
		t.Error("Order ID should not be empty")
	}
	if order.Status != models.OrderStatusPaymentCompleted {
		t.Errorf("Expected status PAYMENT_COMPLETED, got %s", order.Status)
	}
	if !order.UnitPrice.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("Expected unit price 12000, got %s", order.UnitPrice)
	}
	if !order.TotalPrice.Equal(decimal.NewFromInt(36000)) {
		t.Errorf("Expected total 36000, got %s", order.TotalPrice)
	}
	if result.RemainingStock != 7 {
		t.Errorf("Expected remaining stock 7, got %d", result.RemainingStock)
	}

	after, err := store.GetListing(ctx, db, listing.ID)
	if err != nil {
		t.Fatalf("Get listing: %v", err)
	}
	if *after.StockQuantity != 7 {
		t.Errorf("Expected listing stock 7, got %d", *after.StockQuantity)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 5000, 2)

	_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		BuyerID:   buyer,
		ListingID: listing.ID,
		Quantity:  5,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  "Pat Buyer",
			ReceiverPhone: "010-1111-2222",
			RoadAddress:   "99 Market Street",
		},
	})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock error, got: %v", err)
	}

	// a failed purchase must not touch stock or leave an order behind
	after, err := store.GetListing(ctx, db, listing.ID)
	if err != nil {
		t.Fatalf("Get listing: %v", err)
	}
	if *after.StockQuantity != 2 {
		t.Errorf("Stock should remain unchanged at 2, got %d", *after.StockQuantity)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE listing_id = $1`, listing.ID).Scan(&count); err != nil {
		t.Fatalf("Count orders: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no orders, got %d", count)
	}
}

func TestPlaceOrderUnpricedListing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)

	listing, err := store.CreateListing(ctx, db, store.CreateListingRequest{
		SellerID: seller,
		Title:    "Price on request",
		Category: "vegetable",
	})
	if err != nil {
		t.Fatalf("Create listing: %v", err)
	}

	_, err = store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
		BuyerID:   buyer,
		ListingID: listing.ID,
		Quantity:  1,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  "Pat Buyer",
			ReceiverPhone: "010-1111-2222",
			RoadAddress:   "99 Market Street",
		},
	})
	if !errors.Is(err, database.ErrListingUnpriced) {
		t.Errorf("Expected unpriced listing error, got: %v", err)
	}
}

func TestPlaceOrderQuantityCap(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 1000, 100)

	_, err := store.PlaceOrder(context.Background(), db, store.PlaceOrderRequest{
		BuyerID:   buyer,
		ListingID: listing.ID,
		Quantity:  store.MaxQuantityPerOrder + 1,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  "Pat Buyer",
			ReceiverPhone: "010-1111-2222",
			RoadAddress:   "99 Market Street",
		},
	})
	var verr store.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestPlaceOrderOwnListing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seller := newApprovedSeller(t, db)
	listing := newListing(t, db, seller, 1000, 10)

	_, err := store.PlaceOrder(context.Background(), db, store.PlaceOrderRequest{
		BuyerID:   seller,
		ListingID: listing.ID,
		Quantity:  1,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  "Pat Buyer",
			ReceiverPhone: "010-1111-2222",
			RoadAddress:   "99 Market Street",
		},
	})
	var verr store.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	listing := newListing(t, db, seller, 8000, 10)

	concurrency := 11
	buyers := make([]string, concurrency)
	for i := range buyers {
		buyers[i] = newProfile(t, db)
	}

	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(buyerID string) {
			defer wg.Done()
			_, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
				BuyerID:   buyerID,
				ListingID: listing.ID,
				Quantity:  1,
				Shipping: store.ShippingSnapshot{
					ReceiverName:  "Pat Buyer",
					ReceiverPhone: "010-1111-2222",
					RoadAddress:   "99 Market Street",
				},
			})
			results <- err
		}(buyers[i])
	}

	wg.Wait()
	close(results)

	successCount := 0
	insufficientCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
			insufficientCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 10 {
		t.Errorf("Expected 10 successful orders, got %d", successCount)
	}
	if insufficientCount != 1 {
		t.Errorf("Expected 1 insufficient stock rejection, got %d", insufficientCount)
	}

	after, err := store.GetListing(ctx, db, listing.ID)
	if err != nil {
		t.Fatalf("Get listing: %v", err)
	}
	if *after.StockQuantity != 0 {
		t.Errorf("Expected final stock 0, got %d", *after.StockQuantity)
	}
}

func TestOrderPriceSnapshotImmutable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 12000, 10)

	result := placeTestOrder(t, db, buyer, listing.ID, 2)

	// repricing the listing must not rewrite order history
	newPrice := decimal.NewFromInt(20000)
	stock := 8
	_, err := store.UpdateListing(ctx, db, listing.ID, seller, store.UpdateListingRequest{
		Title:         listing.Title,
		Description:   listing.Description,
		Category:      listing.Category,
		Price:         &newPrice,
		StockQuantity: &stock,
	})
	if err != nil {
		t.Fatalf("Update listing: %v", err)
	}

	order, err := store.GetOrder(ctx, db, result.Order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !order.UnitPrice.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("Order unit price changed to %s", order.UnitPrice)
	}
	if !order.TotalPrice.Equal(decimal.NewFromInt(24000)) {
		t.Errorf("Order total changed to %s", order.TotalPrice)
	}
}

func TestOrderLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 5000, 5)

	result := placeTestOrder(t, db, buyer, listing.ID, 1)
	orderID := result.Order.ID

	// buyer cannot ship
	_, err := store.AdvanceOrderStatus(ctx, db, orderID, buyer, models.OrderStatusShipping)
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition for buyer shipping, got: %v", err)
	}

	order, err := store.AdvanceOrderStatus(ctx, db, orderID, seller, models.OrderStatusShipping)
	if err != nil {
		t.Fatalf("Advance to SHIPPING: %v", err)
	}
	if order.Status != models.OrderStatusShipping {
		t.Errorf("Expected SHIPPING, got %s", order.Status)
	}

	// no skipping ahead
	_, err = store.AdvanceOrderStatus(ctx, db, orderID, buyer, models.OrderStatusConfirmed)
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition skipping DELIVERED, got: %v", err)
	}

	if _, err = store.AdvanceOrderStatus(ctx, db, orderID, seller, models.OrderStatusDelivered); err != nil {
		t.Fatalf("Advance to DELIVERED: %v", err)
	}

	// seller cannot confirm on the buyer's behalf
	_, err = store.AdvanceOrderStatus(ctx, db, orderID, seller, models.OrderStatusConfirmed)
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition for seller confirm, got: %v", err)
	}

	order, err = store.AdvanceOrderStatus(ctx, db, orderID, buyer, models.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("Advance to CONFIRMED: %v", err)
	}
	if order.Status != models.OrderStatusConfirmed {
		t.Errorf("Expected CONFIRMED, got %s", order.Status)
	}

	// no moving backwards from the terminal state
	_, err = store.AdvanceOrderStatus(ctx, db, orderID, seller, models.OrderStatusShipping)
	if !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition from CONFIRMED, got: %v", err)
	}
}

func TestListBuyerOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 1000, 100)

	for i := 0; i < 15; i++ {
		placeTestOrder(t, db, buyer, listing.ID, 1)
	}

	page1, err := store.ListBuyerOrders(ctx, db, buyer, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	orders1 := page1.Items.([]models.Order)
	if len(orders1) != 10 {
		t.Errorf("Expected 10 orders on page 1, got %d", len(orders1))
	}
	if !page1.HasMore {
		t.Error("Expected more pages")
	}

	page2, err := store.ListBuyerOrders(ctx, db, buyer, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	orders2 := page2.Items.([]models.Order)
	if len(orders2) != 5 {
		t.Errorf("Expected 5 orders on page 2, got %d", len(orders2))
	}
	if page2.HasMore {
		t.Error("Expected no more pages")
	}

	seen := make(map[string]bool)
	for _, o := range append(orders1, orders2...) {
		if seen[o.ID] {
			t.Errorf("Order %s appeared on both pages", o.ID)
		}
		seen[o.ID] = true
	}
}
