package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

func TestCreateListingRequiresApprovedSeller(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	unverified := newProfile(t, db)

	_, err := store.CreateListing(ctx, db, store.CreateListingRequest{
		SellerID: unverified,
		Title:    "Should fail",
		Category: "fruit",
	})
	if !errors.Is(err, database.ErrSellerNotApproved) {
		t.Errorf("Expected seller not approved error, got: %v", err)
	}
}

func TestListingStatusSoldRequiresRoom(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listing := newListing(t, db, seller, 9000, 3)

	// SOLD without naming the winning conversation
	_, err := store.UpdateListingStatus(ctx, db, listing.ID, seller, models.ListingStatusSold, nil)
	if !errors.Is(err, database.ErrRoomMismatch) {
		t.Errorf("Expected room mismatch, got: %v", err)
	}

	room, err := store.GetOrCreateRoom(ctx, db, &listing.ID, buyer, seller)
	if err != nil {
		t.Fatalf("Open room: %v", err)
	}

	updated, err := store.UpdateListingStatus(ctx, db, listing.ID, seller, models.ListingStatusSold, &room.ID)
	if err != nil {
		t.Fatalf("Mark sold: %v", err)
	}
	if updated.Status != models.ListingStatusSold {
		t.Errorf("Expected SOLD, got %s", updated.Status)
	}
	if updated.SoldRoomID == nil || *updated.SoldRoomID != room.ID {
		t.Error("Sold room binding missing")
	}

	// relisting clears the binding
	relisted, err := store.UpdateListingStatus(ctx, db, listing.ID, seller, models.ListingStatusOnSale, nil)
	if err != nil {
		t.Fatalf("Relist: %v", err)
	}
	if relisted.SoldRoomID != nil {
		t.Error("Relisting should clear the sold room binding")
	}
}

func TestListingStatusSoldRejectsForeignRoom(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)
	buyer := newProfile(t, db)
	listingA := newListing(t, db, seller, 9000, 3)
	listingB := newListing(t, db, seller, 7000, 3)

	roomB, err := store.GetOrCreateRoom(ctx, db, &listingB.ID, buyer, seller)
	if err != nil {
		t.Fatalf("Open room: %v", err)
	}

	// a room about listing B cannot close the sale of listing A
	_, err = store.UpdateListingStatus(ctx, db, listingA.ID, seller, models.ListingStatusSold, &roomB.ID)
	if !errors.Is(err, database.ErrRoomMismatch) {
		t.Errorf("Expected room mismatch, got: %v", err)
	}
}

func TestListListingsFilter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)

	for i := 0; i < 3; i++ {
		newListing(t, db, seller, 1000, 5)
	}
	other, err := store.CreateListing(ctx, db, store.CreateListingRequest{
		SellerID: seller,
		Title:    "Hand-picked strawberries",
		Category: "berry",
	})
	if err != nil {
		t.Fatalf("Create listing: %v", err)
	}

	page, err := store.ListListingsCursor(ctx, db, store.ListingFilter{Category: "berry"}, "", 10)
	if err != nil {
		t.Fatalf("List listings: %v", err)
	}
	listings := page.Items.([]models.Listing)
	if len(listings) != 1 || listings[0].ID != other.ID {
		t.Errorf("Category filter mismatch: %d rows", len(listings))
	}

	page, err = store.ListListingsCursor(ctx, db, store.ListingFilter{Search: "strawberr"}, "", 10)
	if err != nil {
		t.Fatalf("Search listings: %v", err)
	}
	listings = page.Items.([]models.Listing)
	if len(listings) != 1 {
		t.Errorf("Search filter mismatch: %d rows", len(listings))
	}
}
