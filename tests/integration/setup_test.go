package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func newProfile(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := store.CreateProfile(context.Background(), db, id); err != nil {
		t.Fatalf("Create profile: %v", err)
	}
	return id
}

// newApprovedSeller creates a profile whose verification is already
// approved, so it can create listings.
func newApprovedSeller(t *testing.T, db *sql.DB) string {
	t.Helper()
	ctx := context.Background()
	id := newProfile(t, db)

	_, err := store.SubmitVerification(ctx, db, store.SubmitVerificationRequest{
		UserID:              id,
		FarmName:            "Greenhill Farm",
		OwnerName:           "Sam Greenhill",
		Phone:               "010-0000-0000",
		Address:             "1 Orchard Road",
		BusinessLicensePath: "licenses/greenhill.pdf",
	})
	if err != nil {
		t.Fatalf("Submit verification: %v", err)
	}
	if err := store.ApproveVerification(ctx, db, id, uuid.NewString()); err != nil {
		t.Fatalf("Approve verification: %v", err)
	}
	return id
}

func newListing(t *testing.T, db *sql.DB, sellerID string, price int64, stock int) *models.Listing {
	t.Helper()
	p := decimal.NewFromInt(price)
	listing, err := store.CreateListing(context.Background(), db, store.CreateListingRequest{
		SellerID:      sellerID,
		Title:         "Fuji Apples 5kg",
		Description:   "Picked this week",
		Category:      "fruit",
		Price:         &p,
		StockQuantity: &stock,
	})
	if err != nil {
		t.Fatalf("Create listing: %v", err)
	}
	return listing
}

// advanceToConfirmed walks an order through SHIPPING and DELIVERED to the
// buyer's confirmation.
func advanceToConfirmed(t *testing.T, db *sql.DB, orderID, sellerID, buyerID string) {
	t.Helper()
	ctx := context.Background()
	for _, step := range []struct {
		actor string
		next  models.OrderStatus
	}{
		{sellerID, models.OrderStatusShipping},
		{sellerID, models.OrderStatusDelivered},
		{buyerID, models.OrderStatusConfirmed},
	} {
		if _, err := store.AdvanceOrderStatus(ctx, db, orderID, step.actor, step.next); err != nil {
			t.Fatalf("Advance to %s: %v", step.next, err)
		}
	}
}

func placeTestOrder(t *testing.T, db *sql.DB, buyerID, listingID string, qty int) *store.PlaceOrderResult {
	t.Helper()
	result, err := store.PlaceOrder(context.Background(), db, store.PlaceOrderRequest{
		BuyerID:   buyerID,
		ListingID: listingID,
		Quantity:  qty,
		Shipping: store.ShippingSnapshot{
			ReceiverName:  "Pat Buyer",
			ReceiverPhone: "010-1111-2222",
			PostalCode:    "04524",
			RoadAddress:   "99 Market Street",
		},
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}
	return result
}
