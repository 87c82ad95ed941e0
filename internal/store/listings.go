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

type CreateListingRequest struct {
	SellerID      string
	Title         string
	Description   string
	Category      string
	RegionCode    *string
	RegionName    *string
	Price         *decimal.Decimal
	StockQuantity *int
	ImagePaths    []string
}

// CreateListing inserts a new listing for an approved seller. Listings
// without a price or stock count are browsable but cannot be purchased.
func CreateListing(ctx context.Context, db *sql.DB, req CreateListingRequest) (*models.Listing, error) {
	var listing *models.Listing

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM seller_verifications WHERE user_id = $1`,
			req.SellerID).Scan(&status)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrSellerNotApproved
			}
			return fmt.Errorf("check seller verification: %w", err)
		}
		if status != models.VerificationStatusApproved {
			return database.ErrSellerNotApproved
		}

		listing = &models.Listing{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO listings
				(id, seller_id, title, description, category, region_code, region_name,
				 price, stock_quantity, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			 RETURNING id, seller_id, title, description, category, region_code, region_name,
				price, stock_quantity, status, sold_room_id, created_at, updated_at`,
			uuid.NewString(), req.SellerID, req.Title, req.Description, req.Category,
			req.RegionCode, req.RegionName, req.Price, req.StockQuantity,
			models.ListingStatusOnSale).Scan(
			&listing.ID,
			&listing.SellerID,
			&listing.Title,
			&listing.Description,
			&listing.Category,
			&listing.RegionCode,
			&listing.RegionName,
			&listing.Price,
			&listing.StockQuantity,
			&listing.Status,
			&listing.SoldRoomID,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create listing: %w", err)
		}

		for i, path := range req.ImagePaths {
			image := models.ListingImage{}
			err := tx.QueryRowContext(ctx,
				`INSERT INTO listing_images (id, listing_id, storage_path, sort_order)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id, listing_id, storage_path, sort_order`,
				uuid.NewString(), listing.ID, path, i).Scan(
				&image.ID,
				&image.ListingID,
				&image.StoragePath,
				&image.SortOrder,
			)
			if err != nil {
				return fmt.Errorf("create listing image: %w", err)
			}
			listing.Images = append(listing.Images, image)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return listing, nil
}

func GetListing(ctx context.Context, db *sql.DB, id string) (*models.Listing, error) {
	listing := &models.Listing{}

	query := `
		SELECT id, seller_id, title, description, category, region_code, region_name,
			price, stock_quantity, status, sold_room_id, created_at, updated_at
		FROM listings
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.Title,
		&listing.Description,
		&listing.Category,
		&listing.RegionCode,
		&listing.RegionName,
		&listing.Price,
		&listing.StockQuantity,
		&listing.Status,
		&listing.SoldRoomID,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	imagesQuery := `
		SELECT id, listing_id, storage_path, sort_order
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY sort_order`

	rows, err := db.QueryContext(ctx, imagesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get listing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var image models.ListingImage
		err := rows.Scan(&image.ID, &image.ListingID, &image.StoragePath, &image.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("scan listing image: %w", err)
		}
		listing.Images = append(listing.Images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return listing, nil
}

type ListingFilter struct {
	Category   string
	RegionCode string
	SellerID   string
	Search     string
}

func ListListingsCursor(ctx context.Context, db *sql.DB, filter ListingFilter, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, seller_id, title, description, category, region_code, region_name,
			price, stock_quantity, status, sold_room_id, created_at, updated_at
		FROM listings
		WHERE (created_at, id) < ($1, $2)`
	args := []interface{}{cursorData.CreatedAt, cursorData.ID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.RegionCode != "" {
		args = append(args, filter.RegionCode)
		query += fmt.Sprintf(" AND region_code = $%d", len(args))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		query += fmt.Sprintf(" AND seller_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var listing models.Listing
		err := rows.Scan(
			&listing.ID,
			&listing.SellerID,
			&listing.Title,
			&listing.Description,
			&listing.Category,
			&listing.RegionCode,
			&listing.RegionName,
			&listing.Price,
			&listing.StockQuantity,
			&listing.Status,
			&listing.SoldRoomID,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(listings) > limit
	if hasMore {
		listings = listings[:limit]
	}

	var nextCursor string
	if hasMore && len(listings) > 0 {
		last := listings[len(listings)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      listings,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

type UpdateListingRequest struct {
	Title         string
	Description   string
	Category      string
	RegionCode    *string
	RegionName    *string
	Price         *decimal.Decimal
	StockQuantity *int
}

// UpdateListing is the owner's manual edit. The only other writer of
// stock_quantity is the atomic decrement in PlaceOrder.
func UpdateListing(ctx context.Context, db *sql.DB, id, sellerID string, req UpdateListingRequest) (*models.Listing, error) {
	listing := &models.Listing{}

	query := `
		UPDATE listings
		SET title = $1, description = $2, category = $3, region_code = $4, region_name = $5,
			price = $6, stock_quantity = $7, updated_at = NOW()
		WHERE id = $8 AND seller_id = $9
		RETURNING id, seller_id, title, description, category, region_code, region_name,
			price, stock_quantity, status, sold_room_id, created_at, updated_at`

	err := db.QueryRowContext(ctx, query,
		req.Title, req.Description, req.Category, req.RegionCode, req.RegionName,
		req.Price, req.StockQuantity, id, sellerID).Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.Title,
		&listing.Description,
		&listing.Category,
		&listing.RegionCode,
		&listing.RegionName,
		&listing.Price,
		&listing.StockQuantity,
		&listing.Status,
		&listing.SoldRoomID,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrListingNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}

	return listing, nil
}

// UpdateListingStatus applies a seller-driven status change. Entering SOLD
// binds the sale to one of this listing's buyer rooms; any other target
// status clears the binding.
func UpdateListingStatus(ctx context.Context, db *sql.DB, id, sellerID, status string, soldRoomID *string) (*models.Listing, error) {
	if !models.ValidListingStatus(status) {
		return nil, database.ErrInvalidTransition
	}

	var listing *models.Listing

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var ownerID string
		err := tx.QueryRowContext(ctx,
			`SELECT seller_id FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&ownerID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrListingNotFound
			}
			return fmt.Errorf("lock listing: %w", err)
		}
		if ownerID != sellerID {
			return database.ErrListingNotFound
		}

		var boundRoom *string
		if status == models.ListingStatusSold {
			if soldRoomID == nil || *soldRoomID == "" {
				return database.ErrRoomMismatch
			}
			var roomListing sql.NullString
			err := tx.QueryRowContext(ctx,
				`SELECT listing_id FROM chat_rooms WHERE id = $1`, *soldRoomID).Scan(&roomListing)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrRoomNotFound
				}
				return fmt.Errorf("check sold room: %w", err)
			}
			if !roomListing.Valid || roomListing.String != id {
				return database.ErrRoomMismatch
			}
			boundRoom = soldRoomID
		}

		listing = &models.Listing{}
		err = tx.QueryRowContext(ctx,
			`UPDATE listings
			 SET status = $1, sold_room_id = $2, updated_at = NOW()
			 WHERE id = $3
			 RETURNING id, seller_id, title, description, category, region_code, region_name,
				price, stock_quantity, status, sold_room_id, created_at, updated_at`,
			status, boundRoom, id).Scan(
			&listing.ID,
			&listing.SellerID,
			&listing.Title,
			&listing.Description,
			&listing.Category,
			&listing.RegionCode,
			&listing.RegionName,
			&listing.Price,
			&listing.StockQuantity,
			&listing.Status,
			&listing.SoldRoomID,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update listing status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return listing, nil
}

// FirstListingImagePath returns the thumbnail path for a listing, or empty
// when it has no images.
func FirstListingImagePath(ctx context.Context, db *sql.DB, listingID string) (string, error) {
	var path string
	err := db.QueryRowContext(ctx,
		`SELECT storage_path FROM listing_images
		 WHERE listing_id = $1
		 ORDER BY sort_order
		 LIMIT 1`,
		listingID).Scan(&path)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get listing thumbnail: %w", err)
	}
	return path, nil
}
