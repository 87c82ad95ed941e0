package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

type CreateReviewRequest struct {
	ReviewerID string
	ListingID  string
	Rating     int
	Content    string
}

// CreateReview records a buyer's review of a listing. The reviewer must
// hold a CONFIRMED order on the listing, and may review it at most once;
// the unique constraint makes a duplicate attempt fail cleanly even when
// two requests race.
func CreateReview(ctx context.Context, db *sql.DB, req CreateReviewRequest) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ValidationError("rating must be between 1 and 5")
	}
	if req.Content == "" {
		return nil, ValidationError("review content is required")
	}

	var (
		sellerID  string
		confirmed bool
	)
	err := db.QueryRowContext(ctx,
		`SELECT l.seller_id,
			EXISTS (
				SELECT 1 FROM orders o
				WHERE o.listing_id = l.id
				  AND o.buyer_id = $2
				  AND o.status = $3
			)
		 FROM listings l
		 WHERE l.id = $1`,
		req.ListingID, req.ReviewerID, models.OrderStatusConfirmed).Scan(&sellerID, &confirmed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrListingNotFound
		}
		return nil, fmt.Errorf("check review eligibility: %w", err)
	}
	if !confirmed {
		return nil, database.ErrReviewNotAllowed
	}

	review := &models.Review{}
	err = db.QueryRowContext(ctx,
		`INSERT INTO reviews (id, listing_id, reviewer_id, reviewee_id, rating, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING id, listing_id, reviewer_id, reviewee_id, rating, content, created_at`,
		uuid.NewString(), req.ListingID, req.ReviewerID, sellerID, req.Rating, req.Content).Scan(
		&review.ID,
		&review.ListingID,
		&review.ReviewerID,
		&review.RevieweeID,
		&review.Rating,
		&review.Content,
		&review.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "reviews_reviewer_listing_key") {
			return nil, database.ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

// ListReviewsReceived pages reviews written about a seller's listings.
func ListReviewsReceived(ctx context.Context, db *sql.DB, sellerID, cursor string, limit int) (*CursorPage, error) {
	return listReviewsCursor(ctx, db, "reviewee_id", sellerID, cursor, limit)
}

// ListReviewsGiven pages reviews a buyer has written.
func ListReviewsGiven(ctx context.Context, db *sql.DB, reviewerID, cursor string, limit int) (*CursorPage, error) {
	return listReviewsCursor(ctx, db, "reviewer_id", reviewerID, cursor, limit)
}

func listReviewsCursor(ctx context.Context, db *sql.DB, column, userID, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, listing_id, reviewer_id, reviewee_id, rating, content, created_at
		FROM reviews
		WHERE %s = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, column)

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		err := rows.Scan(
			&review.ID,
			&review.ListingID,
			&review.ReviewerID,
			&review.RevieweeID,
			&review.Rating,
			&review.Content,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(reviews) > limit
	if hasMore {
		reviews = reviews[:limit]
	}

	var nextCursor string
	if hasMore && len(reviews) > 0 {
		last := reviews[len(reviews)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      reviews,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// SellerRating returns the average rating and review count for a seller.
func SellerRating(ctx context.Context, db *sql.DB, sellerID string) (avg float64, count int, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE reviewee_id = $1`,
		sellerID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("seller rating: %w", err)
	}
	return avg, count, nil
}
