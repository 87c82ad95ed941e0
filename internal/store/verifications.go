package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

type SubmitVerificationRequest struct {
	UserID              string
	FarmName            string
	OwnerName           string
	Phone               string
	Address             string
	AddressDetail       *string
	LocationNote        *string
	Description         *string
	BusinessLicensePath string
	Latitude            *float64
	Longitude           *float64
}

// SubmitVerification inserts or replaces the caller's verification request.
// A change to any reviewed field (farm name, owner name, address, license)
// on an already-approved record drops the record back to PENDING; other
// edits keep the approval.
func SubmitVerification(ctx context.Context, db *sql.DB, req SubmitVerificationRequest) (*models.SellerVerification, error) {
	var result *models.SellerVerification

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		existing := &models.SellerVerification{}
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, farm_name, owner_name, phone, address, business_license_path, status, requested_at, reviewed_at, reviewed_by
			 FROM seller_verifications
			 WHERE user_id = $1
			 FOR UPDATE`,
			req.UserID).Scan(
			&existing.UserID,
			&existing.FarmName,
			&existing.OwnerName,
			&existing.Phone,
			&existing.Address,
			&existing.BusinessLicensePath,
			&existing.Status,
			&existing.RequestedAt,
			&existing.ReviewedAt,
			&existing.ReviewedBy,
		)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("lock verification: %w", err)
		}
		hasExisting := err == nil

		status := models.VerificationStatusPending
		requestedAt := time.Now().UTC()
		var reviewedAt *time.Time
		var reviewedBy *string

		if hasExisting && existing.Status == models.VerificationStatusApproved {
			coreChanged := existing.FarmName != req.FarmName ||
				existing.OwnerName != req.OwnerName ||
				existing.Address != req.Address ||
				existing.BusinessLicensePath != req.BusinessLicensePath

			if !coreChanged {
				status = models.VerificationStatusApproved
				requestedAt = existing.RequestedAt
				reviewedAt = existing.ReviewedAt
				reviewedBy = existing.ReviewedBy
			}
		}

		result = &models.SellerVerification{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO seller_verifications
				(user_id, farm_name, owner_name, phone, address, address_detail, location_note,
				 description, business_license_path, latitude, longitude, status,
				 requested_at, reviewed_at, reviewed_by, rejection_reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULL)
			 ON CONFLICT (user_id) DO UPDATE SET
				farm_name = EXCLUDED.farm_name,
				owner_name = EXCLUDED.owner_name,
				phone = EXCLUDED.phone,
				address = EXCLUDED.address,
				address_detail = EXCLUDED.address_detail,
				location_note = EXCLUDED.location_note,
				description = EXCLUDED.description,
				business_license_path = EXCLUDED.business_license_path,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				status = EXCLUDED.status,
				requested_at = EXCLUDED.requested_at,
				reviewed_at = EXCLUDED.reviewed_at,
				reviewed_by = EXCLUDED.reviewed_by,
				rejection_reason = NULL
			 RETURNING user_id, farm_name, owner_name, phone, address, address_detail, location_note,
				description, business_license_path, latitude, longitude, status,
				requested_at, reviewed_at, reviewed_by, rejection_reason`,
			req.UserID, req.FarmName, req.OwnerName, req.Phone, req.Address, req.AddressDetail,
			req.LocationNote, req.Description, req.BusinessLicensePath, req.Latitude, req.Longitude,
			status, requestedAt, reviewedAt, reviewedBy).Scan(
			&result.UserID,
			&result.FarmName,
			&result.OwnerName,
			&result.Phone,
			&result.Address,
			&result.AddressDetail,
			&result.LocationNote,
			&result.Description,
			&result.BusinessLicensePath,
			&result.Latitude,
			&result.Longitude,
			&result.Status,
			&result.RequestedAt,
			&result.ReviewedAt,
			&result.ReviewedBy,
			&result.RejectionReason,
		)
		if err != nil {
			return fmt.Errorf("save verification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetVerification(ctx context.Context, db *sql.DB, userID string) (*models.SellerVerification, error) {
	v := &models.SellerVerification{}

	query := `
		SELECT user_id, farm_name, owner_name, phone, address, address_detail, location_note,
			description, business_license_path, latitude, longitude, status,
			requested_at, reviewed_at, reviewed_by, rejection_reason
		FROM seller_verifications
		WHERE user_id = $1`

	err := db.QueryRowContext(ctx, query, userID).Scan(
		&v.UserID,
		&v.FarmName,
		&v.OwnerName,
		&v.Phone,
		&v.Address,
		&v.AddressDetail,
		&v.LocationNote,
		&v.Description,
		&v.BusinessLicensePath,
		&v.Latitude,
		&v.Longitude,
		&v.Status,
		&v.RequestedAt,
		&v.ReviewedAt,
		&v.ReviewedBy,
		&v.RejectionReason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("get verification: %w", err)
	}

	return v, nil
}

func ListPendingVerifications(ctx context.Context, db *sql.DB) ([]models.SellerVerification, error) {
	query := `
		SELECT user_id, farm_name, owner_name, phone, address, address_detail, location_note,
			description, business_license_path, latitude, longitude, status,
			requested_at, reviewed_at, reviewed_by, rejection_reason
		FROM seller_verifications
		WHERE status = $1
		ORDER BY requested_at`

	rows, err := db.QueryContext(ctx, query, models.VerificationStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending verifications: %w", err)
	}
	defer rows.Close()

	var out []models.SellerVerification
	for rows.Next() {
		var v models.SellerVerification
		err := rows.Scan(
			&v.UserID,
			&v.FarmName,
			&v.OwnerName,
			&v.Phone,
			&v.Address,
			&v.AddressDetail,
			&v.LocationNote,
			&v.Description,
			&v.BusinessLicensePath,
			&v.Latitude,
			&v.Longitude,
			&v.Status,
			&v.RequestedAt,
			&v.ReviewedAt,
			&v.ReviewedBy,
			&v.RejectionReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func ApproveVerification(ctx context.Context, db *sql.DB, userID, reviewerID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE seller_verifications
		 SET status = $1, reviewed_at = NOW(), reviewed_by = $2, rejection_reason = NULL
		 WHERE user_id = $3`,
		models.VerificationStatusApproved, reviewerID, userID)
	if err != nil {
		return fmt.Errorf("approve verification: %w", err)
	}
	return requireRowAffected(result, database.ErrVerificationNotFound)
}

func RejectVerification(ctx context.Context, db *sql.DB, userID, reviewerID, reason string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE seller_verifications
		 SET status = $1, reviewed_at = NOW(), reviewed_by = $2, rejection_reason = $3
		 WHERE user_id = $4`,
		models.VerificationStatusRejected, reviewerID, reason, userID)
	if err != nil {
		return fmt.Errorf("reject verification: %w", err)
	}
	return requireRowAffected(result, database.ErrVerificationNotFound)
}

// ListApprovedFarms returns approved sellers with map coordinates, for the
// farm map view.
func ListApprovedFarms(ctx context.Context, db *sql.DB) ([]models.SellerVerification, error) {
	query := `
		SELECT user_id, farm_name, owner_name, phone, address, address_detail, location_note,
			description, business_license_path, latitude, longitude, status,
			requested_at, reviewed_at, reviewed_by, rejection_reason
		FROM seller_verifications
		WHERE status = $1
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL
		ORDER BY farm_name`

	rows, err := db.QueryContext(ctx, query, models.VerificationStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved farms: %w", err)
	}
	defer rows.Close()

	var out []models.SellerVerification
	for rows.Next() {
		var v models.SellerVerification
		err := rows.Scan(
			&v.UserID,
			&v.FarmName,
			&v.OwnerName,
			&v.Phone,
			&v.Address,
			&v.AddressDetail,
			&v.LocationNote,
			&v.Description,
			&v.BusinessLicensePath,
			&v.Latitude,
			&v.Longitude,
			&v.Status,
			&v.RequestedAt,
			&v.ReviewedAt,
			&v.ReviewedBy,
			&v.RejectionReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan farm: %w", err)
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func requireRowAffected(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
