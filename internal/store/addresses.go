package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

// MaxAddressesPerOwner caps the address book size. The original only
// checked this in the client; here it is enforced inside the insert
// transaction.
const MaxAddressesPerOwner = 4

type UpsertAddressRequest struct {
	ID            string // empty for insert
	OwnerID       string
	ReceiverName  string
	ReceiverPhone string
	PostalCode    string
	RoadAddress   string
	AddressDetail string
	SetDefault    bool
}

// UpsertAddress inserts or updates a shipping address. When SetDefault is
// requested, the clear-all-then-set-one sequence runs inside a single
// transaction so no concurrent reader observes two defaults.
func UpsertAddress(ctx context.Context, db *sql.DB, req UpsertAddressRequest) (*models.ShippingAddress, error) {
	var address *models.ShippingAddress

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		address, err = upsertAddressTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	return address, nil
}

func upsertAddressTx(ctx context.Context, tx *sql.Tx, req UpsertAddressRequest) (*models.ShippingAddress, error) {
	// Serialize writers for this owner's address book.
	if _, err := tx.ExecContext(ctx,
		`SELECT 1 FROM shipping_addresses WHERE owner_id = $1 FOR UPDATE`, req.OwnerID); err != nil {
		return nil, fmt.Errorf("lock addresses: %w", err)
	}

	if req.SetDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET is_default = FALSE, updated_at = NOW()
			 WHERE owner_id = $1 AND is_default`, req.OwnerID); err != nil {
			return nil, fmt.Errorf("clear default addresses: %w", err)
		}
	}

	address := &models.ShippingAddress{}

	if req.ID == "" {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM shipping_addresses WHERE owner_id = $1`, req.OwnerID).Scan(&count); err != nil {
			return nil, fmt.Errorf("count addresses: %w", err)
		}
		if count >= MaxAddressesPerOwner {
			return nil, database.ErrAddressLimit
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO shipping_addresses
				(id, owner_id, receiver_name, receiver_phone, postal_code, road_address,
				 address_detail, is_default, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			 RETURNING id, owner_id, receiver_name, receiver_phone, postal_code, road_address,
				address_detail, is_default, created_at, updated_at`,
			uuid.NewString(), req.OwnerID, req.ReceiverName, req.ReceiverPhone,
			req.PostalCode, req.RoadAddress, req.AddressDetail, req.SetDefault).Scan(
			&address.ID,
			&address.OwnerID,
			&address.ReceiverName,
			&address.ReceiverPhone,
			&address.PostalCode,
			&address.RoadAddress,
			&address.AddressDetail,
			&address.IsDefault,
			&address.CreatedAt,
			&address.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("create address: %w", err)
		}
		return address, nil
	}

	err := tx.QueryRowContext(ctx,
		`UPDATE shipping_addresses
		 SET receiver_name = $1, receiver_phone = $2, postal_code = $3, road_address = $4,
			address_detail = $5, is_default = (is_default OR $6), updated_at = NOW()
		 WHERE id = $7 AND owner_id = $8
		 RETURNING id, owner_id, receiver_name, receiver_phone, postal_code, road_address,
			address_detail, is_default, created_at, updated_at`,
		req.ReceiverName, req.ReceiverPhone, req.PostalCode, req.RoadAddress,
		req.AddressDetail, req.SetDefault, req.ID, req.OwnerID).Scan(
		&address.ID,
		&address.OwnerID,
		&address.ReceiverName,
		&address.ReceiverPhone,
		&address.PostalCode,
		&address.RoadAddress,
		&address.AddressDetail,
		&address.IsDefault,
		&address.CreatedAt,
		&address.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("update address: %w", err)
	}

	return address, nil
}

// DeleteAddress removes an address. When the default is deleted, the most
// recently created remaining address is promoted so checkout still has a
// preselection; when none remain, no default exists.
func DeleteAddress(ctx context.Context, db *sql.DB, id, ownerID string) error {
	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var wasDefault bool
		err := tx.QueryRowContext(ctx,
			`DELETE FROM shipping_addresses
			 WHERE id = $1 AND owner_id = $2
			 RETURNING is_default`,
			id, ownerID).Scan(&wasDefault)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrAddressNotFound
			}
			return fmt.Errorf("delete address: %w", err)
		}

		if !wasDefault {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE shipping_addresses SET is_default = TRUE, updated_at = NOW()
			 WHERE id = (
				SELECT id FROM shipping_addresses
				WHERE owner_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT 1
			 )`, ownerID)
		if err != nil {
			return fmt.Errorf("promote default address: %w", err)
		}
		return nil
	})
}

func GetAddress(ctx context.Context, db *sql.DB, id, ownerID string) (*models.ShippingAddress, error) {
	address := &models.ShippingAddress{}

	query := `
		SELECT id, owner_id, receiver_name, receiver_phone, postal_code, road_address,
			address_detail, is_default, created_at, updated_at
		FROM shipping_addresses
		WHERE id = $1 AND owner_id = $2`

	err := db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&address.ID,
		&address.OwnerID,
		&address.ReceiverName,
		&address.ReceiverPhone,
		&address.PostalCode,
		&address.RoadAddress,
		&address.AddressDetail,
		&address.IsDefault,
		&address.CreatedAt,
		&address.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return address, nil
}

func ListAddresses(ctx context.Context, db *sql.DB, ownerID string) ([]models.ShippingAddress, error) {
	query := `
		SELECT id, owner_id, receiver_name, receiver_phone, postal_code, road_address,
			address_detail, is_default, created_at, updated_at
		FROM shipping_addresses
		WHERE owner_id = $1
		ORDER BY is_default DESC, created_at DESC`

	rows, err := db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.ShippingAddress
	for rows.Next() {
		var address models.ShippingAddress
		err := rows.Scan(
			&address.ID,
			&address.OwnerID,
			&address.ReceiverName,
			&address.ReceiverPhone,
			&address.PostalCode,
			&address.RoadAddress,
			&address.AddressDetail,
			&address.IsDefault,
			&address.CreatedAt,
			&address.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}
