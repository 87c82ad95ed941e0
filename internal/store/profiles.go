package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

func CreateProfile(ctx context.Context, db *sql.DB, id string) (*models.Profile, error) {
	if id == "" {
		id = uuid.NewString()
	}
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING id, nickname, region_code, region_name, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Nickname,
		&profile.RegionCode,
		&profile.RegionName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	return profile, nil
}

func GetProfile(ctx context.Context, db *sql.DB, id string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		SELECT id, nickname, region_code, region_name, created_at, updated_at
		FROM profiles
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Nickname,
		&profile.RegionCode,
		&profile.RegionName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}

// IsNicknameAvailable reports whether nickname is unused by anyone other
// than selfID. The unique index remains the authority; this is the
// pre-check the profile page shows before attempting the save.
func IsNicknameAvailable(ctx context.Context, db *sql.DB, nickname, selfID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM profiles
			WHERE lower(nickname) = lower($1) AND id <> $2
		)`,
		nickname, selfID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check nickname: %w", err)
	}
	return !exists, nil
}

func UpdateNickname(ctx context.Context, db *sql.DB, id, nickname string) (*models.Profile, error) {
	nickname = strings.TrimSpace(nickname)
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (id, nickname, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET nickname = EXCLUDED.nickname, updated_at = NOW()
		RETURNING id, nickname, region_code, region_name, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, id, nickname).Scan(
		&profile.ID,
		&profile.Nickname,
		&profile.RegionCode,
		&profile.RegionName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "profiles_nickname_key") {
			return nil, database.ErrNicknameTaken
		}
		return nil, fmt.Errorf("update nickname: %w", err)
	}

	return profile, nil
}

func UpdateRegion(ctx context.Context, db *sql.DB, id, regionCode, regionName string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (id, region_code, region_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET region_code = EXCLUDED.region_code,
		    region_name = EXCLUDED.region_name,
		    updated_at = NOW()
		RETURNING id, nickname, region_code, region_name, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, id, regionCode, regionName).Scan(
		&profile.ID,
		&profile.Nickname,
		&profile.RegionCode,
		&profile.RegionName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update region: %w", err)
	}

	return profile, nil
}
