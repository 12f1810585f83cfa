package repository

import (
	"context"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, name, code, partner_id, partner_name, anniversary, created_at`

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.PartnerID, &p.PartnerName, &p.Anniversary, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, name, code, partner_id, partner_name, anniversary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Code, p.PartnerID, p.PartnerName, p.Anniversary, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", mapError(err, "profile"))
	}
	return nil
}

// Upsert inserts the profile or replaces the user-editable fields of an existing one.
// Partner linkage is only changed through Link and Unlink.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, name, code, anniversary, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    code = EXCLUDED.code,
		    anniversary = EXCLUDED.anniversary
		RETURNING ` + profileColumns
	saved, err := scanProfile(r.db.QueryRow(ctx, query, p.ID, p.Name, p.Code, p.Anniversary, p.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", mapError(err, "profile"))
	}
	return saved, nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", mapError(err, "profile"))
	}
	return p, nil
}

// GetByCode retrieves a profile by its partner code
func (r *ProfileRepository) GetByCode(ctx context.Context, code string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE code = $1`
	p, err := scanProfile(r.db.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by code: %w", mapError(err, "partner"))
	}
	return p, nil
}

// CodeExists checks if a partner code is already taken
func (r *ProfileRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM profiles WHERE code = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}
