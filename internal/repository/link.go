package repository

import (
	"context"
	"fmt"

	"couple-notes-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// Link sets both sides of a partnership inside one transaction,
// so either both profiles point at each other or neither changes.
// Both rows are locked and re-checked so a concurrent link to a third profile fails with a conflict.
func (r *ProfileRepository) Link(ctx context.Context, me, partner *models.Profile) error {
	query := `UPDATE profiles SET partner_id = $1, partner_name = $2 WHERE id = $3`

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, partner_id FROM profiles WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`,
			me.ID, partner.ID)
		if err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}
		current := make(map[string]*string, 2)
		for rows.Next() {
			var id string
			var partnerID *string
			if err := rows.Scan(&id, &partnerID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan profile: %w", err)
			}
			current[id] = partnerID
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to lock profiles: %w", err)
		}

		if err := checkLinkable(current, me.ID, partner.ID); err != nil {
			return err
		}

		result, err := tx.Exec(ctx, query, partner.ID, partner.Name, me.ID)
		if err != nil {
			return fmt.Errorf("failed to set requester partner: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("profile %w", models.ErrNotFound)
		}

		result, err = tx.Exec(ctx, query, me.ID, me.Name, partner.ID)
		if err != nil {
			return fmt.Errorf("failed to set partner back-link: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("partner %w", models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to link profiles: %w", err)
	}
	return nil
}

// checkLinkable requires both rows to exist and each to be free or already
// pointing at the other
func checkLinkable(current map[string]*string, myID, partnerID string) error {
	mine, ok := current[myID]
	if !ok {
		return fmt.Errorf("profile %w", models.ErrNotFound)
	}
	theirs, ok := current[partnerID]
	if !ok {
		return fmt.Errorf("partner %w", models.ErrNotFound)
	}
	if mine != nil && *mine != "" && *mine != partnerID {
		return fmt.Errorf("profile is already linked to another partner: %w", models.ErrConflict)
	}
	if theirs != nil && *theirs != "" && *theirs != myID {
		return fmt.Errorf("partner is already linked to another profile: %w", models.ErrConflict)
	}
	return nil
}

// Unlink clears the partnership of the given profile and of its partner.
// It returns the former partner's ID.
func (r *ProfileRepository) Unlink(ctx context.Context, id string) (string, error) {
	var partnerID string

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var current *string
		err := tx.QueryRow(ctx, `SELECT partner_id FROM profiles WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			return mapError(err, "profile")
		}
		if current == nil || *current == "" {
			return fmt.Errorf("partner %w", models.ErrNotFound)
		}
		partnerID = *current

		query := `
			UPDATE profiles SET partner_id = NULL, partner_name = NULL
			WHERE id = $1 OR (id = $2 AND partner_id = $1)
		`
		if _, err := tx.Exec(ctx, query, id, partnerID); err != nil {
			return fmt.Errorf("failed to clear partner links: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to unlink profiles: %w", err)
	}
	return partnerID, nil
}
