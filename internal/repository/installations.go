package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

// GetInstallation retrieves an installation by ID
func (r *Repository) GetInstallation(ctx context.Context, id uuid.UUID) (*db.Installation, error) {
	query := `
		SELECT id, name, location, status, tamper_detected, last_tamper_check, created_at
		FROM solar_installations
		WHERE id = $1
	`

	var installation db.Installation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&installation.ID,
		&installation.Name,
		&installation.Location,
		&installation.Status,
		&installation.TamperDetected,
		&installation.LastTamperCheck,
		&installation.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query installation: %w", err)
	}

	return &installation, nil
}

// ListInstallations retrieves all installations
func (r *Repository) ListInstallations(ctx context.Context) ([]db.Installation, error) {
	query := `
		SELECT id, name, location, status, tamper_detected, last_tamper_check, created_at
		FROM solar_installations
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query installations: %w", err)
	}
	defer rows.Close()

	var installations []db.Installation
	for rows.Next() {
		var installation db.Installation
		if err := rows.Scan(
			&installation.ID,
			&installation.Name,
			&installation.Location,
			&installation.Status,
			&installation.TamperDetected,
			&installation.LastTamperCheck,
			&installation.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		installations = append(installations, installation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return installations, nil
}

// SetInstallationTamperTx updates the aggregate tamper flag and last checked
// time within a transaction
func (r *Repository) SetInstallationTamperTx(ctx context.Context, tx Tx, id uuid.UUID, detected bool, checkedAt time.Time) error {
	query := `
		UPDATE solar_installations
		SET tamper_detected = $1, last_tamper_check = $2
		WHERE id = $3
	`

	_, err := tx.Exec(ctx, query, detected, checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update installation tamper flag: %w", err)
	}

	return nil
}
