package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

const tamperEventColumns = `
	id, installation_id, event_type, event_timestamp, severity, confidence_score,
	description, raw_sensor_data, status, resolved, resolved_at, resolved_by,
	resolution_notes, created_at
`

func scanTamperEvent(row interface{ Scan(...any) error }, event *db.TamperEvent) error {
	return row.Scan(
		&event.ID,
		&event.InstallationID,
		&event.EventType,
		&event.Timestamp,
		&event.Severity,
		&event.ConfidenceScore,
		&event.Description,
		&event.RawSensorData,
		&event.Status,
		&event.Resolved,
		&event.ResolvedAt,
		&event.ResolvedBy,
		&event.ResolutionNotes,
		&event.CreatedAt,
	)
}

// InsertTamperEventTx inserts a tamper event within a transaction and fills
// in the generated ID and created time
func (r *Repository) InsertTamperEventTx(ctx context.Context, tx Tx, event *db.TamperEvent) error {
	query := `
		INSERT INTO tamper_events (
			installation_id, event_type, event_timestamp, severity, confidence_score,
			description, raw_sensor_data, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		event.InstallationID,
		event.EventType,
		event.Timestamp,
		event.Severity,
		event.ConfidenceScore,
		event.Description,
		event.RawSensorData,
		event.Status,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tamper event: %w", err)
	}

	return nil
}

// GetTamperEvent retrieves a tamper event by ID
func (r *Repository) GetTamperEvent(ctx context.Context, id uuid.UUID) (*db.TamperEvent, error) {
	query := `SELECT ` + tamperEventColumns + ` FROM tamper_events WHERE id = $1`

	var event db.TamperEvent
	if err := scanTamperEvent(r.pool.QueryRow(ctx, query, id), &event); err != nil {
		return nil, fmt.Errorf("failed to query tamper event: %w", err)
	}

	return &event, nil
}

// GetTamperEventForUpdateTx retrieves a tamper event by ID within a
// transaction, locking the row for the duration of the transaction
func (r *Repository) GetTamperEventForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*db.TamperEvent, error) {
	query := `SELECT ` + tamperEventColumns + ` FROM tamper_events WHERE id = $1 FOR UPDATE`

	var event db.TamperEvent
	if err := scanTamperEvent(tx.QueryRow(ctx, query, id), &event); err != nil {
		return nil, fmt.Errorf("failed to query tamper event for update: %w", err)
	}

	return &event, nil
}

// UpdateTamperEventStatusTx writes the status and resolution fields of an
// event within a transaction
func (r *Repository) UpdateTamperEventStatusTx(ctx context.Context, tx Tx, event *db.TamperEvent) error {
	query := `
		UPDATE tamper_events
		SET status = $1, resolved = $2, resolved_at = $3, resolved_by = $4, resolution_notes = $5
		WHERE id = $6
	`

	_, err := tx.Exec(ctx, query,
		event.Status,
		event.Resolved,
		event.ResolvedAt,
		event.ResolvedBy,
		event.ResolutionNotes,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tamper event status: %w", err)
	}

	return nil
}

// CountUnresolvedByInstallationTx counts unresolved events for an
// installation within a transaction
func (r *Repository) CountUnresolvedByInstallationTx(ctx context.Context, tx Tx, installationID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM tamper_events
		WHERE installation_id = $1 AND resolved = false
	`

	var count int64
	if err := tx.QueryRow(ctx, query, installationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unresolved events: %w", err)
	}

	return count, nil
}

// ListEventsByInstallation retrieves events for an installation, newest first
func (r *Repository) ListEventsByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.TamperEvent, error) {
	query := `
		SELECT ` + tamperEventColumns + `
		FROM tamper_events
		WHERE installation_id = $1
		ORDER BY event_timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, installationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by installation: %w", err)
	}
	defer rows.Close()

	return collectTamperEvents(rows)
}

// ListUnresolvedEvents retrieves unresolved events, optionally filtered by
// severity, most severe and newest first
func (r *Repository) ListUnresolvedEvents(ctx context.Context, severities []db.TamperSeverity) ([]db.TamperEvent, error) {
	query := `
		SELECT ` + tamperEventColumns + `
		FROM tamper_events
		WHERE resolved = false
		  AND (cardinality($1::text[]) = 0 OR severity = ANY($1::text[]))
		ORDER BY
			CASE severity
				WHEN 'CRITICAL' THEN 4
				WHEN 'HIGH' THEN 3
				WHEN 'MEDIUM' THEN 2
				ELSE 1
			END DESC,
			event_timestamp DESC
	`

	names := make([]string, len(severities))
	for i, s := range severities {
		names[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved events: %w", err)
	}
	defer rows.Close()

	return collectTamperEvents(rows)
}

// ListEventsByTimeRange retrieves events for an installation within a time
// range, newest first
func (r *Repository) ListEventsByTimeRange(ctx context.Context, installationID uuid.UUID, start, end time.Time) ([]db.TamperEvent, error) {
	query := `
		SELECT ` + tamperEventColumns + `
		FROM tamper_events
		WHERE installation_id = $1 AND event_timestamp BETWEEN $2 AND $3
		ORDER BY event_timestamp DESC
	`

	rows, err := r.pool.Query(ctx, query, installationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by time range: %w", err)
	}
	defer rows.Close()

	return collectTamperEvents(rows)
}

// ListUnresolvedOlderThan retrieves unresolved events of the given severities
// created before the cutoff, for escalation sweeps
func (r *Repository) ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time, severities []db.TamperSeverity) ([]db.TamperEvent, error) {
	query := `
		SELECT ` + tamperEventColumns + `
		FROM tamper_events
		WHERE resolved = false
		  AND event_timestamp < $1
		  AND severity = ANY($2::text[])
		ORDER BY event_timestamp
	`

	names := make([]string, len(severities))
	for i, s := range severities {
		names[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, query, cutoff, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale unresolved events: %w", err)
	}
	defer rows.Close()

	return collectTamperEvents(rows)
}

type pgxRows interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func collectTamperEvents(rows pgxRows) ([]db.TamperEvent, error) {
	var events []db.TamperEvent
	for rows.Next() {
		var event db.TamperEvent
		if err := scanTamperEvent(rows, &event); err != nil {
			return nil, fmt.Errorf("failed to scan tamper event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
