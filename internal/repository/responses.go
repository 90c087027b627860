package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

const tamperResponseColumns = `
	id, tamper_event_id, response_type, executed_at, success, failure_reason,
	executed_by, response_details
`

func scanTamperResponse(row interface{ Scan(...any) error }, response *db.TamperResponse) error {
	return row.Scan(
		&response.ID,
		&response.TamperEventID,
		&response.ResponseType,
		&response.ExecutedAt,
		&response.Success,
		&response.FailureReason,
		&response.ExecutedBy,
		&response.ResponseDetails,
	)
}

// InsertTamperResponse inserts a tamper response and fills in the generated ID
func (r *Repository) InsertTamperResponse(ctx context.Context, response *db.TamperResponse) error {
	query := `
		INSERT INTO tamper_responses (
			tamper_event_id, response_type, executed_at, success, failure_reason,
			executed_by, response_details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		response.TamperEventID,
		response.ResponseType,
		response.ExecutedAt,
		response.Success,
		response.FailureReason,
		response.ExecutedBy,
		response.ResponseDetails,
	).Scan(&response.ID)
	if err != nil {
		return fmt.Errorf("failed to insert tamper response: %w", err)
	}

	return nil
}

// ListResponsesByEvent retrieves responses for a tamper event, newest first
func (r *Repository) ListResponsesByEvent(ctx context.Context, eventID uuid.UUID) ([]db.TamperResponse, error) {
	query := `
		SELECT ` + tamperResponseColumns + `
		FROM tamper_responses
		WHERE tamper_event_id = $1
		ORDER BY executed_at DESC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses by event: %w", err)
	}
	defer rows.Close()

	return collectTamperResponses(rows)
}

// ListResponsesByEventAndType retrieves responses for a tamper event with the
// given response type
func (r *Repository) ListResponsesByEventAndType(ctx context.Context, eventID uuid.UUID, responseType db.ResponseType) ([]db.TamperResponse, error) {
	query := `
		SELECT ` + tamperResponseColumns + `
		FROM tamper_responses
		WHERE tamper_event_id = $1 AND response_type = $2
		ORDER BY executed_at DESC
	`

	rows, err := r.pool.Query(ctx, query, eventID, responseType)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses by event and type: %w", err)
	}
	defer rows.Close()

	return collectTamperResponses(rows)
}

// CountSuccessfulResponsesByEvent counts successful responses for a tamper event
func (r *Repository) CountSuccessfulResponsesByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM tamper_responses
		WHERE tamper_event_id = $1 AND success = true
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count successful responses: %w", err)
	}

	return count, nil
}

func collectTamperResponses(rows pgxRows) ([]db.TamperResponse, error) {
	var responses []db.TamperResponse
	for rows.Next() {
		var response db.TamperResponse
		if err := scanTamperResponse(rows, &response); err != nil {
			return nil, fmt.Errorf("failed to scan tamper response: %w", err)
		}
		responses = append(responses, response)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return responses, nil
}
