package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `
	seq, id, type, booking_id, student_id, slot_id, branch_id, assessment_id,
	actor_id, actor_role, from_status, to_status, reason_code, payload, occurred_at, dispatched_at
`

// EventRepository журнал событий (аудит + outbox для уведомлений), только добавление
type EventRepository struct {
	*base.Repository
}

func NewEventRepository(q base.Querier) *EventRepository {
	return &EventRepository{Repository: base.NewRepository(q)}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.Type,
		&e.BookingID,
		&e.StudentID,
		&e.SlotID,
		&e.BranchID,
		&e.AssessmentID,
		&e.ActorID,
		&e.ActorRole,
		&e.FromStatus,
		&e.ToStatus,
		&e.ReasonCode,
		&e.Payload,
		&e.OccurredAt,
		&e.DispatchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*model.Event, error) {
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Append записывает событие в журнал
func (r *EventRepository) Append(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO booking_events (
			id, type, booking_id, student_id, slot_id, branch_id, assessment_id,
			actor_id, actor_role, from_status, to_status, reason_code, payload, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq
	`

	payload := e.Payload
	if payload == nil {
		payload = map[string]string{}
	}

	err := r.QueryRow(
		ctx, query,
		e.ID,
		e.Type,
		e.BookingID,
		e.StudentID,
		e.SlotID,
		e.BranchID,
		e.AssessmentID,
		e.ActorID,
		e.ActorRole,
		e.FromStatus,
		e.ToStatus,
		e.ReasonCode,
		payload,
		e.OccurredAt,
	).Scan(&e.Seq)

	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

// ListUndispatched получает неотправленные события в порядке записи
func (r *EventRepository) ListUndispatched(ctx context.Context, limit int) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM booking_events
		WHERE dispatched_at IS NULL
		ORDER BY seq
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list undispatched events: %w", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("list undispatched events: %w", err)
	}

	return events, nil
}

// MarkDispatched отмечает событие доставленным
func (r *EventRepository) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE booking_events
		SET dispatched_at = $2
		WHERE id = $1 AND dispatched_at IS NULL
	`

	if _, err := r.ExecAffected(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}

	return nil
}

// ListByBooking история бронирования для аудита
func (r *EventRepository) ListByBooking(ctx context.Context, bookingID int64) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY seq
	`

	rows, err := r.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list events by booking: %w", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("list events by booking: %w", err)
	}

	return events, nil
}
