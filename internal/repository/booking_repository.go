package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `
	id, student_id, slot_id, reservation_token, status, attended,
	cancellation_reason, booked_at, cancelled_at, reminded_at, updated_at
`

const activeBookingConstraint = "bookings_active_student_slot_uniq"

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(q base.Querier) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(q)}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		booking model.Booking
		status  string
	)
	err := row.Scan(
		&booking.ID,
		&booking.StudentID,
		&booking.SlotID,
		&booking.ReservationToken,
		&status,
		&booking.Attended,
		&booking.CancellationReason,
		&booking.BookedAt,
		&booking.CancelledAt,
		&booking.RemindedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if booking.Status, err = model.ParseBookingStatus(status); err != nil {
		return nil, fmt.Errorf("booking %d: %w", booking.ID, err)
	}
	return &booking, nil
}

func scanBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (student_id, slot_id, reservation_token, status, booked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`

	err := r.QueryRow(
		ctx, query,
		booking.StudentID,
		booking.SlotID,
		booking.ReservationToken,
		booking.Status,
		booking.BookedAt,
	).Scan(&booking.ID)

	if err != nil {
		if base.IsUniqueViolation(err, activeBookingConstraint) {
			return apperr.Wrap(apperr.CodeDuplicateReservation, "student already holds a booking on this slot", err)
		}
		return fmt.Errorf("create booking: %w", err)
	}

	booking.UpdatedAt = booking.BookedAt
	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetForUpdate получает бронирование и блокирует строку: переходы по одному бронированию идут по очереди
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}

	return booking, nil
}

// HasActive есть ли у студента неотменённое бронирование на слот
func (r *BookingRepository) HasActive(ctx context.Context, studentID, slotID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE student_id = $1 AND slot_id = $2 AND status <> 'cancelled'
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, studentID, slotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}

	return exists, nil
}

// Update сохраняет изменяемые поля бронирования
func (r *BookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $2,
		    attended = $3,
		    cancellation_reason = $4,
		    cancelled_at = $5,
		    reminded_at = $6,
		    updated_at = $7
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		booking.ID,
		booking.Status,
		booking.Attended,
		booking.CancellationReason,
		booking.CancelledAt,
		booking.RemindedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

// ListByStudent получает все бронирования студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1
		ORDER BY booked_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by student: %w", err)
	}

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, fmt.Errorf("get bookings by student: %w", err)
	}

	return bookings, nil
}

// CountSeatHolders считает бронирования, занимающие место в слоте
func (r *BookingRepository) CountSeatHolders(ctx context.Context, slotID int64) (int, error) {
	query := `SELECT count(*) FROM bookings WHERE slot_id = $1 AND status <> 'cancelled'`

	var count int
	if err := r.QueryRow(ctx, query, slotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count seat holders: %w", err)
	}

	return count, nil
}

// ListConfirmedEndedBefore кандидаты для no-show sweep
func (r *BookingRepository) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	query := `
		SELECT bk.id
		FROM bookings bk
		JOIN slots s ON s.id = bk.slot_id
		WHERE bk.status = 'confirmed' AND s.end_time < $1
		ORDER BY s.end_time, bk.id
		LIMIT $2
	`

	return r.listIDs(ctx, "list confirmed ended", query, cutoff, limit)
}

// ListConfirmedStartingBetween кандидаты для напоминаний
func (r *BookingRepository) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time, limit int) ([]int64, error) {
	query := `
		SELECT bk.id
		FROM bookings bk
		JOIN slots s ON s.id = bk.slot_id
		WHERE bk.status = 'confirmed'
		  AND bk.reminded_at IS NULL
		  AND s.start_time >= $1
		  AND s.start_time < $2
		ORDER BY s.start_time, bk.id
		LIMIT $3
	`

	return r.listIDs(ctx, "list confirmed starting", query, from, to, limit)
}

func (r *BookingRepository) listIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}
