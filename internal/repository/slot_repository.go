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

const slotColumns = `
	s.id, s.branch_id, s.teacher_id, s.service_type_id, s.room_id,
	s.start_time, s.end_time, s.capacity, s.reserved_count, s.is_active,
	s.created_at, s.updated_at, b.is_active
`

const reservedBoundsConstraint = "slots_reserved_bounds"

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(q base.Querier) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(q)}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.BranchID,
		&slot.TeacherID,
		&slot.ServiceTypeID,
		&slot.RoomID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Capacity,
		&slot.ReservedCount,
		&slot.IsActive,
		&slot.CreatedAt,
		&slot.UpdatedAt,
		&slot.BranchActive,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create создаёт новый слот; reserved_count всегда начинается с нуля
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (branch_id, teacher_id, service_type_id, room_id, start_time, end_time, capacity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, reserved_count
	`

	err := r.QueryRow(
		ctx, query,
		slot.BranchID,
		slot.TeacherID,
		slot.ServiceTypeID,
		slot.RoomID,
		slot.StartTime,
		slot.EndTime,
		slot.Capacity,
		slot.IsActive,
		slot.CreatedAt,
	).Scan(&slot.ID, &slot.ReservedCount)

	if err != nil {
		if base.IsCheckViolation(err, "") {
			return apperr.Wrap(apperr.CodeInvalidArgument, "slot violates time window or capacity constraints", err)
		}
		return fmt.Errorf("create slot: %w", err)
	}

	slot.UpdatedAt = slot.CreatedAt
	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots s
		JOIN branches b ON b.id = s.branch_id
		WHERE s.id = $1
	`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// GetForUpdate получает слот и блокирует его строку до конца транзакции.
// Это точка сериализации всех Reserve по одному слоту; другие слоты не затрагиваются.
func (r *SlotRepository) GetForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots s
		JOIN branches b ON b.id = s.branch_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	return slot, nil
}

// IncrementReserved занимает одно место, если оно есть
func (r *SlotRepository) IncrementReserved(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE slots
		SET reserved_count = reserved_count + 1, updated_at = $2
		WHERE id = $1 AND reserved_count < capacity
	`

	affected, err := r.ExecAffected(ctx, query, id, at)
	if err != nil {
		if base.IsCheckViolation(err, reservedBoundsConstraint) {
			return false, apperr.Wrap(apperr.CodeInvariantViolation, "reserved count out of bounds", err)
		}
		return false, fmt.Errorf("increment reserved: %w", err)
	}

	return affected == 1, nil
}

// DecrementReserved освобождает одно место; никогда не уходит ниже нуля
func (r *SlotRepository) DecrementReserved(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE slots
		SET reserved_count = reserved_count - 1, updated_at = $2
		WHERE id = $1 AND reserved_count > 0
	`

	affected, err := r.ExecAffected(ctx, query, id, at)
	if err != nil {
		if base.IsCheckViolation(err, reservedBoundsConstraint) {
			return false, apperr.Wrap(apperr.CodeInvariantViolation, "reserved count out of bounds", err)
		}
		return false, fmt.Errorf("decrement reserved: %w", err)
	}

	return affected == 1, nil
}

// SetActive блокирует или разблокирует слот для новых бронирований
func (r *SlotRepository) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	query := `
		UPDATE slots
		SET is_active = $2, updated_at = $3
		WHERE id = $1
	`

	affected, err := r.ExecAffected(ctx, query, id, active, at)
	if err != nil {
		return fmt.Errorf("set slot active: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("slot not found")
	}

	return nil
}

// ListByBranch получает слоты филиала, начинающиеся в [from, to)
func (r *SlotRepository) ListByBranch(ctx context.Context, branchID int64, from, to time.Time) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM slots s
		JOIN branches b ON b.id = s.branch_id
		WHERE s.branch_id = $1
		  AND s.start_time >= $2
		  AND s.start_time < $3
		ORDER BY s.start_time, s.id
	`

	rows, err := r.Query(ctx, query, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots by branch: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots by branch: %w", err)
	}

	return slots, nil
}
