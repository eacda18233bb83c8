package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

// CreateSlotInput параметры нового слота
type CreateSlotInput struct {
	BranchID      int64
	TeacherID     int64
	ServiceTypeID int64
	RoomID        *int64
	StartTime     time.Time
	EndTime       time.Time
	Capacity      int
}

// SlotService реестр слотов: создание, блокировка, доступность.
// reserved_count здесь только читается.
type SlotService struct {
	store   repository.Store
	emitter *Emitter
	now     Clock
	logger  *zap.Logger
}

func NewSlotService(store repository.Store, emitter *Emitter, now Clock, logger *zap.Logger) *SlotService {
	return &SlotService{
		store:   store,
		emitter: emitter,
		now:     now,
		logger:  logger,
	}
}

// CreateSlot создаёт слот в активном филиале
func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput, actor model.Actor) (*model.Slot, error) {
	now := s.now()

	if !in.EndTime.After(in.StartTime) {
		return nil, apperr.New(apperr.CodeInvalidArgument, "end time must be after start time")
	}

	if in.Capacity < 1 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "capacity must be at least 1")
	}

	if !in.StartTime.After(now) {
		return nil, apperr.WithMetadata(apperr.CodeSlotInPast, "slot must start in the future", map[string]string{
			"start_time": in.StartTime.UTC().Format(time.RFC3339),
		})
	}

	slot := &model.Slot{
		BranchID:      in.BranchID,
		TeacherID:     in.TeacherID,
		ServiceTypeID: in.ServiceTypeID,
		RoomID:        in.RoomID,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Capacity:      in.Capacity,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		branch, err := tx.Branches().GetByID(ctx, in.BranchID)
		if err != nil {
			return fmt.Errorf("get branch: %w", err)
		}

		if branch == nil {
			return apperr.New(apperr.CodeBranchNotFound, "branch not found")
		}

		if !branch.IsActive {
			return apperr.New(apperr.CodeBranchInactive, "branch is inactive")
		}

		if err := tx.Slots().Create(ctx, slot); err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		slot.BranchActive = true

		ev := model.NewSlotEvent(model.EventSlotCreated, slot, actor, now)
		ev.Payload = map[string]string{
			"capacity":   strconv.Itoa(slot.Capacity),
			"start_time": slot.StartTime.UTC().Format(time.RFC3339),
		}
		return s.emitter.Emit(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("branch_id", slot.BranchID),
		zap.Int64("teacher_id", slot.TeacherID),
		zap.Time("start_time", slot.StartTime),
		zap.Int("capacity", slot.Capacity),
	)

	return slot, nil
}

func (s *SlotService) GetSlot(ctx context.Context, slotID int64) (*model.Slot, error) {
	slot, err := s.store.Slots().GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		return nil, apperr.New(apperr.CodeSlotNotFound, "slot not found")
	}

	return slot, nil
}

// SetSlotActive блокирует или разблокирует слот; повтор с тем же значением ничего не пишет
func (s *SlotService) SetSlotActive(ctx context.Context, slotID int64, active bool, actor model.Actor) (*model.Slot, error) {
	now := s.now()
	var slot *model.Slot
	changed := false

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		slot, err = tx.Slots().GetForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}

		if slot == nil {
			return apperr.New(apperr.CodeSlotNotFound, "slot not found")
		}

		if slot.IsActive == active {
			return nil
		}

		if err := tx.Slots().SetActive(ctx, slotID, active, now); err != nil {
			return fmt.Errorf("set slot active: %w", err)
		}
		slot.IsActive = active
		slot.UpdatedAt = now
		changed = true

		eventType := model.EventSlotBlocked
		if active {
			eventType = model.EventSlotUnblocked
		}
		return s.emitter.Emit(ctx, tx, model.NewSlotEvent(eventType, slot, actor, now))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Slot activity changed",
			zap.Int64("slot_id", slotID),
			zap.Bool("active", active),
			zap.Int64("actor_id", actor.ID),
		)
	}

	return slot, nil
}

// Availability слоты филиала с началом в [from, to)
func (s *SlotService) Availability(ctx context.Context, branchID int64, from, to time.Time) ([]model.SlotAvailability, error) {
	if !to.After(from) {
		return nil, apperr.New(apperr.CodeInvalidArgument, "range end must be after range start")
	}

	branch, err := s.store.Branches().GetByID(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}

	if branch == nil {
		return nil, apperr.New(apperr.CodeBranchNotFound, "branch not found")
	}

	slots, err := s.store.Slots().ListByBranch(ctx, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	result := make([]model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		result = append(result, model.NewSlotAvailability(slot))
	}

	return result, nil
}
