package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"go.uber.org/zap"
)

// AssessmentService ведёт оценку занятия: draft -> pending -> completed.
// Оценка создаётся только для completed бронирования, overall считается только моделью.
type AssessmentService struct {
	store   repository.Store
	emitter *Emitter
	now     Clock
	logger  *zap.Logger
}

func NewAssessmentService(store repository.Store, emitter *Emitter, now Clock, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{
		store:   store,
		emitter: emitter,
		now:     now,
		logger:  logger,
	}
}

// CreateDraft создаёт черновик оценки для completed бронирования.
// teacherID = 0 означает преподавателя слота
func (s *AssessmentService) CreateDraft(ctx context.Context, bookingID, teacherID int64, actor model.Actor) (*model.Assessment, error) {
	now := s.now()
	var assessment *model.Assessment

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		// Блокировка бронирования сериализует параллельные CreateDraft
		booking, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}

		if booking == nil {
			return apperr.New(apperr.CodeBookingNotFound, "booking not found")
		}

		if booking.Status != model.BookingStatusCompleted {
			return apperr.WithMetadata(apperr.CodeBookingNotCompleted, "booking is not completed", map[string]string{
				"status": string(booking.Status),
			})
		}

		existing, err := tx.Assessments().GetByBookingID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get assessment: %w", err)
		}

		if existing != nil {
			return apperr.WithMetadata(apperr.CodeDuplicateAssessment, "assessment already exists for booking", map[string]string{
				"assessment_id": strconv.FormatInt(existing.ID, 10),
			})
		}

		slot, err := tx.Slots().GetByID(ctx, booking.SlotID)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}

		if slot == nil {
			return apperr.New(apperr.CodeInvariantViolation, "booking references missing slot")
		}

		if teacherID == 0 {
			teacherID = slot.TeacherID
		}

		assessment = &model.Assessment{
			BookingID: booking.ID,
			StudentID: booking.StudentID,
			TeacherID: teacherID,
			Status:    model.AssessmentStatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Assessments().Create(ctx, assessment); err != nil {
			return fmt.Errorf("create assessment: %w", err)
		}

		ev := model.NewAssessmentEvent(model.EventAssessmentDrafted, assessment, slot, actor, now)
		ev.ToStatus = string(assessment.Status)
		return s.emitter.Emit(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment drafted",
		zap.Int64("assessment_id", assessment.ID),
		zap.Int64("booking_id", bookingID),
		zap.Int64("teacher_id", assessment.TeacherID),
		zap.Int64("actor_id", actor.ID),
	)

	return assessment, nil
}

// UpdateScores накладывает выставленные составляющие и пересчитывает overall; remarks == nil не трогает примечание
func (s *AssessmentService) UpdateScores(ctx context.Context, assessmentID int64, scores model.Components, remarks *string, actor model.Actor) (*model.Assessment, error) {
	if err := scores.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid score", err)
	}

	now := s.now()
	var assessment *model.Assessment

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		assessment, err = s.lock(ctx, tx, assessmentID)
		if err != nil {
			return err
		}

		if !assessment.Status.Editable() {
			return apperr.New(apperr.CodeAssessmentFinalized, "assessment is finalized")
		}

		assessment.SetComponents(assessment.Components.Merge(scores))
		if remarks != nil {
			assessment.Remarks = *remarks
		}
		assessedAt := now
		assessment.AssessedAt = &assessedAt
		assessment.UpdatedAt = now

		if err := tx.Assessments().Update(ctx, assessment); err != nil {
			return fmt.Errorf("update assessment: %w", err)
		}

		ev, err := s.event(ctx, tx, model.EventAssessmentScored, assessment, actor, now)
		if err != nil {
			return err
		}
		ev.ToStatus = string(assessment.Status)
		if assessment.Overall != nil {
			ev.Payload = map[string]string{"overall": strconv.FormatFloat(*assessment.Overall, 'f', 1, 64)}
		}
		return s.emitter.Emit(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment scored",
		zap.Int64("assessment_id", assessmentID),
		zap.Strings("missing", assessment.Missing()),
		zap.Int64("actor_id", actor.ID),
	)

	return assessment, nil
}

// Submit отправляет черновик на проверку: draft -> pending
func (s *AssessmentService) Submit(ctx context.Context, assessmentID int64, actor model.Actor) (*model.Assessment, error) {
	return s.move(ctx, assessmentID, actor, model.AssessmentStatusPending, func(a *model.Assessment) error {
		switch a.Status {
		case model.AssessmentStatusDraft:
			return nil
		case model.AssessmentStatusCompleted:
			return apperr.New(apperr.CodeAssessmentFinalized, "assessment is finalized")
		default:
			return apperr.WithMetadata(apperr.CodeInvalidTransition, "assessment is already submitted", map[string]string{
				"from": string(a.Status),
				"to":   string(model.AssessmentStatusPending),
			})
		}
	})
}

// Finalize проверка завершена: pending -> completed, только при всех пяти составляющих
func (s *AssessmentService) Finalize(ctx context.Context, assessmentID int64, reviewer model.Actor) (*model.Assessment, error) {
	return s.move(ctx, assessmentID, reviewer, model.AssessmentStatusCompleted, func(a *model.Assessment) error {
		switch a.Status {
		case model.AssessmentStatusCompleted:
			return apperr.New(apperr.CodeAssessmentFinalized, "assessment is finalized")
		case model.AssessmentStatusPending:
		default:
			return apperr.WithMetadata(apperr.CodeAssessmentNotPending, "assessment is not pending review", map[string]string{
				"status": string(a.Status),
			})
		}

		if missing := a.Missing(); len(missing) > 0 {
			return apperr.WithMetadata(apperr.CodeAssessmentIncomplete, "assessment has missing scores", map[string]string{
				"missing": strings.Join(missing, ","),
			})
		}
		return nil
	})
}

func (s *AssessmentService) GetAssessment(ctx context.Context, assessmentID int64) (*model.Assessment, error) {
	assessment, err := s.store.Assessments().GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if assessment == nil {
		return nil, apperr.New(apperr.CodeAssessmentNotFound, "assessment not found")
	}

	return assessment, nil
}

// move общий путь смены статуса оценки: блокировка, проверка, сохранение, событие
func (s *AssessmentService) move(
	ctx context.Context,
	assessmentID int64,
	actor model.Actor,
	target model.AssessmentStatus,
	check func(a *model.Assessment) error,
) (*model.Assessment, error) {
	now := s.now()
	var assessment *model.Assessment
	var from model.AssessmentStatus

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		assessment, err = s.lock(ctx, tx, assessmentID)
		if err != nil {
			return err
		}

		if err := check(assessment); err != nil {
			return err
		}

		from = assessment.Status
		assessment.Status = target
		assessment.UpdatedAt = now

		eventType := model.EventAssessmentSubmitted
		if target == model.AssessmentStatusCompleted {
			eventType = model.EventAssessmentFinalized
			reviewerID, reviewedAt := actor.ID, now
			assessment.ReviewerID = &reviewerID
			assessment.ReviewedAt = &reviewedAt
		}

		if err := tx.Assessments().Update(ctx, assessment); err != nil {
			return fmt.Errorf("update assessment: %w", err)
		}

		ev, err := s.event(ctx, tx, eventType, assessment, actor, now)
		if err != nil {
			return err
		}
		ev.FromStatus = string(from)
		ev.ToStatus = string(target)
		if assessment.Overall != nil {
			ev.Payload = map[string]string{"overall": strconv.FormatFloat(*assessment.Overall, 'f', 1, 64)}
		}
		return s.emitter.Emit(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment status changed",
		zap.Int64("assessment_id", assessmentID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Int64("actor_id", actor.ID),
	)

	return assessment, nil
}

func (s *AssessmentService) lock(ctx context.Context, tx repository.Tx, assessmentID int64) (*model.Assessment, error) {
	assessment, err := tx.Assessments().GetForUpdate(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("lock assessment: %w", err)
	}

	if assessment == nil {
		return nil, apperr.New(apperr.CodeAssessmentNotFound, "assessment not found")
	}

	return assessment, nil
}

// event собирает событие оценки с контекстом слота бронирования
func (s *AssessmentService) event(ctx context.Context, tx repository.Tx, t model.EventType, a *model.Assessment, actor model.Actor, at time.Time) (*model.Event, error) {
	booking, err := tx.Bookings().GetByID(ctx, a.BookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if booking == nil {
		return nil, apperr.New(apperr.CodeInvariantViolation, "assessment references missing booking")
	}

	slot, err := tx.Slots().GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if slot == nil {
		return nil, apperr.New(apperr.CodeInvariantViolation, "booking references missing slot")
	}

	return model.NewAssessmentEvent(t, a, slot, actor, at), nil
}
