package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const assessmentColumns = `
	id, booking_id, student_id, teacher_id,
	fluency, coherence, lexical, grammar, pronunciation, overall,
	status, remarks, reviewer_id, assessed_at, reviewed_at, created_at, updated_at
`

const assessmentBookingConstraint = "assessments_booking_uniq"

type AssessmentRepository struct {
	*base.Repository
}

func NewAssessmentRepository(q base.Querier) *AssessmentRepository {
	return &AssessmentRepository{Repository: base.NewRepository(q)}
}

func scanAssessment(row pgx.Row) (*model.Assessment, error) {
	var (
		a      model.Assessment
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.StudentID,
		&a.TeacherID,
		&a.Fluency,
		&a.Coherence,
		&a.Lexical,
		&a.Grammar,
		&a.Pronunciation,
		&a.Overall,
		&status,
		&a.Remarks,
		&a.ReviewerID,
		&a.AssessedAt,
		&a.ReviewedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.Status, err = model.ParseAssessmentStatus(status); err != nil {
		return nil, fmt.Errorf("assessment %d: %w", a.ID, err)
	}
	return &a, nil
}

// Create создаёт черновик оценки; одна оценка на бронирование
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	query := `
		INSERT INTO assessments (booking_id, student_id, teacher_id, status, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	err := r.QueryRow(ctx, query, a.BookingID, a.StudentID, a.TeacherID, a.Status, a.Remarks, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		if base.IsUniqueViolation(err, assessmentBookingConstraint) {
			return apperr.Wrap(apperr.CodeDuplicateAssessment, "assessment already exists for booking", err)
		}
		return fmt.Errorf("create assessment: %w", err)
	}

	a.UpdatedAt = a.CreatedAt
	return nil
}

// GetByID получает оценку по ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id int64) (*model.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assessment by id: %w", err)
	}

	return a, nil
}

// GetForUpdate получает оценку с блокировкой строки
func (r *AssessmentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1 FOR UPDATE`

	a, err := scanAssessment(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock assessment: %w", err)
	}

	return a, nil
}

// GetByBookingID получает оценку бронирования
func (r *AssessmentRepository) GetByBookingID(ctx context.Context, bookingID int64) (*model.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE booking_id = $1`

	a, err := scanAssessment(r.QueryRow(ctx, query, bookingID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assessment by booking: %w", err)
	}

	return a, nil
}

// Update сохраняет баллы, статус и поля проверки
func (r *AssessmentRepository) Update(ctx context.Context, a *model.Assessment) error {
	query := `
		UPDATE assessments
		SET fluency = $2,
		    coherence = $3,
		    lexical = $4,
		    grammar = $5,
		    pronunciation = $6,
		    overall = $7,
		    status = $8,
		    remarks = $9,
		    reviewer_id = $10,
		    assessed_at = $11,
		    reviewed_at = $12,
		    updated_at = $13
		WHERE id = $1 AND status <> 'completed'
	`

	affected, err := r.ExecAffected(
		ctx, query,
		a.ID,
		a.Fluency,
		a.Coherence,
		a.Lexical,
		a.Grammar,
		a.Pronunciation,
		a.Overall,
		a.Status,
		a.Remarks,
		a.ReviewerID,
		a.AssessedAt,
		a.ReviewedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}

	// Строка уже completed в базе: финализированную оценку не перезаписываем
	if affected == 0 {
		return apperr.New(apperr.CodeAssessmentFinalized, "assessment is finalized")
	}

	return nil
}
