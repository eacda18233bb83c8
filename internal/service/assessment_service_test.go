package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/apperr"
	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullScores() model.Components {
	return model.Components{
		Fluency:       scorePtr(7),
		Coherence:     scorePtr(7),
		Lexical:       scorePtr(6.5),
		Grammar:       scorePtr(7),
		Pronunciation: scorePtr(7.5),
	}
}

func TestCreateDraftGating(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed", func(t *testing.T) {
		e := newEnv(t)
		slot := e.slotAt(t, 48*time.Hour, 1)
		b := e.book(t, slot.ID, student.ID)

		_, err := e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
		assert.Equal(t, apperr.CodeBookingNotCompleted, apperr.CodeOf(err))
		assert.Equal(t, "confirmed", apperr.MetadataOf(err)["status"])
	})

	t.Run("cancelled", func(t *testing.T) {
		e := newEnv(t)
		slot := e.slotAt(t, 48*time.Hour, 1)
		b := e.book(t, slot.ID, student.ID)
		_, err := e.bookings.Cancel(ctx, b.ID, student, nil, false)
		require.NoError(t, err)

		_, err = e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
		assert.Equal(t, apperr.CodeBookingNotCompleted, apperr.CodeOf(err))
	})

	t.Run("no show", func(t *testing.T) {
		e := newEnv(t)
		slot := e.slotAt(t, time.Hour, 1)
		b := e.book(t, slot.ID, student.ID)
		e.clock.Set(slot.EndTime.Add(time.Hour))
		_, err := e.bookings.SweepNoShows(ctx)
		require.NoError(t, err)

		_, err = e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
		assert.Equal(t, apperr.CodeBookingNotCompleted, apperr.CodeOf(err))
	})

	t.Run("missing booking", func(t *testing.T) {
		e := newEnv(t)

		_, err := e.assessments.CreateDraft(ctx, 77, teacher.ID, teacher)
		assert.Equal(t, apperr.CodeBookingNotFound, apperr.CodeOf(err))
	})
}

// Посещение после конца занятия -> completed -> черновик; второй черновик запрещён
func TestCompletedBookingUnlocksSingleDraft(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.completedBooking(t)

	require.Equal(t, model.BookingStatusCompleted, b.Status)

	a, err := e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentStatusDraft, a.Status)
	assert.Equal(t, student.ID, a.StudentID)
	assert.Equal(t, teacher.ID, a.TeacherID)
	assert.Nil(t, a.Overall)

	_, err = e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
	assert.Equal(t, apperr.CodeDuplicateAssessment, apperr.CodeOf(err))
}

func TestUpdateScoresRecomputesOverall(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.completedBooking(t)
	a, err := e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
	require.NoError(t, err)

	partial, err := e.assessments.UpdateScores(ctx, a.ID, model.Components{Fluency: scorePtr(7)}, nil, teacher)
	require.NoError(t, err)
	assert.Nil(t, partial.Overall)
	assert.Len(t, partial.Missing(), 4)

	remarks := "good pace"
	full, err := e.assessments.UpdateScores(ctx, a.ID, fullScores(), &remarks, teacher)
	require.NoError(t, err)
	require.NotNil(t, full.Overall)
	assert.InDelta(t, 7.0, *full.Overall, 1e-9)
	assert.Equal(t, "good pace", full.Remarks)

	updated, err := e.assessments.UpdateScores(ctx, a.ID, model.Components{Fluency: scorePtr(9)}, nil, teacher)
	require.NoError(t, err)
	assert.InDelta(t, 7.4, *updated.Overall, 1e-9)
	assert.Equal(t, "good pace", updated.Remarks)

	stored, err := e.assessments.GetAssessment(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.4, *stored.Overall, 1e-9)

	_, err = e.assessments.UpdateScores(ctx, a.ID, model.Components{Grammar: scorePtr(9.5)}, nil, teacher)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestAssessmentLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.completedBooking(t)
	a, err := e.assessments.CreateDraft(ctx, b.ID, teacher.ID, teacher)
	require.NoError(t, err)

	_, err = e.assessments.Finalize(ctx, a.ID, staff)
	assert.Equal(t, apperr.CodeAssessmentNotPending, apperr.CodeOf(err))

	_, err = e.assessments.UpdateScores(ctx, a.ID, model.Components{Fluency: scorePtr(6), Grammar: scorePtr(6)}, nil, teacher)
	require.NoError(t, err)

	submitted, err := e.assessments.Submit(ctx, a.ID, teacher)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentStatusPending, submitted.Status)

	_, err = e.assessments.Submit(ctx, a.ID, teacher)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))

	_, err = e.assessments.Finalize(ctx, a.ID, staff)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAssessmentIncomplete, apperr.CodeOf(err))
	assert.Equal(t, "coherence,lexical,pronunciation", apperr.MetadataOf(err)["missing"])

	// В pending баллы ещё можно править
	_, err = e.assessments.UpdateScores(ctx, a.ID, fullScores(), nil, teacher)
	require.NoError(t, err)

	final, err := e.assessments.Finalize(ctx, a.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentStatusCompleted, final.Status)
	assert.Equal(t, staff.ID, *final.ReviewerID)
	assert.NotNil(t, final.ReviewedAt)

	_, err = e.assessments.UpdateScores(ctx, a.ID, model.Components{Fluency: scorePtr(1)}, nil, teacher)
	assert.Equal(t, apperr.CodeAssessmentFinalized, apperr.CodeOf(err))

	_, err = e.assessments.Finalize(ctx, a.ID, staff)
	assert.Equal(t, apperr.CodeAssessmentFinalized, apperr.CodeOf(err))

	_, err = e.assessments.Submit(ctx, a.ID, teacher)
	assert.Equal(t, apperr.CodeAssessmentFinalized, apperr.CodeOf(err))

	stored, err := e.assessments.GetAssessment(ctx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, *stored.Overall, 1e-9)

	var finalized []model.Event
	for _, ev := range e.store.AllEvents() {
		if ev.Type == model.EventAssessmentFinalized {
			finalized = append(finalized, ev)
		}
	}
	require.Len(t, finalized, 1)
	assert.Equal(t, b.ID, *finalized[0].BookingID)
	assert.Equal(t, student.ID, *finalized[0].StudentID)
	assert.Equal(t, b.SlotID, finalized[0].SlotID)
	assert.Equal(t, e.branchID, finalized[0].BranchID)
	assert.Equal(t, "7.0", finalized[0].Payload["overall"])
}

func TestGetAssessmentNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.assessments.GetAssessment(context.Background(), 5)
	assert.Equal(t, apperr.CodeAssessmentNotFound, apperr.CodeOf(err))
}

// Черновик от сотрудника офиса: в аудите сотрудник, преподаватель берётся из слота
func TestCreateDraftByStaffRecordsRealActor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.completedBooking(t)

	a, err := e.assessments.CreateDraft(ctx, b.ID, 0, staff)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, a.TeacherID)

	var drafted []model.Event
	for _, ev := range e.store.AllEvents() {
		if ev.Type == model.EventAssessmentDrafted {
			drafted = append(drafted, ev)
		}
	}
	require.Len(t, drafted, 1)
	assert.Equal(t, staff.ID, drafted[0].ActorID)
	assert.Equal(t, model.RoleStaff, drafted[0].ActorRole)
}
