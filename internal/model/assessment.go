package model

import (
	"fmt"
	"math"
	"time"
)

type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "draft"     // Черновик учителя
	AssessmentStatusPending   AssessmentStatus = "pending"   // Отправлено на проверку
	AssessmentStatusCompleted AssessmentStatus = "completed" // Проверено, изменять нельзя
)

var AssessmentStatuses = []AssessmentStatus{
	AssessmentStatusDraft,
	AssessmentStatusPending,
	AssessmentStatusCompleted,
}

func ParseAssessmentStatus(s string) (AssessmentStatus, error) {
	for _, st := range AssessmentStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown assessment status %q", s)
}

// Editable баллы можно менять только до финализации
func (s AssessmentStatus) Editable() bool {
	return s == AssessmentStatusDraft || s == AssessmentStatusPending
}

const (
	MinComponentScore = 0.0
	MaxComponentScore = 9.0
)

// Components пять составляющих оценки; nil означает "ещё не выставлено"
type Components struct {
	Fluency       *float64 `json:"fluency"`
	Coherence     *float64 `json:"coherence"`
	Lexical       *float64 `json:"lexical"`
	Grammar       *float64 `json:"grammar"`
	Pronunciation *float64 `json:"pronunciation"`
}

func (c Components) named() []struct {
	name  string
	value *float64
} {
	return []struct {
		name  string
		value *float64
	}{
		{"fluency", c.Fluency},
		{"coherence", c.Coherence},
		{"lexical", c.Lexical},
		{"grammar", c.Grammar},
		{"pronunciation", c.Pronunciation},
	}
}

// Missing имена невыставленных составляющих
func (c Components) Missing() []string {
	var missing []string
	for _, n := range c.named() {
		if n.value == nil {
			missing = append(missing, n.name)
		}
	}
	return missing
}

// Complete все пять составляющих выставлены
func (c Components) Complete() bool {
	return len(c.Missing()) == 0
}

// Merge накладывает выставленные значения patch поверх c
func (c Components) Merge(patch Components) Components {
	pick := func(old, upd *float64) *float64 {
		if upd != nil {
			v := *upd
			return &v
		}
		return old
	}
	return Components{
		Fluency:       pick(c.Fluency, patch.Fluency),
		Coherence:     pick(c.Coherence, patch.Coherence),
		Lexical:       pick(c.Lexical, patch.Lexical),
		Grammar:       pick(c.Grammar, patch.Grammar),
		Pronunciation: pick(c.Pronunciation, patch.Pronunciation),
	}
}

// Validate проверяет диапазон выставленных значений
func (c Components) Validate() error {
	for _, n := range c.named() {
		if n.value == nil {
			continue
		}
		v := *n.value
		if math.IsNaN(v) || v < MinComponentScore || v > MaxComponentScore {
			return fmt.Errorf("%s must be between %.0f and %.0f", n.name, MinComponentScore, MaxComponentScore)
		}
	}
	return nil
}

// Overall среднее пяти составляющих, округлённое до одного знака; nil пока набор неполный
func (c Components) Overall() *float64 {
	if !c.Complete() {
		return nil
	}
	var sum float64
	for _, n := range c.named() {
		sum += *n.value
	}
	overall := math.Round(sum/5*10) / 10
	return &overall
}

type Assessment struct {
	ID         int64            `json:"id"`
	BookingID  int64            `json:"booking_id"`
	StudentID  int64            `json:"student_id"`
	TeacherID  int64            `json:"teacher_id"`
	Components                  // Встраиваем, чтобы json был плоским
	Overall    *float64         `json:"overall"` // только через SetComponents
	Status     AssessmentStatus `json:"status"`
	Remarks    string           `json:"remarks"`
	ReviewerID *int64           `json:"reviewer_id"`
	AssessedAt *time.Time       `json:"assessed_at"`
	ReviewedAt *time.Time       `json:"reviewed_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// SetComponents единственный способ изменить баллы: overall пересчитывается всегда
func (a *Assessment) SetComponents(c Components) {
	a.Components = c
	a.Overall = c.Overall()
}
