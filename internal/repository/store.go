package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Методы Get* возвращают nil, nil если строка не найдена.
// Методы *ForUpdate внутри транзакции берут блокировку строки до коммита.

type BranchStore interface {
	Create(ctx context.Context, branch *model.Branch) error
	GetByID(ctx context.Context, id int64) (*model.Branch, error)
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Slot, error)
	// IncrementReserved атомарно +1, только если reserved_count < capacity; false - мест нет
	IncrementReserved(ctx context.Context, id int64, at time.Time) (bool, error)
	// DecrementReserved атомарно -1, только если reserved_count > 0; false - нечего освобождать
	DecrementReserved(ctx context.Context, id int64, at time.Time) (bool, error)
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
	ListByBranch(ctx context.Context, branchID int64, from, to time.Time) ([]*model.Slot, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	HasActive(ctx context.Context, studentID, slotID int64) (bool, error)
	// Update сохраняет status, attended, cancellation_reason, cancelled_at, reminded_at
	Update(ctx context.Context, booking *model.Booking) error
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	// CountSeatHolders число бронирований слота, которые держат место (все кроме cancelled)
	CountSeatHolders(ctx context.Context, slotID int64) (int, error)
	// ListConfirmedEndedBefore confirmed бронирования, чей слот закончился раньше cutoff
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	// ListConfirmedStartingBetween confirmed бронирования без напоминания, начинающиеся в [from, to)
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time, limit int) ([]int64, error)
}

type AssessmentStore interface {
	Create(ctx context.Context, a *model.Assessment) error
	GetByID(ctx context.Context, id int64) (*model.Assessment, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Assessment, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*model.Assessment, error)
	Update(ctx context.Context, a *model.Assessment) error
}

type EventStore interface {
	Append(ctx context.Context, e *model.Event) error
	ListUndispatched(ctx context.Context, limit int) ([]*model.Event, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByBooking(ctx context.Context, bookingID int64) ([]*model.Event, error)
}

type UserStore interface {
	// Upsert не перезаписывает telegram_id, уже привязанный к другому чату
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	ClearTelegram(ctx context.Context, userID int64) error
	CreateLinkToken(ctx context.Context, token *model.LinkToken) error
	// ConsumeLinkToken гасит действующий токен и возвращает владельца; 0 - токен неизвестен, истёк или погашен
	ConsumeLinkToken(ctx context.Context, token uuid.UUID, at time.Time) (int64, error)
}

// Tx набор репозиториев, работающих в одной транзакции (или поверх пула)
type Tx interface {
	Branches() BranchStore
	Slots() SlotStore
	Bookings() BookingStore
	Assessments() AssessmentStore
	Events() EventStore
	Users() UserStore
}

// Store доступ к данным; InTx коммитит, если fn вернула nil, иначе откатывает всё
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type scope struct {
	branches    *BranchRepository
	slots       *SlotRepository
	bookings    *BookingRepository
	assessments *AssessmentRepository
	events      *EventRepository
	users       *UserRepository
}

func newScope(q base.Querier) *scope {
	return &scope{
		branches:    NewBranchRepository(q),
		slots:       NewSlotRepository(q),
		bookings:    NewBookingRepository(q),
		assessments: NewAssessmentRepository(q),
		events:      NewEventRepository(q),
		users:       NewUserRepository(q),
	}
}

func (s *scope) Branches() BranchStore        { return s.branches }
func (s *scope) Slots() SlotStore             { return s.slots }
func (s *scope) Bookings() BookingStore       { return s.bookings }
func (s *scope) Assessments() AssessmentStore { return s.assessments }
func (s *scope) Events() EventStore           { return s.events }
func (s *scope) Users() UserStore             { return s.users }

// PgStore Store поверх пула pgx
type PgStore struct {
	*scope
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{scope: newScope(pool), pool: pool}
}

// InTx выполняет fn в транзакции READ COMMITTED; блокировки строк берутся через *ForUpdate
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newScope(tx))
	})
	if err != nil {
		return fmt.Errorf("in tx: %w", err)
	}
	return nil
}
