// Package memory реализует repository.Store в памяти с теми же гарантиями,
// что и Postgres: условные инкременты, уникальность активного бронирования,
// откат всей транзакции при ошибке. Транзакции сериализуются одним мьютексом.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	branches    map[int64]model.Branch
	slots       map[int64]model.Slot
	bookings    map[int64]model.Booking
	assessments map[int64]model.Assessment
	users       map[int64]model.User
	linkTokens  map[uuid.UUID]model.LinkToken
	events      []model.Event

	nextBranchID     int64
	nextSlotID       int64
	nextBookingID    int64
	nextAssessmentID int64
	nextEventSeq     int64
}

func newState() *state {
	return &state{
		branches:    make(map[int64]model.Branch),
		slots:       make(map[int64]model.Slot),
		bookings:    make(map[int64]model.Booking),
		assessments: make(map[int64]model.Assessment),
		users:       make(map[int64]model.User),
		linkTokens:  make(map[uuid.UUID]model.LinkToken),
	}
}

// clone снимок для отката; структуры копируются по значению
func (s *state) clone() *state {
	c := *s
	c.branches = maps.Clone(s.branches)
	c.slots = maps.Clone(s.slots)
	c.bookings = maps.Clone(s.bookings)
	c.assessments = maps.Clone(s.assessments)
	c.users = maps.Clone(s.users)
	c.linkTokens = maps.Clone(s.linkTokens)
	c.events = append([]model.Event(nil), s.events...)
	return &c
}

type Store struct {
	mu sync.Mutex
	st *state
	*scope
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	s := &Store{st: newState()}
	s.scope = &scope{store: s, inTx: false}
	return s
}

// InTx выполняет fn под общим мьютексом; при ошибке состояние возвращается к снимку
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(&scope{store: s, inTx: true})
}

// scope вне транзакции каждый вызов берёт мьютекс сам, внутри - он уже взят InTx
type scope struct {
	store *Store
	inTx  bool
}

func (sc *scope) lock() func() {
	if sc.inTx {
		return func() {}
	}
	sc.store.mu.Lock()
	return sc.store.mu.Unlock
}

func (sc *scope) data() *state { return sc.store.st }

func (sc *scope) Branches() repository.BranchStore        { return branchRepo{sc} }
func (sc *scope) Slots() repository.SlotStore             { return slotRepo{sc} }
func (sc *scope) Bookings() repository.BookingStore       { return bookingRepo{sc} }
func (sc *scope) Assessments() repository.AssessmentStore { return assessmentRepo{sc} }
func (sc *scope) Events() repository.EventStore           { return eventRepo{sc} }
func (sc *scope) Users() repository.UserStore             { return userRepo{sc} }
