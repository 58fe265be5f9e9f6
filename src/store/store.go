package store

import (
	"errors"
	"sync"
	"time"

	"papertrader/src/model"

	"github.com/shopspring/decimal"
)

var ErrEmptyUser = errors.New("user id is required")

// Store owns the authoritative in-memory portfolio of every user.
//
// Each user has two locks. state guards the Portfolio itself and is held only
// for the duration of a single engine operation. cycle serializes whole
// reconciliation runs (scheduler tick or manual refresh), which include
// external lookups, without blocking plain reads and writes.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	initial decimal.Decimal
	now     func() time.Time
}

type entry struct {
	state     sync.Mutex
	cycle     sync.Mutex
	portfolio *model.Portfolio
}

func New(initialBalance decimal.Decimal, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]*entry),
		initial: initialBalance,
		now:     now,
	}
}

func (s *Store) InitialBalance() decimal.Decimal {
	return s.initial
}

// entry returns the user's entry, creating the portfolio lazily.
func (s *Store) entry(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		e = &entry{portfolio: model.NewPortfolio(userID, s.initial, s.now())}
		s.entries[userID] = e
	}
	return e
}

// Update runs fn with exclusive access to the user's portfolio.
// fn must not block on external calls.
func (s *Store) Update(userID string, fn func(p *model.Portfolio) error) error {
	if userID == "" {
		return ErrEmptyUser
	}
	e := s.entry(userID)

	e.state.Lock()
	defer e.state.Unlock()

	return fn(e.portfolio)
}

// Snapshot returns a deep copy of the user's portfolio.
func (s *Store) Snapshot(userID string) (model.Portfolio, error) {
	var out model.Portfolio
	err := s.Update(userID, func(p *model.Portfolio) error {
		out = p.Clone()
		return nil
	})
	return out, err
}

// Exclusive runs fn while holding the user's cycle lock, so two
// reconciliation runs for the same user never overlap.
func (s *Store) Exclusive(userID string, fn func() error) error {
	if userID == "" {
		return ErrEmptyUser
	}
	e := s.entry(userID)

	e.cycle.Lock()
	defer e.cycle.Unlock()

	return fn()
}

// Users lists the users that have a portfolio.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}
