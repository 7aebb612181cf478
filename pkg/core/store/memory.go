package store

import (
	"context"
	"sync"

	"finpulse/pkg/models"
)

// MemoryStore keeps history in process memory, one lockable bucket per user.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*bucket
	limits Limits
}

type bucket struct {
	mu      sync.Mutex
	removed bool
	reports []models.SavedReport
	logins  []models.LoginSession
	sales   []models.DailySalesEntry
}

var _ HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore(limits Limits) *MemoryStore {
	return &MemoryStore{users: make(map[string]*bucket), limits: limits.normalized()}
}

// mutate runs fn with the user's bucket locked. A bucket removed while we
// waited for its lock is abandoned in favour of a fresh one.
func (s *MemoryStore) mutate(userID string, fn func(b *bucket)) {
	for {
		s.mu.Lock()
		b, ok := s.users[userID]
		if !ok {
			b = &bucket{}
			s.users[userID] = b
		}
		s.mu.Unlock()

		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			continue
		}
		fn(b)
		b.mu.Unlock()
		return
	}
}

func (s *MemoryStore) read(userID string, fn func(b *bucket)) {
	s.mu.Lock()
	b, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.removed {
		fn(b)
	}
}

func (s *MemoryStore) CommitReport(ctx context.Context, userID string, report models.SavedReport) ([]models.SavedReport, error) {
	if err := checkReport(userID, report); err != nil {
		return nil, err
	}
	var out []models.SavedReport
	s.mutate(userID, func(b *bucket) {
		b.reports = prepend(b.reports, report.Clone(), s.limits.Reports)
		out = cloneReports(b.reports)
	})
	return out, nil
}

func (s *MemoryStore) Reports(ctx context.Context, userID string) ([]models.SavedReport, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	out := []models.SavedReport{}
	s.read(userID, func(b *bucket) { out = cloneReports(b.reports) })
	return out, nil
}

func (s *MemoryStore) RecordLogin(ctx context.Context, userID string, session models.LoginSession) ([]models.LoginSession, error) {
	if err := checkLogin(userID, session); err != nil {
		return nil, err
	}
	var out []models.LoginSession
	s.mutate(userID, func(b *bucket) {
		b.logins = prepend(b.logins, session, s.limits.Logins)
		out = append([]models.LoginSession(nil), b.logins...)
	})
	return out, nil
}

func (s *MemoryStore) Logins(ctx context.Context, userID string) ([]models.LoginSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	out := []models.LoginSession{}
	s.read(userID, func(b *bucket) { out = append(out, b.logins...) })
	return out, nil
}

func (s *MemoryStore) UpsertSalesEntry(ctx context.Context, userID string, entry models.DailySalesEntry) ([]models.DailySalesEntry, error) {
	if err := checkEntry(userID, entry); err != nil {
		return nil, err
	}
	entry.Amount = roundPaise(entry.Amount)
	var out []models.DailySalesEntry
	s.mutate(userID, func(b *bucket) {
		replaced := false
		for i := range b.sales {
			if b.sales[i].Date == entry.Date {
				b.sales[i].Amount = entry.Amount
				replaced = true
				break
			}
		}
		if !replaced {
			b.sales = append(b.sales, entry)
		}
		out = append([]models.DailySalesEntry(nil), b.sales...)
	})
	sortByDate(out)
	return out, nil
}

func (s *MemoryStore) SalesEntries(ctx context.Context, userID string) ([]models.DailySalesEntry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	out := []models.DailySalesEntry{}
	s.read(userID, func(b *bucket) { out = append(out, b.sales...) })
	sortByDate(out)
	return out, nil
}

func (s *MemoryStore) RemoveUser(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	s.mu.Lock()
	b, ok := s.users[userID]
	delete(s.users, userID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	b.mu.Lock()
	b.removed = true
	b.reports, b.logins, b.sales = nil, nil, nil
	b.mu.Unlock()
	return nil
}
