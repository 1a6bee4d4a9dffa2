package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-memory Store. It backs the test suite and
// local runs without a database; the Postgres implementation is the
// production path.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	byEmail      map[string]string
	chants       map[string][]Chant
	transactions map[string][]Transaction
	achievements map[string][]Achievement
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]Account),
		byEmail:      make(map[string]string),
		chants:       make(map[string][]Chant),
		transactions: make(map[string][]Transaction),
		achievements: make(map[string][]Achievement),
	}
}

func (m *Memory) Accounts() AccountStore         { return memAccounts{m} }
func (m *Memory) Chants() ChantStore             { return memChants{m} }
func (m *Memory) Transactions() TransactionStore { return memTransactions{m} }
func (m *Memory) Achievements() AchievementStore { return memAchievements{m} }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) RecordReward(_ context.Context, chant Chant, txn Transaction) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[chant.AccountID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	a.Coins += chant.CoinsEarned
	a.TotalChants++
	a.LastActive = chant.RecordedAt
	m.accounts[chant.AccountID] = a
	m.chants[chant.AccountID] = append(m.chants[chant.AccountID], chant)
	m.transactions[txn.AccountID] = append(m.transactions[txn.AccountID], txn)
	return a.Coins, a.TotalChants, nil
}

func (m *Memory) ApplyTransaction(_ context.Context, txn Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[txn.AccountID]
	if !ok {
		return 0, ErrNotFound
	}
	if a.Coins+txn.Amount < 0 {
		return a.Coins, ErrInsufficientBalance
	}
	a.Coins += txn.Amount
	a.LastActive = txn.CreatedAt
	m.accounts[txn.AccountID] = a
	m.transactions[txn.AccountID] = append(m.transactions[txn.AccountID], txn)
	return a.Coins, nil
}

// --- accounts ---

type memAccounts struct{ m *Memory }

func (s memAccounts) Create(_ context.Context, a Account) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, ok := s.m.byEmail[email]; ok {
		return ErrConflict
	}
	if _, ok := s.m.accounts[a.ID]; ok {
		return ErrConflict
	}
	s.m.accounts[a.ID] = a
	s.m.byEmail[email] = a.ID
	return nil
}

func (s memAccounts) GetByID(_ context.Context, id string) (Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	a, ok := s.m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s memAccounts) GetByEmail(_ context.Context, email string) (Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.m.accounts[id], nil
}

func (s memAccounts) UpdateProfile(_ context.Context, id, name, bio, avatar string) (Account, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if name != "" {
		a.Name = name
	}
	if bio != "" {
		a.Bio = bio
	}
	if avatar != "" {
		a.Avatar = avatar
	}
	s.m.accounts[id] = a
	return a, nil
}

func (s memAccounts) AddCoins(_ context.Context, id string, delta int64, now time.Time) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	a.Coins += delta
	a.LastActive = now
	s.m.accounts[id] = a
	return a.Coins, nil
}

func (s memAccounts) TouchLastActive(_ context.Context, id string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.LastActive = now
	s.m.accounts[id] = a
	return nil
}

func (s memAccounts) ListByActivity(_ context.Context, since time.Time, limit int) ([]Account, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]Account, 0, len(s.m.accounts))
	for _, a := range s.m.accounts {
		if !since.IsZero() && a.LastActive.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coins != out[j].Coins {
			return out[i].Coins > out[j].Coins
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memAccounts) CountWithGreaterBalance(_ context.Context, since time.Time, coins int64) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, a := range s.m.accounts {
		if !since.IsZero() && a.LastActive.Before(since) {
			continue
		}
		if a.Coins > coins {
			n++
		}
	}
	return n, nil
}

// --- chants ---

type memChants struct{ m *Memory }

func (s memChants) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]Chant, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	all := s.m.chants[accountID]
	out := make([]Chant, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s memChants) CountByAccount(_ context.Context, accountID string) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.chants[accountID])), nil
}

func (s memChants) CountSince(_ context.Context, accountID string, since time.Time) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, c := range s.m.chants[accountID] {
		if !c.RecordedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s memChants) DailyTotals(_ context.Context, accountID string, since time.Time) ([]DayTotal, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	buckets := make(map[string]*DayTotal)
	for _, c := range s.m.chants[accountID] {
		if c.RecordedAt.Before(since) {
			continue
		}
		day := c.RecordedAt.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &DayTotal{Day: day}
			buckets[day] = b
		}
		b.Chants++
		b.Coins += c.CoinsEarned
	}
	out := make([]DayTotal, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// --- transactions ---

type memTransactions struct{ m *Memory }

func (s memTransactions) Append(_ context.Context, t Transaction) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.accounts[t.AccountID]; !ok {
		return ErrNotFound
	}
	s.m.transactions[t.AccountID] = append(s.m.transactions[t.AccountID], t)
	return nil
}

func (s memTransactions) ListByAccount(_ context.Context, accountID, kind string, limit, offset int) ([]Transaction, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	all := s.m.transactions[accountID]
	out := make([]Transaction, 0, limit)
	skipped := 0
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && all[i].Kind != kind {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (s memTransactions) CountByAccount(_ context.Context, accountID, kind string) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, t := range s.m.transactions[accountID] {
		if kind == "" || t.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (s memTransactions) CountKindSince(_ context.Context, accountID, kind string, since time.Time) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, t := range s.m.transactions[accountID] {
		if t.Kind == kind && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- achievements ---

type memAchievements struct{ m *Memory }

func (s memAchievements) Titles(_ context.Context, accountID string) (map[string]struct{}, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make(map[string]struct{}, len(s.m.achievements[accountID]))
	for _, a := range s.m.achievements[accountID] {
		out[a.Title] = struct{}{}
	}
	return out, nil
}

func (s memAchievements) InsertMissing(_ context.Context, achievements []Achievement) ([]Achievement, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var inserted []Achievement
	for _, a := range achievements {
		held := false
		for _, existing := range s.m.achievements[a.AccountID] {
			if existing.Title == a.Title {
				held = true
				break
			}
		}
		if held {
			continue
		}
		s.m.achievements[a.AccountID] = append(s.m.achievements[a.AccountID], a)
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (s memAchievements) ListByAccount(_ context.Context, accountID string) ([]Achievement, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	all := s.m.achievements[accountID]
	out := make([]Achievement, len(all))
	copy(out, all)
	// Newest first, matching the Postgres ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.After(out[j].UnlockedAt) })
	return out, nil
}
