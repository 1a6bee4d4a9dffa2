package chant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"japa/internal/store"

	"github.com/google/uuid"
)

// Service is the event-recording and derived-state engine. Calls for
// different accounts proceed in parallel; calls for one account serialize on
// a per-account lock held across the counter update and the achievement
// dedup-and-insert.
type Service struct {
	store store.Store
	log   *slog.Logger
	pub   Publisher
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(st store.Store, logger *slog.Logger, pub Publisher) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store: st,
		log:   logger,
		pub:   pub,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

func (s *Service) publish(accountID, eventType string, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(accountID, eventType, payload)
}

// CreateAccount registers a new account with a zero balance. The password is
// already hashed by the auth collaborator; the service never sees plaintext.
func (s *Service) CreateAccount(ctx context.Context, name, email, passwordHash string) (store.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return store.Account{}, fmt.Errorf("name and email are required")
	}
	now := s.now().UTC()
	a := store.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Level:        1,
		JoinDate:     now,
		LastActive:   now,
	}
	if err := s.store.Accounts().Create(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.Account{}, ErrEmailTaken
		}
		return store.Account{}, err
	}
	return a, nil
}

func (s *Service) Account(ctx context.Context, accountID string) (store.Account, error) {
	a, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Account{}, ErrAccountNotFound
		}
		return store.Account{}, err
	}
	return a, nil
}

func (s *Service) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	a, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Account{}, ErrAccountNotFound
		}
		return store.Account{}, err
	}
	return a, nil
}

func (s *Service) TouchLastActive(ctx context.Context, accountID string) error {
	return s.store.Accounts().TouchLastActive(ctx, accountID, s.now().UTC())
}

// RecordChant runs the recording pipeline: validate, append the chant and
// reward transaction with the counter bump in one store write, evaluate
// achievements, then notify the account's sessions. Validation failures
// happen before any side effect.
func (s *Service) RecordChant(ctx context.Context, accountID string, confidence *float64) (RecordResult, error) {
	conf := DefaultConfidence
	if confidence != nil {
		if err := ValidateConfidence(*confidence); err != nil {
			return RecordResult{}, err
		}
		conf = *confidence
	}
	if _, err := s.Account(ctx, accountID); err != nil {
		return RecordResult{}, err
	}

	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()
	ch := store.Chant{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		CoinsEarned: ChantReward,
		Confidence:  conf,
		RecordedAt:  now,
	}
	txn := store.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        store.KindChantReward,
		Amount:      ChantReward,
		Description: "Chant reward",
		CreatedAt:   now,
	}
	coins, total, err := s.store.RecordReward(ctx, ch, txn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RecordResult{}, ErrAccountNotFound
		}
		return RecordResult{}, err
	}

	unlocked := s.unlockAchievements(ctx, accountID, total, coins, now)

	s.publish(accountID, EventChantRecorded, BalancePayload{Coins: coins, TotalChants: total, Timestamp: now})
	if len(unlocked) > 0 {
		s.publish(accountID, EventAchievementsUnlocked, AchievementsPayload{Achievements: unlocked})
	}

	return RecordResult{
		Coins:       coins,
		TotalChants: total,
		Rupees:      Rupees(coins),
		Unlocked:    unlocked,
		RecordedAt:  now,
	}, nil
}

// unlockAchievements evaluates the milestone predicates against the
// post-update state and persists whatever newly qualifies. Failures here
// never fail the pipeline: the insert gets one retry, and anything missed is
// re-evaluated on the next recorded chant (streak unlocks excepted, whose
// window may have moved on).
func (s *Service) unlockAchievements(ctx context.Context, accountID string, total, coins int64, now time.Time) []store.Achievement {
	held, err := s.store.Achievements().Titles(ctx, accountID)
	if err != nil {
		s.log.Error("achievement titles read failed", "account_id", accountID, "err", err)
		return nil
	}

	activeDays := 0
	windowStart := now.Add(-StreakWindowDays * 24 * time.Hour)
	buckets, err := s.store.Chants().DailyTotals(ctx, accountID, windowStart)
	if err != nil {
		s.log.Error("streak window read failed", "account_id", accountID, "err", err)
	} else {
		activeDays = len(buckets)
	}

	kinds := evaluateAchievements(total, coins, activeDays, held)
	if len(kinds) == 0 {
		return nil
	}

	batch := make([]store.Achievement, 0, len(kinds))
	for _, k := range kinds {
		batch = append(batch, store.Achievement{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Title:       k.Title(),
			Description: k.Description(),
			Icon:        k.Icon(),
			UnlockedAt:  now,
		})
	}

	inserted, err := s.store.Achievements().InsertMissing(ctx, batch)
	if err != nil {
		inserted, err = s.store.Achievements().InsertMissing(ctx, batch)
		if err != nil {
			s.log.Error("achievement insert failed after retry", "account_id", accountID, "err", err)
			return inserted
		}
	}
	return inserted
}

func (s *Service) Profile(ctx context.Context, accountID string) (ProfileView, error) {
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return ProfileView{}, err
	}
	count, err := s.store.Chants().CountByAccount(ctx, accountID)
	if err != nil {
		return ProfileView{}, err
	}
	recent, err := s.store.Chants().ListByAccount(ctx, accountID, 10, 0)
	if err != nil {
		return ProfileView{}, err
	}
	daysActive := int64(s.now().UTC().Sub(a.JoinDate).Hours() / 24)
	return ProfileView{
		Account: a,
		Stats: ProfileStats{
			ChantCount: count,
			Rupees:     Rupees(a.Coins),
			DaysActive: daysActive,
		},
		RecentChants: recent,
	}, nil
}

// UpdateProfile mutates only the profile-owned fields; the pipeline's
// counter fields are out of reach here so the two writers never race.
func (s *Service) UpdateProfile(ctx context.Context, accountID, name, bio, avatar string) (store.Account, error) {
	a, err := s.store.Accounts().UpdateProfile(ctx, accountID, strings.TrimSpace(name), bio, avatar)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Account{}, ErrAccountNotFound
		}
		return store.Account{}, err
	}
	return a, nil
}

func (s *Service) History(ctx context.Context, accountID string, page, limit int) (HistoryPage, error) {
	page, limit = normalizePage(page, limit)
	chants, err := s.store.Chants().ListByAccount(ctx, accountID, limit, (page-1)*limit)
	if err != nil {
		return HistoryPage{}, err
	}
	total, err := s.store.Chants().CountByAccount(ctx, accountID)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{
		Chants:      chants,
		Page:        page,
		TotalPages:  totalPages(total, limit),
		TotalChants: total,
	}, nil
}

func (s *Service) Stats(ctx context.Context, accountID string) (ChantStats, error) {
	now := s.now().UTC()
	today, err := s.store.Chants().CountSince(ctx, accountID, startOfDayUTC(now))
	if err != nil {
		return ChantStats{}, err
	}
	weekStart := now.Add(-7 * 24 * time.Hour)
	week, err := s.store.Chants().CountSince(ctx, accountID, weekStart)
	if err != nil {
		return ChantStats{}, err
	}
	month, err := s.store.Chants().CountSince(ctx, accountID, startOfMonthUTC(now))
	if err != nil {
		return ChantStats{}, err
	}
	daily, err := s.store.Chants().DailyTotals(ctx, accountID, weekStart)
	if err != nil {
		return ChantStats{}, err
	}
	return ChantStats{
		TodayChants: today,
		WeekChants:  week,
		MonthChants: month,
		Daily:       daily,
	}, nil
}

func (s *Service) Transactions(ctx context.Context, accountID, kind string, page, limit int) (TransactionsPage, error) {
	page, limit = normalizePage(page, limit)
	txns, err := s.store.Transactions().ListByAccount(ctx, accountID, kind, limit, (page-1)*limit)
	if err != nil {
		return TransactionsPage{}, err
	}
	total, err := s.store.Transactions().CountByAccount(ctx, accountID, kind)
	if err != nil {
		return TransactionsPage{}, err
	}
	return TransactionsPage{
		Transactions: txns,
		Page:         page,
		TotalPages:   totalPages(total, limit),
		Total:        total,
	}, nil
}

func (s *Service) Achievements(ctx context.Context, accountID string) ([]store.Achievement, error) {
	return s.store.Achievements().ListByAccount(ctx, accountID)
}

// Withdraw converts coins to rupees. The deduction and its transaction land
// in one store write under the account lock; the balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount int64) (WithdrawResult, error) {
	if amount <= 0 {
		return WithdrawResult{}, ErrInvalidAmount
	}
	a, err := s.Account(ctx, accountID)
	if err != nil {
		return WithdrawResult{}, err
	}

	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now().UTC()
	coins, err := s.store.ApplyTransaction(ctx, store.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        store.KindWithdrawal,
		Amount:      -amount,
		Description: fmt.Sprintf("Withdrawal of %s rupees", Rupees(amount)),
		CreatedAt:   now,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			return WithdrawResult{}, ErrInsufficientCoins
		case errors.Is(err, store.ErrNotFound):
			return WithdrawResult{}, ErrAccountNotFound
		}
		return WithdrawResult{}, err
	}

	s.publish(accountID, EventChantRecorded, BalancePayload{Coins: coins, TotalChants: a.TotalChants, Timestamp: now})
	return WithdrawResult{Coins: coins, Rupees: Rupees(coins), Amount: amount}, nil
}

// GrantDailyBonus credits the bonus to every account active in the last 24h
// that has not already received one this UTC day. Returns how many accounts
// were credited.
func (s *Service) GrantDailyBonus(ctx context.Context, amount int64) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	now := s.now().UTC()
	accounts, err := s.store.Accounts().ListByActivity(ctx, now.Add(-24*time.Hour), 0)
	if err != nil {
		return 0, err
	}

	granted := 0
	dayStart := startOfDayUTC(now)
	for _, a := range accounts {
		n, err := s.store.Transactions().CountKindSince(ctx, a.ID, store.KindDailyBonus, dayStart)
		if err != nil {
			s.log.Error("daily bonus check failed", "account_id", a.ID, "err", err)
			continue
		}
		if n > 0 {
			continue
		}

		lock := s.accountLock(a.ID)
		lock.Lock()
		coins, err := s.store.ApplyTransaction(ctx, store.Transaction{
			ID:          uuid.NewString(),
			AccountID:   a.ID,
			Kind:        store.KindDailyBonus,
			Amount:      amount,
			Description: "Daily chanting bonus",
			CreatedAt:   now,
		})
		lock.Unlock()
		if err != nil {
			s.log.Error("daily bonus grant failed", "account_id", a.ID, "err", err)
			continue
		}

		s.publish(a.ID, EventChantRecorded, BalancePayload{Coins: coins, TotalChants: a.TotalChants, Timestamp: now})
		granted++
	}
	return granted, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
