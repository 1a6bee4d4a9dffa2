package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record already exists")
	ErrUnavailable = errors.New("store unavailable")
)

// Transaction kinds. Every balance change is explained by exactly one kind.
const (
	KindChantReward = "chant_reward"
	KindAchievement = "achievement"
	KindDailyBonus  = "daily_bonus"
	KindWithdrawal  = "withdrawal"
)

type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Coins        int64     `json:"coins"`
	TotalChants  int64     `json:"total_chants"`
	Avatar       string    `json:"avatar,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Level        int32     `json:"level"`
	JoinDate     time.Time `json:"join_date"`
	LastActive   time.Time `json:"last_active"`
}

type Chant struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	CoinsEarned int64     `json:"coins_earned"`
	Confidence  float64   `json:"confidence"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Achievement struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// DayTotal is one calendar-day bucket (UTC) of chant activity.
type DayTotal struct {
	Day    string `json:"day"`
	Chants int64  `json:"chants"`
	Coins  int64  `json:"coins"`
}

type AccountStore interface {
	Create(ctx context.Context, a Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	// UpdateProfile sets the profile-owned fields only; empty strings keep
	// the current value. Counter fields are never touched here.
	UpdateProfile(ctx context.Context, id, name, bio, avatar string) (Account, error)
	// AddCoins atomically increments the balance and refreshes last_active.
	AddCoins(ctx context.Context, id string, delta int64, now time.Time) (int64, error)
	TouchLastActive(ctx context.Context, id string, now time.Time) error
	// ListByActivity returns accounts with last_active >= since (all
	// accounts when since is the zero time), ordered by coins descending
	// with account id as the stable tie-break.
	ListByActivity(ctx context.Context, since time.Time, limit int) ([]Account, error)
	CountWithGreaterBalance(ctx context.Context, since time.Time, coins int64) (int64, error)
}

type ChantStore interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Chant, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
	CountSince(ctx context.Context, accountID string, since time.Time) (int64, error)
	// DailyTotals groups chants since the given time into UTC calendar-day
	// buckets, ordered by day ascending.
	DailyTotals(ctx context.Context, accountID string, since time.Time) ([]DayTotal, error)
}

type TransactionStore interface {
	Append(ctx context.Context, t Transaction) error
	// ListByAccount pages newest-first; kind filters when non-empty.
	ListByAccount(ctx context.Context, accountID, kind string, limit, offset int) ([]Transaction, error)
	CountByAccount(ctx context.Context, accountID, kind string) (int64, error)
	CountKindSince(ctx context.Context, accountID, kind string, since time.Time) (int64, error)
}

type AchievementStore interface {
	Titles(ctx context.Context, accountID string) (map[string]struct{}, error)
	// InsertMissing inserts each achievement whose (account, title) pair is
	// not yet held and returns the ones actually inserted. Duplicates are
	// skipped, never errors.
	InsertMissing(ctx context.Context, achievements []Achievement) ([]Achievement, error)
	ListByAccount(ctx context.Context, accountID string) ([]Achievement, error)
}

// Store bundles the four collections plus the two multi-row writes that must
// be atomic: the reward application (chant row + counter bump + transaction
// row) and the withdrawal (balance check + deduct + transaction row).
type Store interface {
	Accounts() AccountStore
	Chants() ChantStore
	Transactions() TransactionStore
	Achievements() AchievementStore

	// RecordReward appends the chant, increments coins by the chant's
	// reward and total_chants by one, refreshes last_active, and appends
	// the reward transaction, all in one transactional write. Returns the
	// post-update coins and total_chants.
	RecordReward(ctx context.Context, chant Chant, txn Transaction) (int64, int64, error)

	// ApplyTransaction adjusts the balance by txn.Amount (negative for
	// withdrawals, positive for bonuses) and appends the transaction in the
	// same write. Fails without effect when the balance would go negative.
	ApplyTransaction(ctx context.Context, txn Transaction) (int64, error)

	Ping(ctx context.Context) error
}

var ErrInsufficientBalance = errors.New("insufficient balance")
