package chant

import (
	"time"

	"japa/internal/store"
)

// Publisher delivers real-time events to an account's live sessions. Nil
// publishers and delivery failures are both silent: notification is best
// effort and never fails the pipeline.
type Publisher interface {
	Publish(accountID, eventType string, payload any)
}

const (
	EventChantRecorded        = "chant_recorded"
	EventAchievementsUnlocked = "achievements_unlocked"
)

// BalancePayload is the chant_recorded event body.
type BalancePayload struct {
	Coins       int64     `json:"coins"`
	TotalChants int64     `json:"total_chants"`
	Timestamp   time.Time `json:"timestamp"`
}

// AchievementsPayload is the achievements_unlocked event body.
type AchievementsPayload struct {
	Achievements []store.Achievement `json:"achievements"`
}

type RecordResult struct {
	Coins       int64               `json:"coins"`
	TotalChants int64               `json:"total_chants"`
	Rupees      string              `json:"rupees"`
	Unlocked    []store.Achievement `json:"unlocked,omitempty"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

type ProfileStats struct {
	ChantCount int64  `json:"chant_count"`
	Rupees     string `json:"rupees"`
	DaysActive int64  `json:"days_active"`
}

type ProfileView struct {
	Account      store.Account `json:"account"`
	Stats        ProfileStats  `json:"stats"`
	RecentChants []store.Chant `json:"recent_chants"`
}

type ChantStats struct {
	TodayChants int64            `json:"today_chants"`
	WeekChants  int64            `json:"week_chants"`
	MonthChants int64            `json:"month_chants"`
	Daily       []store.DayTotal `json:"daily"`
}

type HistoryPage struct {
	Chants      []store.Chant `json:"chants"`
	Page        int           `json:"page"`
	TotalPages  int           `json:"total_pages"`
	TotalChants int64         `json:"total_chants"`
}

type TransactionsPage struct {
	Transactions []store.Transaction `json:"transactions"`
	Page         int                 `json:"page"`
	TotalPages   int                 `json:"total_pages"`
	Total        int64               `json:"total"`
}

// LeaderboardEntry is derived per query and never persisted.
type LeaderboardEntry struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Coins       int64  `json:"coins"`
	TotalChants int64  `json:"total_chants"`
	Avatar      string `json:"avatar,omitempty"`
}

type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"entries"`
	CallerRank int64              `json:"caller_rank"`
	Period     string             `json:"period"`
}

type WithdrawResult struct {
	Coins  int64  `json:"coins"`
	Rupees string `json:"rupees"`
	Amount int64  `json:"amount"`
}
