package chant

import (
	"context"
	"time"
)

const (
	PeriodAll   = "all"
	PeriodToday = "today"
	PeriodWeek  = "week"
)

// Leaderboard returns the top accounts by coin balance for the period plus
// the caller's rank among all accounts in scope. Ordering is balance
// descending with account id as the tie break, so repeated reads over
// unchanged state return identical pages. Rank is one plus the number of
// accounts holding a strictly greater balance; equal balances share a rank.
func (s *Service) Leaderboard(ctx context.Context, callerID, period string, limit int) (Leaderboard, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}

	now := s.now().UTC()
	var since time.Time
	switch period {
	case "", PeriodAll:
		period = PeriodAll
	case PeriodToday:
		since = startOfDayUTC(now)
	case PeriodWeek:
		since = now.Add(-7 * 24 * time.Hour)
	default:
		return Leaderboard{}, ErrInvalidPeriod
	}

	caller, err := s.Account(ctx, callerID)
	if err != nil {
		return Leaderboard{}, err
	}

	accounts, err := s.store.Accounts().ListByActivity(ctx, since, limit)
	if err != nil {
		return Leaderboard{}, err
	}
	entries := make([]LeaderboardEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, LeaderboardEntry{
			AccountID:   a.ID,
			Name:        a.Name,
			Coins:       a.Coins,
			TotalChants: a.TotalChants,
			Avatar:      a.Avatar,
		})
	}

	greater, err := s.store.Accounts().CountWithGreaterBalance(ctx, since, caller.Coins)
	if err != nil {
		return Leaderboard{}, err
	}

	return Leaderboard{
		Entries:    entries,
		CallerRank: greater + 1,
		Period:     period,
	}, nil
}
