package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedAccount(t *testing.T, m *Memory, id string, coins int64) {
	t.Helper()
	err := m.Accounts().Create(context.Background(), Account{
		ID:         id,
		Name:       id,
		Email:      id + "@example.com",
		Coins:      coins,
		Level:      1,
		JoinDate:   time.Now().UTC(),
		LastActive: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
}

func TestRecordRewardUpdatesEverything(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "a1", 0)

	now := time.Now().UTC()
	coins, total, err := m.RecordReward(ctx,
		Chant{ID: "c1", AccountID: "a1", CoinsEarned: 1, Confidence: 0.9, RecordedAt: now},
		Transaction{ID: "t1", AccountID: "a1", Kind: KindChantReward, Amount: 1, CreatedAt: now},
	)
	if err != nil {
		t.Fatalf("record reward: %v", err)
	}
	if coins != 1 || total != 1 {
		t.Fatalf("got coins=%d total=%d, want 1 each", coins, total)
	}

	n, err := m.Chants().CountByAccount(ctx, "a1")
	if err != nil || n != 1 {
		t.Fatalf("chant count=%d err=%v, want 1", n, err)
	}
	n, err = m.Transactions().CountByAccount(ctx, "a1", KindChantReward)
	if err != nil || n != 1 {
		t.Fatalf("txn count=%d err=%v, want 1", n, err)
	}

	if _, _, err := m.RecordReward(ctx, Chant{ID: "c2", AccountID: "nope"}, Transaction{ID: "t2", AccountID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestApplyTransactionRejectsOverdraw(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "a1", 50)

	now := time.Now().UTC()
	if _, err := m.ApplyTransaction(ctx, Transaction{ID: "t1", AccountID: "a1", Kind: KindWithdrawal, Amount: -100, CreatedAt: now}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	n, err := m.Transactions().CountByAccount(ctx, "a1", "")
	if err != nil || n != 0 {
		t.Fatalf("rejected apply left %d transactions err=%v", n, err)
	}

	coins, err := m.ApplyTransaction(ctx, Transaction{ID: "t2", AccountID: "a1", Kind: KindWithdrawal, Amount: -50, CreatedAt: now})
	if err != nil {
		t.Fatalf("apply to zero: %v", err)
	}
	if coins != 0 {
		t.Fatalf("got coins=%d, want 0", coins)
	}
}

func TestInsertMissingDeduplicates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "a1", 0)

	now := time.Now().UTC()
	batch := []Achievement{
		{ID: "x1", AccountID: "a1", Title: "First Chant", UnlockedAt: now},
		{ID: "x2", AccountID: "a1", Title: "100 Chants", UnlockedAt: now},
	}
	inserted, err := m.Achievements().InsertMissing(ctx, batch)
	if err != nil || len(inserted) != 2 {
		t.Fatalf("first insert got %d err=%v, want 2", len(inserted), err)
	}

	again := []Achievement{
		{ID: "x3", AccountID: "a1", Title: "First Chant", UnlockedAt: now},
		{ID: "x4", AccountID: "a1", Title: "Coin Master", UnlockedAt: now},
	}
	inserted, err = m.Achievements().InsertMissing(ctx, again)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if len(inserted) != 1 || inserted[0].Title != "Coin Master" {
		t.Fatalf("got %+v, want only Coin Master", inserted)
	}

	titles, err := m.Achievements().Titles(ctx, "a1")
	if err != nil || len(titles) != 3 {
		t.Fatalf("got %d titles err=%v, want 3", len(titles), err)
	}
}

func TestDailyTotalsBucketsUTC(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "a1", 0)

	// 23:30 and 00:30 UTC straddle a day boundary.
	late := time.Date(2026, time.July, 1, 23, 30, 0, 0, time.UTC)
	early := late.Add(time.Hour)
	for i, at := range []time.Time{late, early, early.Add(time.Minute)} {
		_, _, err := m.RecordReward(ctx,
			Chant{ID: chantID(i), AccountID: "a1", CoinsEarned: 1, RecordedAt: at},
			Transaction{ID: txnID(i), AccountID: "a1", Kind: KindChantReward, Amount: 1, CreatedAt: at},
		)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	totals, err := m.Chants().DailyTotals(ctx, "a1", time.Time{})
	if err != nil {
		t.Fatalf("daily totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d buckets, want 2: %+v", len(totals), totals)
	}
	if totals[0].Day != "2026-07-01" || totals[0].Chants != 1 {
		t.Fatalf("first bucket %+v", totals[0])
	}
	if totals[1].Day != "2026-07-02" || totals[1].Chants != 2 {
		t.Fatalf("second bucket %+v", totals[1])
	}
}

func TestListByActivityOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "b", 100)
	seedAccount(t, m, "a", 100)
	seedAccount(t, m, "c", 200)

	out, err := m.Accounts().ListByActivity(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := []string{out[0].ID, out[1].ID, out[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got order %v, want %v", ids, want)
		}
	}

	out, err = m.Accounts().ListByActivity(ctx, time.Time{}, 2)
	if err != nil || len(out) != 2 {
		t.Fatalf("limit: got %d err=%v, want 2", len(out), err)
	}
}

func TestGetByEmailCaseInsensitive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "a1", 0)

	if _, err := m.Accounts().GetByEmail(ctx, "A1@Example.COM"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	err := m.Accounts().Create(ctx, Account{ID: "a2", Email: "A1@example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func chantID(i int) string { return "c" + string(rune('0'+i)) }
func txnID(i int) string   { return "t" + string(rune('0'+i)) }
