package chant

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLeaderboardOrderingAndRank(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := mustCreateAccount(t, svc, "Alice", "alice@example.com")
	bob := mustCreateAccount(t, svc, "Bob", "bob@example.com")
	cara := mustCreateAccount(t, svc, "Cara", "cara@example.com")

	if _, err := mem.Accounts().AddCoins(ctx, alice.ID, 300, now); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if _, err := mem.Accounts().AddCoins(ctx, bob.ID, 100, now); err != nil {
		t.Fatalf("seed bob: %v", err)
	}
	if _, err := mem.Accounts().AddCoins(ctx, cara.ID, 300, now); err != nil {
		t.Fatalf("seed cara: %v", err)
	}

	out, err := svc.Leaderboard(ctx, bob.ID, PeriodAll, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(out.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(out.Entries))
	}
	if out.Entries[0].Coins != 300 || out.Entries[1].Coins != 300 || out.Entries[2].Coins != 100 {
		t.Fatalf("wrong balance ordering: %+v", out.Entries)
	}
	// Equal balances break ties on account id, so repeated reads agree.
	if out.Entries[0].AccountID > out.Entries[1].AccountID {
		t.Fatalf("tie break not deterministic: %+v", out.Entries[:2])
	}

	// Two accounts strictly above Bob.
	if out.CallerRank != 3 {
		t.Fatalf("bob rank=%d, want 3", out.CallerRank)
	}

	// Tied accounts share a rank.
	out, err = svc.Leaderboard(ctx, alice.ID, PeriodAll, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if out.CallerRank != 1 {
		t.Fatalf("alice rank=%d, want 1", out.CallerRank)
	}
	out, err = svc.Leaderboard(ctx, cara.ID, PeriodAll, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if out.CallerRank != 1 {
		t.Fatalf("cara rank=%d, want 1", out.CallerRank)
	}
}

func TestLeaderboardPeriodScoping(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, time.June, 20, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	active := mustCreateAccount(t, svc, "Active", "active@example.com")
	stale := mustCreateAccount(t, svc, "Stale", "stale@example.com")

	if _, err := mem.Accounts().AddCoins(ctx, active.ID, 50, now.Add(-time.Hour)); err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if _, err := mem.Accounts().AddCoins(ctx, stale.ID, 500, now.AddDate(0, 0, -10)); err != nil {
		t.Fatalf("seed stale: %v", err)
	}

	out, err := svc.Leaderboard(ctx, active.ID, PeriodToday, 10)
	if err != nil {
		t.Fatalf("leaderboard today: %v", err)
	}
	if len(out.Entries) != 1 || out.Entries[0].AccountID != active.ID {
		t.Fatalf("today scope: %+v", out.Entries)
	}
	// The richer but inactive account is out of scope, so rank is 1.
	if out.CallerRank != 1 {
		t.Fatalf("rank=%d, want 1", out.CallerRank)
	}

	out, err = svc.Leaderboard(ctx, active.ID, PeriodAll, 10)
	if err != nil {
		t.Fatalf("leaderboard all: %v", err)
	}
	if len(out.Entries) != 2 {
		t.Fatalf("all scope: %+v", out.Entries)
	}
	if out.CallerRank != 2 {
		t.Fatalf("rank=%d, want 2", out.CallerRank)
	}
}

func TestLeaderboardInvalidPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	a := mustCreateAccount(t, svc, "Ram", "ram@example.com")
	if _, err := svc.Leaderboard(context.Background(), a.ID, "fortnight", 10); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("got %v, want ErrInvalidPeriod", err)
	}
}
