package chant

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ChantReward is the coins granted per recorded chant under the
	// current policy. The reward travels on every Chant and Transaction
	// row so the policy can change without a schema change.
	ChantReward = int64(1)

	DefaultConfidence = 0.9

	// CoinsPerRupee converts coins to the display currency.
	CoinsPerRupee = int64(100)

	// StreakWindowDays is the trailing window for the streak achievement.
	StreakWindowDays = 7
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidConfidence  = errors.New("confidence must be between 0 and 1")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientCoins  = errors.New("insufficient coins")
	ErrInvalidPeriod      = errors.New("period must be all, today or week")
)

// ValidateConfidence rejects out-of-range values instead of clamping them so
// downstream consumers always see well-formed inputs. 0 and 1 are both valid.
func ValidateConfidence(v float64) error {
	if v < 0 || v > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

func Rupees(coins int64) string {
	return fmt.Sprintf("%.2f", float64(coins)/float64(CoinsPerRupee))
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonthUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
