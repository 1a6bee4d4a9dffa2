package chant

// AchievementKind enumerates the milestone achievements. The kind is the
// internal identity; display strings live in the tables below and the title
// doubles as the per-account dedup key in the store.
type AchievementKind int

const (
	FirstChant AchievementKind = iota
	CenturyChants
	CoinMaster
	SevenDayStreak
)

var achievementTitles = map[AchievementKind]string{
	FirstChant:     "First Chant",
	CenturyChants:  "100 Chants",
	CoinMaster:     "Coin Master",
	SevenDayStreak: "7 Day Streak",
}

var achievementDescriptions = map[AchievementKind]string{
	FirstChant:     "Complete your first chant",
	CenturyChants:  "Reach 100 total chants",
	CoinMaster:     "Earn 1000 coins",
	SevenDayStreak: "Chant for 7 consecutive days",
}

var achievementIcons = map[AchievementKind]string{
	FirstChant:     "🌟",
	CenturyChants:  "🔥",
	CoinMaster:     "💎",
	SevenDayStreak: "🔥",
}

func (k AchievementKind) Title() string       { return achievementTitles[k] }
func (k AchievementKind) Description() string { return achievementDescriptions[k] }
func (k AchievementKind) Icon() string        { return achievementIcons[k] }

// evaluateAchievements decides which achievements newly qualify given the
// account state after the current chant's counters were applied. activeDays
// is the distinct-UTC-day count from the streak window. Kinds whose title is
// already held are suppressed, so a threshold fires at most once per
// account; the four predicates are independent and may all fire in one call.
func evaluateAchievements(totalChants, coins int64, activeDays int, held map[string]struct{}) []AchievementKind {
	var out []AchievementKind
	add := func(k AchievementKind, qualifies bool) {
		if !qualifies {
			return
		}
		if _, ok := held[k.Title()]; ok {
			return
		}
		out = append(out, k)
	}
	add(FirstChant, totalChants >= 1)
	add(CenturyChants, totalChants >= 100)
	add(CoinMaster, coins >= 1000)
	add(SevenDayStreak, activeDays >= StreakWindowDays)
	return out
}
