package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"japa/internal/chant"
	"japa/internal/store"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type achievementsPayload struct {
	Achievements []store.Achievement `json:"achievements"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderRecordResult(raw map[string]any) error {
	out, err := decodeInto[chant.RecordResult](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Chant recorded. Total: %s chants, %s coins (%s rupees)",
		comma(out.TotalChants), comma(out.Coins), out.Rupees))
	for _, a := range out.Unlocked {
		accent.Printf("%s  Achievement unlocked: %s\n", a.Icon, a.Title)
		fmt.Printf("    %s\n", a.Description)
	}
	return nil
}

func renderProfile(raw map[string]any) error {
	out, err := decodeInto[chant.ProfileView](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", out.Account.Name)
	fmt.Printf("Email:        %s\n", out.Account.Email)
	fmt.Printf("Level:        %d\n", out.Account.Level)
	fmt.Printf("Coins:        %s (%s rupees)\n", comma(out.Account.Coins), out.Stats.Rupees)
	fmt.Printf("Total chants: %s\n", comma(out.Account.TotalChants))
	fmt.Printf("Days active:  %d\n", out.Stats.DaysActive)
	fmt.Printf("Joined:       %s\n", out.Account.JoinDate.Local().Format("2006-01-02"))
	if strings.TrimSpace(out.Account.Bio) != "" {
		fmt.Printf("Bio:          %s\n", out.Account.Bio)
	}

	if len(out.RecentChants) > 0 {
		fmt.Println()
		accent.Println("Recent Chants")
		fmt.Printf("%-20s %8s %12s\n", "TIME", "COINS", "CONFIDENCE")
		for _, c := range out.RecentChants {
			fmt.Printf("%-20s %8d %11.0f%%\n",
				c.RecordedAt.Local().Format("2006-01-02 15:04"),
				c.CoinsEarned,
				c.Confidence*100,
			)
		}
	}
	fmt.Println()
	return nil
}

func renderStats(raw map[string]any) error {
	out, err := decodeInto[chant.ChantStats](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== CHANT STATS ==")
	fmt.Printf("Today:      %s\n", comma(out.TodayChants))
	fmt.Printf("This week:  %s\n", comma(out.WeekChants))
	fmt.Printf("This month: %s\n", comma(out.MonthChants))

	if len(out.Daily) > 0 {
		fmt.Println()
		accent.Println("Last 7 Days")
		fmt.Printf("%-12s %8s %8s\n", "DAY", "CHANTS", "COINS")
		for _, d := range out.Daily {
			fmt.Printf("%-12s %8d %8d\n", d.Day, d.Chants, d.Coins)
		}
	}
	fmt.Println()
	return nil
}

func renderHistory(raw map[string]any) error {
	out, err := decodeInto[chant.HistoryPage](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== CHANT HISTORY (page %d/%d, %s total) ==\n", out.Page, out.TotalPages, comma(out.TotalChants))
	if len(out.Chants) == 0 {
		printInfo("No chants recorded yet.")
		return nil
	}
	fmt.Printf("%-20s %8s %12s\n", "TIME", "COINS", "CONFIDENCE")
	for _, c := range out.Chants {
		fmt.Printf("%-20s %8d %11.0f%%\n",
			c.RecordedAt.Local().Format("2006-01-02 15:04"),
			c.CoinsEarned,
			c.Confidence*100,
		)
	}
	fmt.Println()
	return nil
}

func renderTransactions(raw map[string]any) error {
	out, err := decodeInto[chant.TransactionsPage](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== TRANSACTIONS (page %d/%d, %s total) ==\n", out.Page, out.TotalPages, comma(out.Total))
	if len(out.Transactions) == 0 {
		printInfo("No transactions yet.")
		return nil
	}
	fmt.Printf("%-20s %-14s %10s %-40s\n", "TIME", "KIND", "AMOUNT", "DESCRIPTION")
	for _, t := range out.Transactions {
		fmt.Printf("%-20s %-14s %10s %-40s\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			t.Kind,
			colorizeAmount(t.Amount),
			truncate(t.Description, 40),
		)
	}
	fmt.Println()
	return nil
}

func renderAchievements(raw map[string]any) error {
	out, err := decodeInto[achievementsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== ACHIEVEMENTS ==")
	if len(out.Achievements) == 0 {
		printInfo("No achievements unlocked yet. Keep chanting!")
		return nil
	}
	for _, a := range out.Achievements {
		fmt.Printf("%s  %-16s %s  (%s)\n",
			a.Icon,
			a.Title,
			a.Description,
			a.UnlockedAt.Local().Format("2006-01-02"),
		)
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[chant.Leaderboard](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== LEADERBOARD (%s) ==\n", out.Period)
	if len(out.Entries) == 0 {
		printInfo("No entries yet.")
		return nil
	}
	fmt.Printf("%-6s %-20s %10s %10s\n", "RANK", "NAME", "COINS", "CHANTS")
	for i, e := range out.Entries {
		fmt.Printf("%-6d %-20s %10s %10s\n",
			i+1,
			truncate(e.Name, 20),
			comma(e.Coins),
			comma(e.TotalChants),
		)
	}
	fmt.Printf("\nYour rank: #%d\n\n", out.CallerRank)
	return nil
}

func renderWithdrawResult(raw map[string]any, amount int64) error {
	out, err := decodeInto[chant.WithdrawResult](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Withdrew %s coins. Remaining: %s coins (%s rupees)",
		comma(amount), comma(out.Coins), out.Rupees))
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeAmount(v int64) string {
	text := comma(v)
	if v > 0 {
		text = "+" + text
	}
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
