package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"japa/internal/chant"
	cl "japa/internal/cli"
	"japa/internal/config"
	"japa/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "japa",
		Short:        "Chant tracker client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newChantCmd(&apiBase),
		newSyncCmd(&apiBase),
		newProfileCmd(&apiBase),
		newStatsCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newTxnsCmd(&apiBase),
		newAchievementsCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newWithdrawCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			resp, err := client.Signup(ctx, name, email, password)
			if err != nil {
				return err
			}
			if err := saveAuth(resp); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptRequired("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			resp, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveAuth(resp); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func saveAuth(resp cl.AuthResponse) error {
	if strings.TrimSpace(resp.Token) == "" {
		return fmt.Errorf("server returned no token")
	}
	sess := cl.Session{Token: resp.Token}
	if v, ok := resp.Account["email"].(string); ok {
		sess.Email = v
	}
	if v, ok := resp.Account["id"].(string); ok {
		sess.AccountID = v
	}
	return cl.SaveSession(sess)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newChantCmd(apiBase *string) *cobra.Command {
	var confidence float64
	cmd := &cobra.Command{
		Use:   "chant",
		Short: "Record a chant",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			var conf *float64
			if cmd.Flags().Changed("confidence") {
				conf = &confidence
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.RecordChant(ctx, sess.Token, conf)
			if err != nil {
				if isNetworkError(err) {
					if qerr := syncq.Push(syncq.PendingChant{Confidence: conf, QueuedAt: time.Now().UTC()}); qerr != nil {
						return qerr
					}
					printWarn("Server unreachable. Chant queued locally; run `japa sync` when back online.")
					return nil
				}
				return err
			}
			return renderRecordResult(out)
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "recognition confidence in [0,1]")
	return cmd
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued chants",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.PendingChant, 0, len(queue))
			success := 0
			for _, q := range queue {
				if _, err := client.RecordChant(ctx, sess.Token, q.Confidence); err != nil {
					remaining = append(remaining, q)
					printError(fmt.Sprintf("Sync failed for chant queued at %s: %v", q.QueuedAt.Local().Format("2006-01-02 15:04"), err))
					continue
				}
				success++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", success, len(remaining)))
			return nil
		},
	}
}

func newProfileCmd(apiBase *string) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Profile(ctx, sess.Token)
			if err != nil {
				return err
			}
			return renderProfile(out)
		},
	}

	profile.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Update name, bio, or avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			name, err := promptOptional("Name (blank keeps current)")
			if err != nil {
				return err
			}
			bio, err := promptOptional("Bio (blank keeps current)")
			if err != nil {
				return err
			}
			avatar, err := promptOptional("Avatar URL (blank keeps current)")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).UpdateProfile(ctx, sess.Token, name, bio, avatar); err != nil {
				return err
			}
			printSuccess("Profile updated.")
			return nil
		},
	})

	return profile
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show chanting statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Stats(ctx, sess.Token)
			if err != nil {
				return err
			}
			return renderStats(out)
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded chants",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).History(ctx, sess.Token, page, limit)
			if err != nil {
				return err
			}
			return renderHistory(out)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "chants per page")
	return cmd
}

func newTxnsCmd(apiBase *string) *cobra.Command {
	var kind string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "txns",
		Short: "List coin transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Transactions(ctx, sess.Token, kind, page, limit)
			if err != nil {
				return err
			}
			return renderTransactions(out)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (chant_reward, achievement, daily_bonus, withdrawal)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "transactions per page")
	return cmd
}

func newAchievementsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List unlocked achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Achievements(ctx, sess.Token)
			if err != nil {
				return err
			}
			return renderAchievements(out)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard [all|today|week]",
		Short: "Show the coin leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			period := chant.PeriodAll
			if len(args) == 1 {
				period = strings.ToLower(strings.TrimSpace(args[0]))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, sess.Token, period, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "entries to show")
	return cmd
}

func newWithdrawCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw",
		Short: "Convert coins to rupees",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			amount, err := promptInt64("Coins to withdraw", 1)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Withdraw(ctx, sess.Token, amount)
			if err != nil {
				return err
			}
			return renderWithdrawResult(out, amount)
		},
	}
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection reset")
}
