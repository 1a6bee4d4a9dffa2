package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store backed by a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Accounts() AccountStore         { return pgAccounts{p.db} }
func (p *Postgres) Chants() ChantStore             { return pgChants{p.db} }
func (p *Postgres) Transactions() TransactionStore { return pgTransactions{p.db} }
func (p *Postgres) Achievements() AchievementStore { return pgAchievements{p.db} }

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) RecordReward(ctx context.Context, chant Chant, txn Transaction) (int64, int64, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, 0, translateErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO chants (id, account_id, coins_earned, confidence, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, chant.ID, chant.AccountID, chant.CoinsEarned, chant.Confidence, chant.RecordedAt); err != nil {
		return 0, 0, translateErr(err)
	}

	var coins, total int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts
		SET coins = coins + $1, total_chants = total_chants + 1, last_active = $2
		WHERE id = $3
		RETURNING coins, total_chants
	`, chant.CoinsEarned, chant.RecordedAt, chant.AccountID).Scan(&coins, &total)
	if err != nil {
		return 0, 0, translateErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txn.ID, txn.AccountID, txn.Kind, txn.Amount, txn.Description, txn.CreatedAt); err != nil {
		return 0, 0, translateErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, translateErr(err)
	}
	return coins, total, nil
}

func (p *Postgres) ApplyTransaction(ctx context.Context, txn Transaction) (int64, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, translateErr(err)
	}
	defer tx.Rollback(ctx)

	var coins int64
	err = tx.QueryRow(ctx, `
		SELECT coins FROM accounts WHERE id = $1 FOR UPDATE
	`, txn.AccountID).Scan(&coins)
	if err != nil {
		return 0, translateErr(err)
	}
	if coins+txn.Amount < 0 {
		return coins, ErrInsufficientBalance
	}

	err = tx.QueryRow(ctx, `
		UPDATE accounts
		SET coins = coins + $1, last_active = $2
		WHERE id = $3
		RETURNING coins
	`, txn.Amount, txn.CreatedAt, txn.AccountID).Scan(&coins)
	if err != nil {
		return 0, translateErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txn.ID, txn.AccountID, txn.Kind, txn.Amount, txn.Description, txn.CreatedAt); err != nil {
		return 0, translateErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, translateErr(err)
	}
	return coins, nil
}

// --- accounts ---

type pgAccounts struct{ db *pgxpool.Pool }

const accountColumns = `id, name, email, password_hash, coins, total_chants, avatar, bio, level, join_date, last_active`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Coins, &a.TotalChants,
		&a.Avatar, &a.Bio, &a.Level, &a.JoinDate, &a.LastActive)
	if err != nil {
		return Account{}, translateErr(err)
	}
	return a, nil
}

func (s pgAccounts) Create(ctx context.Context, a Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, coins, total_chants, avatar, bio, level, join_date, last_active)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Name, a.Email, a.PasswordHash, a.Coins, a.TotalChants, a.Avatar, a.Bio, a.Level, a.JoinDate, a.LastActive)
	return translateErr(err)
}

func (s pgAccounts) GetByID(ctx context.Context, id string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s pgAccounts) GetByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = lower($1)`, email))
}

func (s pgAccounts) UpdateProfile(ctx context.Context, id, name, bio, avatar string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `
		UPDATE accounts
		SET name   = CASE WHEN $1 <> '' THEN $1 ELSE name END,
		    bio    = CASE WHEN $2 <> '' THEN $2 ELSE bio END,
		    avatar = CASE WHEN $3 <> '' THEN $3 ELSE avatar END
		WHERE id = $4
		RETURNING `+accountColumns+`
	`, name, bio, avatar, id))
}

func (s pgAccounts) AddCoins(ctx context.Context, id string, delta int64, now time.Time) (int64, error) {
	var coins int64
	err := s.db.QueryRow(ctx, `
		UPDATE accounts
		SET coins = coins + $1, last_active = $2
		WHERE id = $3
		RETURNING coins
	`, delta, now, id).Scan(&coins)
	return coins, translateErr(err)
}

func (s pgAccounts) TouchLastActive(ctx context.Context, id string, now time.Time) error {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET last_active = $1 WHERE id = $2`, now, id)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s pgAccounts) ListByActivity(ctx context.Context, since time.Time, limit int) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if !since.IsZero() {
		query += ` WHERE last_active >= $1`
		args = append(args, since)
	}
	query += ` ORDER BY coins DESC, id ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, translateErr(rows.Err())
}

func (s pgAccounts) CountWithGreaterBalance(ctx context.Context, since time.Time, coins int64) (int64, error) {
	query := `SELECT COUNT(1) FROM accounts WHERE coins > $1`
	args := []any{coins}
	if !since.IsZero() {
		query += ` AND last_active >= $2`
		args = append(args, since)
	}
	var n int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, translateErr(err)
}

// --- chants ---

type pgChants struct{ db *pgxpool.Pool }

func (s pgChants) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Chant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, coins_earned, confidence, recorded_at
		FROM chants
		WHERE account_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []Chant
	for rows.Next() {
		var c Chant
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CoinsEarned, &c.Confidence, &c.RecordedAt); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, c)
	}
	return out, translateErr(rows.Err())
}

func (s pgChants) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(1) FROM chants WHERE account_id = $1`, accountID).Scan(&n)
	return n, translateErr(err)
}

func (s pgChants) CountSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(1) FROM chants WHERE account_id = $1 AND recorded_at >= $2
	`, accountID, since).Scan(&n)
	return n, translateErr(err)
}

func (s pgChants) DailyTotals(ctx context.Context, accountID string, since time.Time) ([]DayTotal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT to_char(recorded_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COUNT(1), COALESCE(SUM(coins_earned), 0)
		FROM chants
		WHERE account_id = $1 AND recorded_at >= $2
		GROUP BY day
		ORDER BY day
	`, accountID, since)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []DayTotal
	for rows.Next() {
		var d DayTotal
		if err := rows.Scan(&d.Day, &d.Chants, &d.Coins); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, d)
	}
	return out, translateErr(rows.Err())
}

// --- transactions ---

type pgTransactions struct{ db *pgxpool.Pool }

func (s pgTransactions) Append(ctx context.Context, t Transaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.AccountID, t.Kind, t.Amount, t.Description, t.CreatedAt)
	return translateErr(err)
}

func (s pgTransactions) ListByAccount(ctx context.Context, accountID, kind string, limit, offset int) ([]Transaction, error) {
	query := `
		SELECT id, account_id, kind, amount, description, created_at
		FROM transactions
		WHERE account_id = $1
	`
	args := []any{accountID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, t)
	}
	return out, translateErr(rows.Err())
}

func (s pgTransactions) CountByAccount(ctx context.Context, accountID, kind string) (int64, error) {
	query := `SELECT COUNT(1) FROM transactions WHERE account_id = $1`
	args := []any{accountID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	var n int64
	err := s.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, translateErr(err)
}

func (s pgTransactions) CountKindSince(ctx context.Context, accountID, kind string, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(1) FROM transactions
		WHERE account_id = $1 AND kind = $2 AND created_at >= $3
	`, accountID, kind, since).Scan(&n)
	return n, translateErr(err)
}

// --- achievements ---

type pgAchievements struct{ db *pgxpool.Pool }

func (s pgAchievements) Titles(ctx context.Context, accountID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT title FROM achievements WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, translateErr(err)
		}
		out[title] = struct{}{}
	}
	return out, translateErr(rows.Err())
}

func (s pgAchievements) InsertMissing(ctx context.Context, achievements []Achievement) ([]Achievement, error) {
	var inserted []Achievement
	for _, a := range achievements {
		cmd, err := s.db.Exec(ctx, `
			INSERT INTO achievements (id, account_id, title, description, icon, unlocked_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id, title) DO NOTHING
		`, a.ID, a.AccountID, a.Title, a.Description, a.Icon, a.UnlockedAt)
		if err != nil {
			return inserted, translateErr(err)
		}
		if cmd.RowsAffected() > 0 {
			inserted = append(inserted, a)
		}
	}
	return inserted, nil
}

func (s pgAchievements) ListByAccount(ctx context.Context, accountID string) ([]Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, title, description, icon, unlocked_at
		FROM achievements
		WHERE account_id = $1
		ORDER BY unlocked_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.AccountID, &a.Title, &a.Description, &a.Icon, &a.UnlockedAt); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, a)
	}
	return out, translateErr(rows.Err())
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrConflict
		}
		if pgErr.Code == "23503" {
			return ErrNotFound
		}
	}
	return err
}
