package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finpulse/pkg/models"
)

// PostgresStore persists history in PostgreSQL. Each mutation runs in a
// transaction holding a per-user advisory lock, so the cap is enforced
// atomically with the insert.
type PostgresStore struct {
	pool   *pgxpool.Pool
	limits Limits
}

var _ HistoryStore = (*PostgresStore)(nil)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewPostgresStore(pool *pgxpool.Pool, limits Limits) *PostgresStore {
	return &PostgresStore{pool: pool, limits: limits.normalized()}
}

func (s *PostgresStore) inUserTx(ctx context.Context, userID string, fn func(tx pgx.Tx) error) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CommitReport(ctx context.Context, userID string, report models.SavedReport) ([]models.SavedReport, error) {
	if err := checkReport(userID, report); err != nil {
		return nil, err
	}
	input, err := json.Marshal(report.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	assessment, err := json.Marshal(report.Assessment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assessment: %w", err)
	}

	var out []models.SavedReport
	err = s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assessment_reports (id, user_id, created_at, input, assessment)
			VALUES ($1, $2, $3, $4, $5)
		`, report.ID, userID, report.Timestamp, input, assessment); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM assessment_reports
			WHERE user_id = $1 AND seq NOT IN (
				SELECT seq FROM assessment_reports WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
			)
		`, userID, s.limits.Reports); err != nil {
			return fmt.Errorf("failed to truncate reports: %w", err)
		}
		var err error
		out, err = queryReports(ctx, tx, userID, s.limits.Reports)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Reports(ctx context.Context, userID string) ([]models.SavedReport, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	return queryReports(ctx, s.pool, userID, s.limits.Reports)
}

func queryReports(ctx context.Context, q querier, userID string, limit int) ([]models.SavedReport, error) {
	rows, err := q.Query(ctx, `
		SELECT id, created_at, input, assessment
		FROM assessment_reports
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	out := []models.SavedReport{}
	for rows.Next() {
		var r models.SavedReport
		var input, assessment []byte
		if err := rows.Scan(&r.ID, &r.Timestamp, &input, &assessment); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if err := json.Unmarshal(input, &r.Data); err != nil {
			return nil, fmt.Errorf("failed to decode input of report %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(assessment, &r.Assessment); err != nil {
			return nil, fmt.Errorf("failed to decode assessment of report %s: %w", r.ID, err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordLogin(ctx context.Context, userID string, session models.LoginSession) ([]models.LoginSession, error) {
	if err := checkLogin(userID, session); err != nil {
		return nil, err
	}
	var out []models.LoginSession
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO login_sessions (user_id, logged_at, status, ip) VALUES ($1, $2, $3, $4)
		`, userID, session.Timestamp, string(session.Status), session.IP); err != nil {
			return fmt.Errorf("failed to insert login: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM login_sessions
			WHERE user_id = $1 AND seq NOT IN (
				SELECT seq FROM login_sessions WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
			)
		`, userID, s.limits.Logins); err != nil {
			return fmt.Errorf("failed to truncate logins: %w", err)
		}
		var err error
		out, err = queryLogins(ctx, tx, userID, s.limits.Logins)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Logins(ctx context.Context, userID string) ([]models.LoginSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	return queryLogins(ctx, s.pool, userID, s.limits.Logins)
}

func queryLogins(ctx context.Context, q querier, userID string, limit int) ([]models.LoginSession, error) {
	rows, err := q.Query(ctx, `
		SELECT logged_at, status, ip FROM login_sessions
		WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logins: %w", err)
	}
	defer rows.Close()

	out := []models.LoginSession{}
	for rows.Next() {
		var l models.LoginSession
		var status string
		if err := rows.Scan(&l.Timestamp, &status, &l.IP); err != nil {
			return nil, fmt.Errorf("failed to scan login row: %w", err)
		}
		l.Status = models.LoginStatus(status)
		l.Timestamp = l.Timestamp.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertSalesEntry(ctx context.Context, userID string, entry models.DailySalesEntry) ([]models.DailySalesEntry, error) {
	if err := checkEntry(userID, entry); err != nil {
		return nil, err
	}
	entry.Amount = roundPaise(entry.Amount)
	day, _ := entry.Day()

	var out []models.DailySalesEntry
	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_sales (user_id, sale_date, amount) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, sale_date)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()
		`, userID, day, entry.Amount); err != nil {
			return fmt.Errorf("failed to upsert sales entry: %w", err)
		}
		var err error
		out, err = querySales(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SalesEntries(ctx context.Context, userID string) ([]models.DailySalesEntry, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	return querySales(ctx, s.pool, userID)
}

func querySales(ctx context.Context, q querier, userID string) ([]models.DailySalesEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT sale_date, amount FROM daily_sales WHERE user_id = $1 ORDER BY sale_date
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	out := []models.DailySalesEntry{}
	for rows.Next() {
		var day time.Time
		var amount float64
		if err := rows.Scan(&day, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan sales row: %w", err)
		}
		out = append(out, models.DailySalesEntry{Date: day.Format(models.SalesDateLayout), Amount: amount})
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveUser(ctx context.Context, userID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		for _, table := range []string{"assessment_reports", "login_sessions", "daily_sales"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE user_id = $1", userID); err != nil {
				return fmt.Errorf("failed to purge %s: %w", table, err)
			}
		}
		return nil
	})
}
