// Package sqlite persists dashboard summaries and per-product performance
// rows in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/opsdash/opsdash/pkg/metrics"
)

// StoredProduct is one row of the products table.
type StoredProduct struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Revenue          float64  `json:"revenue"`
	Units            int      `json:"units"`
	Sessions         int      `json:"sessions"`
	ConversionRate   float64  `json:"conversion_rate"`
	Refunds          int      `json:"refunds"`
	BuyBoxPercentage *float64 `json:"buy_box_percentage"`
}

// StoredSummary is one row of the summaries table plus its products.
type StoredSummary struct {
	ID             int64           `json:"id"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	Source         string          `json:"source"`
	TotalRevenue   float64         `json:"total_revenue"`
	TotalUnits     int             `json:"total_units"`
	TotalSessions  int             `json:"total_sessions"`
	ConversionRate float64         `json:"conversion_rate"`
	RefundRate     float64         `json:"refund_rate"`
	CreatedAt      string          `json:"created_at"`
	Products       []StoredProduct `json:"products"`
}

// Metric returns the named total ("revenue", "units" or "sessions") and
// whether the name is known.
func (s *StoredSummary) Metric(name string) (float64, bool) {
	switch name {
	case "revenue":
		return s.TotalRevenue, true
	case "units":
		return float64(s.TotalUnits), true
	case "sessions":
		return float64(s.TotalSessions), true
	default:
		return 0, false
	}
}

// Store provides SQLite-backed persistence for dashboard summaries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. Use ":memory:" for an in-memory database in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent dispatches sharing the store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSummary persists a summary and its top products, returning the new
// summary row ID.
func (s *Store) SaveSummary(ctx context.Context, summary metrics.Summary) (int64, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (
			start_date, end_date, source,
			total_revenue, total_units, total_sessions,
			conversion_rate, refund_rate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.Start.Format("2006-01-02"),
		summary.End.Format("2006-01-02"),
		summary.SourceName,
		summary.Totals.TotalRevenue,
		summary.Totals.TotalUnits,
		summary.Totals.TotalSessions,
		summary.Totals.ConversionRate,
		summary.Totals.RefundRate,
		createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting summary: %w", err)
	}
	summaryID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting summary id: %w", err)
	}

	for _, p := range summary.TopProducts {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO products (
				summary_id, asin, title, revenue, units, sessions,
				conversion_rate, refunds, buy_box_percentage
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summaryID, p.ASIN, p.Title, p.Revenue, p.Units, p.Sessions,
			p.ConversionRate, p.Refunds, p.BuyBoxPercentage,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting product %s: %w", p.ASIN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing summary: %w", err)
	}
	return summaryID, nil
}

const summaryColumns = `id, start_date, end_date, source, total_revenue,
	total_units, total_sessions, conversion_rate, refund_rate, created_at`

// RecentSummaries returns the most recent summaries, newest window first.
func (s *Store) RecentSummaries(ctx context.Context, limit int) ([]StoredSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries
		 ORDER BY start_date DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []StoredSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}

	for i := range summaries {
		products, err := s.fetchProducts(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Products = products
	}
	return summaries, nil
}

// SummaryByStartDate returns the latest summary whose window starts on the
// given ISO date, or nil if none exists. Used for year-over-year lookups.
func (s *Store) SummaryByStartDate(ctx context.Context, start string) (*StoredSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries
		 WHERE start_date = ? ORDER BY id DESC LIMIT 1`, start)

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	products, err := s.fetchProducts(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	summary.Products = products
	return &summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (StoredSummary, error) {
	var summary StoredSummary
	err := row.Scan(
		&summary.ID, &summary.Start, &summary.End, &summary.Source,
		&summary.TotalRevenue, &summary.TotalUnits, &summary.TotalSessions,
		&summary.ConversionRate, &summary.RefundRate, &summary.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return summary, err
		}
		return summary, fmt.Errorf("scanning summary: %w", err)
	}
	return summary, nil
}

func (s *Store) fetchProducts(ctx context.Context, summaryID int64) ([]StoredProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asin, title, revenue, units, sessions,
		       conversion_rate, refunds, buy_box_percentage
		FROM products WHERE summary_id = ? ORDER BY revenue DESC`, summaryID)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []StoredProduct
	for rows.Next() {
		var p StoredProduct
		if err := rows.Scan(
			&p.ASIN, &p.Title, &p.Revenue, &p.Units, &p.Sessions,
			&p.ConversionRate, &p.Refunds, &p.BuyBoxPercentage,
		); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// rollback rolls back a transaction, ignoring the error when the
// transaction was already committed.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
