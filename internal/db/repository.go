package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"grahamscreen/internal/models"
	"grahamscreen/internal/screen"
)

// ErrNoReport is returned when no stored report exists for a ticker.
var ErrNoReport = errors.New("db: no report for ticker")

// Repository handles database operations for companies and screen reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertCompany inserts or updates the company identity row for a snapshot.
func (r *Repository) UpsertCompany(ctx context.Context, snap *models.CompanySnapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (ticker, name, sector, industry, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			updated_at = NOW()
	`, snap.Ticker, snap.Name, snap.Sector, snap.Industry)
	if err != nil {
		return fmt.Errorf("upserting company: %w", err)
	}
	return nil
}

// SaveReports stores the given reports for a ticker in one batch.
func (r *Repository) SaveReports(ctx context.Context, reports ...screen.Report) error {
	if len(reports) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rep := range reports {
		payload, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		batch.Queue(`
			INSERT INTO screen_reports (ticker, rule_set, qualifies, report)
			VALUES ($1, $2, $3, $4)
		`, rep.Ticker, rep.RuleSet, rep.Qualifies, payload)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range reports {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting report: %w", err)
		}
	}
	return nil
}

// LatestReport returns the most recent stored report for a ticker and rule
// set, with its storage timestamp.
func (r *Repository) LatestReport(ctx context.Context, ticker, ruleSet string) (screen.Report, time.Time, error) {
	var payload []byte
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT report, created_at FROM screen_reports
		WHERE ticker = $1 AND rule_set = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, ticker, ruleSet).Scan(&payload, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return screen.Report{}, time.Time{}, ErrNoReport
	}
	if err != nil {
		return screen.Report{}, time.Time{}, fmt.Errorf("querying report: %w", err)
	}

	var rep screen.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return screen.Report{}, time.Time{}, fmt.Errorf("decoding report: %w", err)
	}
	return rep, createdAt, nil
}

// GetAllTickers returns all known tickers, ordered.
func (r *Repository) GetAllTickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT ticker FROM companies ORDER BY ticker")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}

// GetCompanyCount returns the number of companies in the database.
func (r *Repository) GetCompanyCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM companies").Scan(&count)
	return count, err
}

// GetReportCount returns the number of stored screen reports.
func (r *Repository) GetReportCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM screen_reports").Scan(&count)
	return count, err
}
