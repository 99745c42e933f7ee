package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obsstack/aiops-rca/internal/models"
)

const createReportsTable = `
CREATE TABLE IF NOT EXISTS rca_reports (
	run_id        UUID PRIMARY KEY,
	generated_at  TIMESTAMPTZ NOT NULL,
	anomaly_count INTEGER NOT NULL,
	report        JSONB NOT NULL
)`

// ReportStore persists finished reports to Postgres so operators can compare
// runs over time. The store is optional; the pipeline works without it.
type ReportStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReportStore connects to Postgres and ensures the reports table exists.
func NewReportStore(ctx context.Context, dsn string, logger *slog.Logger) (*ReportStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to report store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping report store: %w", err)
	}
	if _, err := pool.Exec(ctx, createReportsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure reports table: %w", err)
	}

	return &ReportStore{pool: pool, logger: logger}, nil
}

// SaveReport inserts a report keyed by its run ID. Re-saving the same run is
// a no-op; reports are write-once.
func (s *ReportStore) SaveReport(ctx context.Context, rep models.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rca_reports (run_id, generated_at, anomaly_count, report)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id) DO NOTHING`,
		rep.RunID, rep.GeneratedAt, rep.Summary.AnomalyCount, payload,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	s.logger.Debug("report persisted", slog.String("run_id", rep.RunID))
	return nil
}

// ListReports returns the most recent reports, newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT report FROM rca_reports ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var rep models.Report
		if err := json.Unmarshal(payload, &rep); err != nil {
			return nil, fmt.Errorf("decode stored report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// Close releases the connection pool.
func (s *ReportStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
