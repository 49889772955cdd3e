package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/FairForge/multicloud-dr/internal/database"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// PostgresStore persists to PostgreSQL.
type PostgresStore struct {
	pg *database.Postgres
}

// NewPostgresStore wraps an open connection. Call database.CreateTables
// first when the schema may be missing.
func NewPostgresStore(pg *database.Postgres) *PostgresStore {
	return &PostgresStore{pg: pg}
}

func pgErr(op string, err error) error {
	return &PersistenceError{Backend: "postgres", Op: op, Err: err}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, ev FailoverEvent) error {
	details, err := json.Marshal(map[string]interface{}{"scores": ev.Scores})
	if err != nil {
		return pgErr("append", err)
	}

	query := `
		INSERT INTO failover_events
			(id, from_provider, to_provider, reason, is_manual, triggered_by, actor, details, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pg.DB().ExecContext(ctx, query,
		ev.ID, string(ev.From), string(ev.To), ev.Reason, ev.Manual, ev.TriggeredBy,
		nullString(ev.Actor), details, ev.Timestamp)
	if err != nil {
		return pgErr("append", err)
	}
	return nil
}

// Recent implements Store.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]FailoverEvent, error) {
	query := `
		SELECT id, from_provider, to_provider, reason, is_manual, triggered_by, actor, details, occurred_at
		FROM failover_events
		ORDER BY occurred_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pg.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgErr("recent", err)
	}
	defer func() { _ = rows.Close() }()

	events := []FailoverEvent{}
	for rows.Next() {
		var (
			ev       FailoverEvent
			from, to string
			actor    sql.NullString
			details  []byte
		)
		if err := rows.Scan(&ev.ID, &from, &to, &ev.Reason, &ev.Manual, &ev.TriggeredBy, &actor, &details, &ev.Timestamp); err != nil {
			return nil, pgErr("recent", err)
		}
		ev.From, ev.To = provider.ID(from), provider.ID(to)
		ev.Actor = actor.String
		if len(details) > 0 {
			var d struct {
				Scores map[provider.ID]float64 `json:"scores"`
			}
			if err := json.Unmarshal(details, &d); err == nil {
				ev.Scores = d.Scores
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("recent", err)
	}
	return events, nil
}

// ReadActive implements Store.
func (s *PostgresStore) ReadActive(ctx context.Context) (ActiveRecord, error) {
	var (
		rec ActiveRecord
		id  string
	)
	err := s.pg.DB().QueryRowContext(ctx,
		`SELECT provider, updated_at FROM active_provider WHERE id = 1`).Scan(&id, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, pgErr("read active", err)
	}
	rec.Provider = provider.ID(id)
	return rec, nil
}

// WriteActive implements Store.
func (s *PostgresStore) WriteActive(ctx context.Context, rec ActiveRecord) error {
	query := `
		INSERT INTO active_provider (id, provider, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET provider = EXCLUDED.provider, updated_at = EXCLUDED.updated_at`
	if _, err := s.pg.DB().ExecContext(ctx, query, string(rec.Provider), rec.UpdatedAt); err != nil {
		return pgErr("write active", err)
	}
	return nil
}

// RecordHealth inserts one health_checks row per sample.
func (s *PostgresStore) RecordHealth(ctx context.Context, samples map[provider.ID]health.Sample) error {
	tx, err := s.pg.DB().BeginTx(ctx, nil)
	if err != nil {
		return pgErr("record health", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO health_checks (provider, is_healthy, response_time_ms, status_code, error_message, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for id, smp := range samples {
		var rt sql.NullFloat64
		if smp.ResponseTime != nil {
			rt = sql.NullFloat64{Float64: float64(smp.ResponseTime.Microseconds()) / 1000, Valid: true}
		}
		var code sql.NullInt64
		if smp.StatusCode != nil {
			code = sql.NullInt64{Int64: int64(*smp.StatusCode), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query, string(id), smp.Healthy, rt, code, nullString(smp.Error), smp.Timestamp); err != nil {
			return pgErr("record health", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pgErr("record health", err)
	}
	return nil
}

// RecordPerformance inserts one performance_metrics row per snapshot.
func (s *PostgresStore) RecordPerformance(ctx context.Context, snaps map[provider.ID]performance.Snapshot) error {
	tx, err := s.pg.DB().BeginTx(ctx, nil)
	if err != nil {
		return pgErr("record performance", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO performance_metrics
			(provider, cpu_utilization, memory_utilization, disk_iops, network_throughput,
			 request_success_rate, average_response_time, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for id, p := range snaps {
		if _, err := tx.ExecContext(ctx, query, string(id), p.CPUUtilization, p.MemoryUtilization,
			p.DiskIOPS, p.NetworkThroughput, p.RequestSuccessRate, p.AverageResponseTime, p.Timestamp); err != nil {
			return pgErr("record performance", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pgErr("record performance", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.pg.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
