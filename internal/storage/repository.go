package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertAlertSQL = `INSERT INTO alerts (
        alert_id,
        alert_type,
        severity,
        title,
        message,
        metadata,
        triggered_at,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (alert_id) DO NOTHING
    RETURNING id;`

	listRecentAlertsSQL = `SELECT
        id,
        alert_id,
        alert_type,
        severity,
        title,
        message,
        metadata,
        triggered_at,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	countAlertsSQL = `SELECT COUNT(*) FROM alerts;`
)

// AlertArchive defines the downstream persistence consumer of emitted alerts.
type AlertArchive interface {
	InsertAlert(ctx context.Context, record AlertRecord) error
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
	CountAlerts(ctx context.Context) (int64, error)
}

// Store persists alert records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert archives one emitted alert. Re-inserting an alert id is a
// no-op; emission order is already captured by created_at.
func (s *Store) InsertAlert(ctx context.Context, record AlertRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var metadata interface{}
	if len(record.Metadata) > 0 {
		metadata = []byte(record.Metadata)
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		record.AlertID,
		record.Type,
		record.Severity,
		record.Title,
		record.Message,
		metadata,
		record.TriggeredAt,
		record.CreatedAt,
	)
	var id int64
	if scanErr := row.Scan(&id); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("insert alert: %w", scanErr)
	}
	return nil
}

// ListRecentAlerts lists the most recent archived alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AlertRecord, 0)
	for rows.Next() {
		var record AlertRecord
		if scanErr := rows.Scan(
			&record.ID,
			&record.AlertID,
			&record.Type,
			&record.Severity,
			&record.Title,
			&record.Message,
			&record.Metadata,
			&record.TriggeredAt,
			&record.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan alert: %w", scanErr)
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteAlertsBefore prunes archived alerts older than the cutoff.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts: %w", execErr)
	}
	return nil
}

// CountAlerts reports the archive size.
func (s *Store) CountAlerts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAlertsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts: %w", scanErr)
	}
	return count, nil
}

var _ AlertArchive = (*Store)(nil)
