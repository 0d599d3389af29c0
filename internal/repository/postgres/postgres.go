package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcity/simulator/internal/domain"
)

// PostgresRepository implements domain.SnapshotRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveSnapshot persists one per-tick telemetry snapshot to PostgreSQL. The
// intersection detail is stored as JSONB; tick and vehicle totals are lifted
// into columns so history queries never have to unpack the payload.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, update domain.TrafficUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO traffic_snapshots (tick, total_vehicles, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.pool.Exec(ctx, query,
		update.Tick, update.TotalVehicles, payload, update.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save snapshot: %w", err)
	}

	return nil
}

// RecentSnapshots retrieves up to limit snapshots from PostgreSQL, newest first
func (r *PostgresRepository) RecentSnapshots(ctx context.Context, limit int) ([]domain.TrafficUpdate, error) {
	query := `
		SELECT payload
		FROM traffic_snapshots
		ORDER BY tick DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var results []domain.TrafficUpdate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan snapshot row: %w", err)
		}

		var update domain.TrafficUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode snapshot payload: %w", err)
		}
		results = append(results, update)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
