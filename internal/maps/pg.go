// internal/maps/pg.go
package maps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGProvider serves map metadata from the shared maps catalog in Postgres.
type PGProvider struct {
	pool *pgxpool.Pool
}

// NewPGProvider connects a provider to an existing pgx pool.
func NewPGProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{pool: pool}
}

// Connect creates a pgx pool from a connection string and wraps it in a
// provider. The caller owns the pool lifetime via Close.
func Connect(ctx context.Context, connString string) (*PGProvider, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create map catalog pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping map catalog: %w", err)
	}
	return &PGProvider{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *PGProvider) Close() {
	p.pool.Close()
}

// GetMapInfo fetches metadata for the given map IDs. Requester identity is
// recorded for visibility checks on private maps; nonexistent IDs are
// simply absent from the result.
func (p *PGProvider) GetMapInfo(ctx context.Context, mapIDs []string, requesterID uuid.UUID) ([]MapInfo, error) {
	q := `
	SELECT id, name, hash, num_slots, forces
	FROM maps
	WHERE id = ANY($1)
	  AND (visibility = 'public' OR uploaded_by = $2)
	`
	rows, err := p.pool.Query(ctx, q, mapIDs, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer rows.Close()

	var infos []MapInfo
	for rows.Next() {
		var m MapInfo
		var forcesJSON []byte
		if err := rows.Scan(&m.ID, &m.Name, &m.Hash, &m.NumSlots, &forcesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan map row: %w", err)
		}
		if len(forcesJSON) > 0 {
			if err := json.Unmarshal(forcesJSON, &m.Forces); err != nil {
				return nil, fmt.Errorf("failed to decode forces for map %s: %w", m.ID, err)
			}
		}
		infos = append(infos, m)
	}
	return infos, rows.Err()
}
