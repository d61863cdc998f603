package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres reads the master list from a PostgreSQL table. Used by
// deployments that curate the catalog in a managed database instead of a
// bundled JSON file. The pool is only needed during startup and is closed
// before returning.
func LoadPostgres(ctx context.Context, databaseURL string) (*Catalog, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect catalog database: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT id, name, lat, lon, COALESCE(images, '{}'), COALESCE(internal_notes, '')
		FROM poi_master_list`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var pois []POI
	for rows.Next() {
		var p POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &p.Images, &p.InternalNotes); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog rows: %w", err)
	}
	if len(pois) == 0 {
		return nil, fmt.Errorf("catalog table is empty")
	}

	return New(pois)
}
