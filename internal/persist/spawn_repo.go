package persist

import (
	"context"

	"github.com/wyrmgate/server/internal/scripting"
)

// SpawnRepo loads spawn definitions from the database. It satisfies the
// registry's SpawnSource so database-backed placements load alongside the
// script-declared ones.
type SpawnRepo struct {
	db *DB
}

func NewSpawnRepo(db *DB) *SpawnRepo {
	return &SpawnRepo{db: db}
}

// SpawnDefs returns all spawn definitions ordered by id.
func (r *SpawnRepo) SpawnDefs(ctx context.Context) ([]scripting.SpawnDef, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, class, ai, map_id, x, y, range_x, range_y, count, respawn_s
		 FROM spawn_defs ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []scripting.SpawnDef
	for rows.Next() {
		var d scripting.SpawnDef
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Class, &d.AI, &d.MapID,
			&d.X, &d.Y, &d.RangeX, &d.RangeY, &d.Count, &d.RespawnS,
		); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
