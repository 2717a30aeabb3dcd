package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_active_per_category",
			SQL: `SELECT category, COUNT(*) FROM requests
                  WHERE status IN ('pending','accepted')
                  GROUP BY category HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_status_field_shape",
			SQL: `SELECT id, status FROM requests
                  WHERE (status = 'pending'   AND (accepted_by IS NOT NULL OR accepted_at IS NOT NULL
                                                OR completed_by IS NOT NULL OR completed_at IS NOT NULL))
                     OR (status = 'accepted'  AND (accepted_by IS NULL OR accepted_at IS NULL
                                                OR completed_by IS NOT NULL OR completed_at IS NOT NULL))
                     OR (status = 'completed' AND (accepted_by IS NULL OR accepted_at IS NULL
                                                OR completed_by IS NULL OR completed_at IS NULL))`,
		},
		{
			Name: "O3_timestamps_ordered",
			SQL: `SELECT id FROM requests
                  WHERE (accepted_at IS NOT NULL AND accepted_at < created_at)
                     OR (completed_at IS NOT NULL AND completed_at < accepted_at)`,
		},
		{
			Name: "O4_urgency_derived_from_category",
			SQL: `SELECT id, category, urgency FROM requests
                  WHERE urgency::text <> CASE category::text
                        WHEN 'water' THEN 'normal'
                        WHEN 'emergency' THEN 'emergency'
                        ELSE 'high' END`,
		},
		{
			Name: "O5_delete_guard_present",
			SQL: `SELECT 'missing_no_delete_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname='no_delete_requests')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
