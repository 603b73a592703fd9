package postgres

// SQL for the shared result tier. One row per cache key; the service only ever
// uses a single fixed key, so the table holds the deployment's canonical result.

const (
	// queryReadResult loads the current snapshot payload.
	queryReadResult = `
		SELECT payload
		FROM cached_results
		WHERE cache_key = $1
	`

	// queryUpsertResult replaces the snapshot unconditionally (last writer wins).
	// No WHERE on the conflict branch: an older computed_at from a slower
	// client still overwrites a newer one.
	queryUpsertResult = `
		INSERT INTO cached_results (cache_key, result_id, payload, computed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key)
		DO UPDATE SET
			result_id   = EXCLUDED.result_id,
			payload     = EXCLUDED.payload,
			computed_at = EXCLUDED.computed_at,
			updated_at  = EXCLUDED.updated_at
	`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'cached_results'
		)
	`
)
