package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
)

// marshalResult encodes a snapshot for the JSONB payload column.
// Nil product slices are normalized to empty so readers never see JSON null.
func marshalResult(result aggregation.CachedResult) ([]byte, error) {
	perfs := make([]aggregation.Performance, len(result.Performances))
	copy(perfs, result.Performances)
	for i := range perfs {
		if perfs[i].Products == nil {
			perfs[i].Products = []aggregation.ProductBreakdown{}
		}
	}
	result.Performances = perfs

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cached result: %w", err)
	}
	return payload, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanResultRow scans a payload row into a CachedResult.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanResultRow(row scanner) (*aggregation.CachedResult, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}

	var result aggregation.CachedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}
	return &result, nil
}
