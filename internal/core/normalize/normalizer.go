// Package normalize turns parsed tables into typed agreement and sale records.
// Malformed rows are filtering policy, not errors: they are dropped and counted.
package normalize

import (
	"fmt"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
)

// Kind selects which record type a table holds.
type Kind string

const (
	KindAgreements Kind = "agreements"
	KindSales      Kind = "sales"
)

// Stats counts what happened to the rows of one table.
type Stats struct {
	Rows    int
	Kept    int
	Dropped int
}

// Records is the typed output of Normalize; only the slice matching the kind is set.
type Records struct {
	Agreements []aggregation.Agreement
	Sales      []aggregation.SaleLine
	Stats      Stats
}

// Normalize dispatches on kind.
func Normalize(kind Kind, t Table) (Records, error) {
	switch kind {
	case KindAgreements:
		out, stats := Agreements(t)
		return Records{Agreements: out, Stats: stats}, nil
	case KindSales:
		out, stats := Sales(t)
		return Records{Sales: out, Stats: stats}, nil
	default:
		return Records{}, fmt.Errorf("unknown record kind %q", kind)
	}
}

// Agreements extracts registry rows. A row needs a customer code and a name.
func Agreements(t Table) ([]aggregation.Agreement, Stats) {
	b := Resolve(AgreementColumns, t.Headers, MatcherFor(t.Format))
	stats := Stats{Rows: len(t.Rows)}
	out := make([]aggregation.Agreement, 0, len(t.Rows))

	for _, row := range t.Rows {
		code, _ := b.Value(row, FieldCustomerCode)
		name, _ := b.Value(row, FieldCustomerName)
		if code == "" || name == "" {
			stats.Dropped++
			continue
		}
		start, _ := b.Value(row, FieldAgreementStartDate)
		end, _ := b.Value(row, FieldAgreementEndDate)
		target, _ := b.Value(row, FieldTargetVolume)

		out = append(out, aggregation.Agreement{
			CustomerCode:       code,
			CustomerName:       name,
			AgreementStartDate: start,
			AgreementEndDate:   end,
			TargetVolume:       aggregation.ParseVolumeFloat(target),
		})
	}

	stats.Kept = len(out)
	return out, stats
}

// Sales extracts sale lines. A row needs a customer code and a non-blank
// volume cell; the cell's value may still parse to 0.
func Sales(t Table) ([]aggregation.SaleLine, Stats) {
	b := Resolve(SalesColumns, t.Headers, MatcherFor(t.Format))
	stats := Stats{Rows: len(t.Rows)}
	out := make([]aggregation.SaleLine, 0, len(t.Rows))

	for _, row := range t.Rows {
		code, _ := b.Value(row, FieldCustomerCode)
		volume, _ := b.Value(row, FieldProductVolume)
		if code == "" || volume == "" {
			stats.Dropped++
			continue
		}
		product, _ := b.Value(row, FieldProductName)
		if product == "" {
			product = aggregation.UnknownProduct
		}

		out = append(out, aggregation.SaleLine{
			CustomerCode: code,
			ProductName:  product,
			Volume:       aggregation.ParseVolumeFloat(volume),
		})
	}

	stats.Kept = len(out)
	return out, stats
}
