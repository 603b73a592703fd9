package aggregation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// accumulator is the mutable per-customer state used while folding sale lines.
// Product volumes are summed in decimal so the totals do not depend on the
// order in which extracts were unioned.
type accumulator struct {
	agreement    Agreement
	productOrder []string
	productSums  map[string]decimal.Decimal
}

func (a *accumulator) add(product string, volume float64) {
	sum, seen := a.productSums[product]
	if !seen {
		a.productOrder = append(a.productOrder, product)
	}
	a.productSums[product] = sum.Add(decimal.NewFromFloat(volume))
}

// products materializes the breakdown sorted by descending volume.
// sort.SliceStable keeps first-seen order for equal volumes.
func (a *accumulator) products() []ProductBreakdown {
	out := make([]ProductBreakdown, 0, len(a.productOrder))
	for _, name := range a.productOrder {
		out = append(out, ProductBreakdown{
			ProductName: name,
			TotalVolume: a.productSums[name].InexactFloat64(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalVolume > out[j].TotalVolume
	})
	return out
}

// Aggregate joins sale lines to agreements by customer code and computes
// per-customer performance plus the portfolio summary.
//
// The registry is authoritative for which customers exist: sale lines whose
// code matches no agreement are skipped. Duplicate agreement codes resolve
// last-wins; the customer keeps the position of its first occurrence.
// Aggregate is pure and deterministic for identical, identically ordered input.
func Aggregate(agreements []Agreement, sales []SaleLine) Result {
	order := make([]string, 0, len(agreements))
	byCode := make(map[string]*accumulator, len(agreements))

	for _, a := range agreements {
		if acc, ok := byCode[a.CustomerCode]; ok {
			acc.agreement = a
			continue
		}
		byCode[a.CustomerCode] = &accumulator{
			agreement:   a,
			productSums: make(map[string]decimal.Decimal),
		}
		order = append(order, a.CustomerCode)
	}

	for _, line := range sales {
		acc, ok := byCode[line.CustomerCode]
		if !ok {
			continue
		}
		acc.add(line.ProductName, line.Volume)
	}

	performances := make([]Performance, 0, len(order))
	var summary Summary
	for _, code := range order {
		acc := byCode[code]
		products := acc.products()

		var achieved float64
		for _, p := range products {
			achieved += p.TotalVolume
		}

		performances = append(performances, Performance{
			Agreement:          acc.agreement,
			AchievedVolume:     achieved,
			ProgressPercentage: progress(achieved, acc.agreement.TargetVolume),
			Products:           products,
		})

		summary.TotalTarget += acc.agreement.TargetVolume
		summary.TotalAchieved += achieved
	}

	summary.OverallProgress = progress(summary.TotalAchieved, summary.TotalTarget)
	summary.CustomerCount = len(performances)

	return Result{Performances: performances, Summary: summary}
}

// progress returns achieved as a percentage of target, or 0 when there is no target.
func progress(achieved, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return achieved / target * 100
}

// NewCachedResult stamps an aggregation result as a snapshot computed at now.
func NewCachedResult(r Result, now time.Time) CachedResult {
	return CachedResult{
		ID:           uuid.New().String(),
		Performances: r.Performances,
		Summary:      r.Summary,
		ComputedAt:   now.UTC(),
	}
}
