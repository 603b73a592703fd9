package aggregation

import (
	"time"
)

// UnknownProduct is the product name given to sale lines that carry none.
const UnknownProduct = "Unknown Product"

// Agreement is one customer's contractual target record from the registry.
// CustomerCode is the join key; the dates are opaque display strings.
type Agreement struct {
	CustomerCode       string  `json:"customerCode" msgpack:"customer_code"`
	CustomerName       string  `json:"customerName" msgpack:"customer_name"`
	AgreementStartDate string  `json:"agreementStartDate" msgpack:"agreement_start_date"`
	AgreementEndDate   string  `json:"agreementEndDate" msgpack:"agreement_end_date"`
	TargetVolume       float64 `json:"agreementTargetVolume" msgpack:"target_volume"`
}

// SaleLine is one row of a sales extract attributing a volume to a customer/product.
type SaleLine struct {
	CustomerCode string  `json:"customerCode"`
	ProductName  string  `json:"productName"`
	Volume       float64 `json:"productVolume"`
}

// ProductBreakdown is the summed volume of one product for one customer.
type ProductBreakdown struct {
	ProductName string  `json:"productName" msgpack:"product_name"`
	TotalVolume float64 `json:"totalVolume" msgpack:"total_volume"`
}

// Performance is the computed achievement of one customer against its Agreement.
// Invariant: AchievedVolume equals the in-order sum of Products[i].TotalVolume.
type Performance struct {
	Agreement          `msgpack:",inline"`
	AchievedVolume     float64            `json:"achievedVolume" msgpack:"achieved_volume"`
	ProgressPercentage float64            `json:"progressPercentage" msgpack:"progress_percentage"`
	Products           []ProductBreakdown `json:"products" msgpack:"products"`
}

// Summary is the portfolio-wide rollup across all Performances.
type Summary struct {
	TotalTarget     float64 `json:"totalTarget" msgpack:"total_target"`
	TotalAchieved   float64 `json:"totalAchieved" msgpack:"total_achieved"`
	OverallProgress float64 `json:"overallProgress" msgpack:"overall_progress"`
	CustomerCount   int     `json:"totalCustomers" msgpack:"customer_count"`
}

// Result is the direct output of Aggregate.
type Result struct {
	Performances []Performance
	Summary      Summary
}

// CachedResult is the immutable snapshot produced by one aggregation run.
// Stores hold at most one current instance and replace it wholesale.
type CachedResult struct {
	ID           string        `json:"id" msgpack:"id"`
	Performances []Performance `json:"performances" msgpack:"performances"`
	Summary      Summary       `json:"summary" msgpack:"summary"`
	ComputedAt   time.Time     `json:"timestamp" msgpack:"computed_at"`
}

// IsEmpty reports whether the snapshot has nothing worth displaying.
// A nil snapshot is empty.
func (r *CachedResult) IsEmpty() bool {
	return r == nil || len(r.Performances) == 0
}

// Find returns the performance for a customer code.
func (r *CachedResult) Find(customerCode string) (Performance, bool) {
	if r == nil {
		return Performance{}, false
	}
	for _, p := range r.Performances {
		if p.CustomerCode == customerCode {
			return p, true
		}
	}
	return Performance{}, false
}
