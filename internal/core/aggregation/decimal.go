package aggregation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseVolume turns a raw cell into a non-negative volume.
// Returns decimal.Zero if the cell is empty, not a number, or negative.
// Spreadsheet cells arrive as their formatted text, so a plain decimal parse
// covers both CSV and XLSX sources.
func ParseVolume(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseVolumeFloat is ParseVolume materialized to float64, the type carried by
// Agreement and SaleLine.
func ParseVolumeFloat(raw string) float64 {
	return ParseVolume(raw).InexactFloat64()
}
