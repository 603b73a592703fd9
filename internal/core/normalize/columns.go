package normalize

import "strings"

// Format identifies how a table's headers should be matched.
type Format string

const (
	// FormatCSV tables use exact header names.
	FormatCSV Format = "csv"
	// FormatSpreadsheet tables use case-insensitive substring header matches,
	// since exported workbooks tend to decorate their column titles.
	FormatSpreadsheet Format = "spreadsheet"
)

// Row is one table row keyed by the original header text.
type Row map[string]string

// Table is a parsed tabular source: a header line followed by data rows.
type Table struct {
	Format  Format
	Headers []string
	Rows    []Row
}

// Field names bound by the column specs.
const (
	FieldCustomerCode       = "customerCode"
	FieldCustomerName       = "customerName"
	FieldAgreementStartDate = "agreementStartDate"
	FieldAgreementEndDate   = "agreementEndDate"
	FieldTargetVolume       = "agreementTargetVolume"
	FieldProductName        = "productName"
	FieldProductVolume      = "productVolume"
)

// Column declares which source header feeds a record field.
type Column struct {
	Field  string
	Header string
}

// AgreementColumns is the column spec of the customer registry.
var AgreementColumns = []Column{
	{Field: FieldCustomerCode, Header: "Customer Code"},
	{Field: FieldCustomerName, Header: "Customer Name"},
	{Field: FieldAgreementStartDate, Header: "Agreement Start Date"},
	{Field: FieldAgreementEndDate, Header: "Agreement End Date"},
	{Field: FieldTargetVolume, Header: "Agreement Target Volume"},
}

// SalesColumns is the column spec of a sales extract.
var SalesColumns = []Column{
	{Field: FieldCustomerCode, Header: "Customer Code"},
	{Field: FieldProductName, Header: "Product Name"},
	{Field: FieldProductVolume, Header: "Product Volume"},
}

// Matcher reports whether a source header satisfies a declared column header.
type Matcher func(declared, actual string) bool

// ExactMatch requires the trimmed headers to be identical.
func ExactMatch(declared, actual string) bool {
	return strings.TrimSpace(actual) == declared
}

// ContainsFold matches when the actual header contains the declared one,
// ignoring case.
func ContainsFold(declared, actual string) bool {
	return strings.Contains(strings.ToLower(actual), strings.ToLower(declared))
}

// MatcherFor returns the header matcher used for a table format.
func MatcherFor(f Format) Matcher {
	if f == FormatSpreadsheet {
		return ContainsFold
	}
	return ExactMatch
}

// Binding maps record fields to the actual header present in one table.
// Fields with no matching header are absent from the map.
type Binding map[string]string

// Resolve binds each column to the first header accepted by match.
func Resolve(columns []Column, headers []string, match Matcher) Binding {
	b := make(Binding, len(columns))
	for _, col := range columns {
		for _, h := range headers {
			if match(col.Header, h) {
				b[col.Field] = h
				break
			}
		}
	}
	return b
}

// Value returns the trimmed cell for field, and whether the table has that column.
func (b Binding) Value(row Row, field string) (string, bool) {
	header, ok := b[field]
	if !ok {
		return "", false
	}
	v, ok := row[header]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
