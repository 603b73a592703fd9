package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aevon-lab/salestrack/internal/core/normalize"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for sources that are neither CSV nor a workbook.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// ReadTable decodes raw source bytes into a header-keyed table.
// The format is chosen from the location's extension.
func ReadTable(location string, data []byte) (normalize.Table, error) {
	switch ext := strings.ToLower(path.Ext(stripQuery(location))); ext {
	case ".csv":
		return readCSV(data)
	case ".xlsx", ".xlsm":
		return readWorkbook(data)
	default:
		return normalize.Table{}, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, ext, location)
	}
}

func stripQuery(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}

// readCSV parses a CSV extract whose first record is the header line.
// Blank lines are skipped and records may have a variable number of fields.
func readCSV(data []byte) (normalize.Table, error) {
	br := bufio.NewReader(bytes.NewReader(data))

	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return normalize.Table{Format: normalize.FormatCSV}, nil
	}
	if err != nil {
		return normalize.Table{}, fmt.Errorf("read csv header: %w", err)
	}

	table := normalize.Table{Format: normalize.FormatCSV, Headers: headers}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return normalize.Table{}, fmt.Errorf("read csv record: %w", err)
		}
		if row, ok := toRow(headers, record); ok {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// readWorkbook reads the first sheet of a workbook; its first row is the header.
func readWorkbook(data []byte) (normalize.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return normalize.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return normalize.Table{Format: normalize.FormatSpreadsheet}, nil
	}

	// Raw values: a number format such as "#,##0.00" must not reach the volume parser.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return normalize.Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return normalize.Table{Format: normalize.FormatSpreadsheet}, nil
	}

	table := normalize.Table{Format: normalize.FormatSpreadsheet, Headers: rows[0]}
	for _, record := range rows[1:] {
		if row, ok := toRow(rows[0], record); ok {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// toRow keys a record by header. Cells past the header width and columns with
// a blank header are ignored; a record with no non-blank cell yields false.
func toRow(headers, record []string) (normalize.Row, bool) {
	row := make(normalize.Row, len(headers))
	nonEmpty := false
	for i, h := range headers {
		if h == "" || i >= len(record) {
			continue
		}
		row[h] = record[i]
		if strings.TrimSpace(record[i]) != "" {
			nonEmpty = true
		}
	}
	return row, nonEmpty
}
