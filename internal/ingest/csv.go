// Package ingest turns uploaded tables into validated datasets.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

var (
	ErrNoHeader     = errors.New("missing header row")
	ErrNoRows       = errors.New("no data rows")
	ErrNonNumeric   = errors.New("non-numeric value")
	ErrMissingValue = errors.New("missing value")
)

// MaxRows caps the number of data rows accepted from one upload.
const MaxRows = 10000

// ParseError locates a bad cell. Row is 1-based and counts the header.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("row %d, column %q: %v (%q)", e.Row, e.Column, e.Err, e.Value)
	}
	return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseCSV reads a table whose first column is the period label and whose
// remaining columns are numeric metrics.
func ParseCSV(r io.Reader, source string) (core.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Dataset{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if len(rows) > MaxRows {
			return core.Dataset{}, fmt.Errorf("too many rows (max %d)", MaxRows)
		}
		rows = append(rows, fields)
	}
	return ParseRows(rows, source)
}

// ParseRows builds a dataset from a header row followed by data rows. Blank
// rows are skipped.
func ParseRows(rows [][]string, source string) (core.Dataset, error) {
	if len(rows) == 0 {
		return core.Dataset{}, ErrNoHeader
	}
	header := trimHeader(rows[0])
	if len(header) < 2 {
		return core.Dataset{}, fmt.Errorf("%w: need a period column and at least one metric", core.ErrNoMetrics)
	}

	records := make([]core.Record, 0, len(rows)-1)
	for i, fields := range rows[1:] {
		if blank(fields) {
			continue
		}
		rec, err := parseRecord(i+2, header, fields)
		if err != nil {
			return core.Dataset{}, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return core.Dataset{}, ErrNoRows
	}
	return core.NewDataset(source, header[0], header[1:], records)
}

func parseRecord(row int, header, fields []string) (core.Record, error) {
	period := cell(fields, 0)
	if period == "" {
		return core.Record{}, &ParseError{Row: row, Column: header[0], Err: ErrMissingValue}
	}
	values := make([]decimal.Decimal, len(header)-1)
	for i := 1; i < len(header); i++ {
		raw := cell(fields, i)
		if raw == "" {
			return core.Record{}, &ParseError{Row: row, Column: header[i], Err: ErrMissingValue}
		}
		v, err := core.ParseAmount(raw)
		if err != nil {
			return core.Record{}, &ParseError{Row: row, Column: header[i], Value: raw, Err: ErrNonNumeric}
		}
		values[i-1] = v
	}
	return core.Record{Period: period, Values: values}, nil
}

func trimHeader(h []string) []string {
	out := make([]string, len(h))
	for i, s := range h {
		out[i] = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	}
	// Spreadsheet exports often leave trailing empty header cells.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func cell(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes a dataset back out in the layout ParseCSV accepts.
func WriteCSV(w io.Writer, ds core.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{ds.PeriodLabel}, ds.Metrics...)); err != nil {
		return err
	}
	for _, rec := range ds.Records {
		row := make([]string, 0, len(rec.Values)+1)
		row = append(row, rec.Period)
		for _, v := range rec.Values {
			row = append(row, v.String())
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
