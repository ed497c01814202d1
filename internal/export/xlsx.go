// Package export writes the current dataset as a spreadsheet.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"kpidash/internal/core"
)

const (
	// DataSheet holds the header row followed by one row per period.
	DataSheet = "Sheet1"
	// SummarySheet holds one row per KPI when summaries are supplied.
	SummarySheet = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// XLSX renders ds, and optionally its summaries, as an .xlsx workbook.
func XLSX(ds core.Dataset, summaries []core.MetricSummary) ([]byte, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    []excelize.Border{{Type: "bottom", Color: "#333333", Style: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("number style: %w", err)
	}

	header := append([]string{ds.PeriodLabel}, ds.Metrics...)
	if err := writeRow(f, DataSheet, 1, toAny(header)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	f.SetCellStyle(DataSheet, "A1", last, headerStyle)

	for i, rec := range ds.Records {
		row := make([]any, 0, len(rec.Values)+1)
		row = append(row, rec.Period)
		for _, v := range rec.Values {
			row = append(row, v.InexactFloat64())
		}
		if err := writeRow(f, DataSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if ds.Len() > 0 {
		first, _ := excelize.CoordinatesToCellName(2, 2)
		end, _ := excelize.CoordinatesToCellName(len(header), ds.Len()+1)
		f.SetCellStyle(DataSheet, first, end, numberStyle)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	f.SetColWidth(DataSheet, "A", lastCol, 16)

	if len(summaries) > 0 {
		if err := writeSummary(f, summaries, headerStyle, numberStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeSummary(f *excelize.File, summaries []core.MetricSummary, headerStyle, numberStyle int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	header := []any{"Metric", "Current total", "Baseline total", "Change %", "Direction"}
	if err := writeRow(f, SummarySheet, 1, header); err != nil {
		return err
	}
	f.SetCellStyle(SummarySheet, "A1", "E1", headerStyle)

	for i, s := range summaries {
		var change any = "n/a"
		if s.ChangeDefined {
			change = s.PercentChange.Round(2).InexactFloat64()
		}
		row := []any{s.Metric, s.CurrentTotal.InexactFloat64(), s.BaselineTotal.Round(2).InexactFloat64(), change, string(s.Direction)}
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			return err
		}
	}
	end, _ := excelize.CoordinatesToCellName(3, len(summaries)+1)
	f.SetCellStyle(SummarySheet, "B2", end, numberStyle)
	f.SetColWidth(SummarySheet, "A", "E", 16)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
