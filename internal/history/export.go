package history

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	historySheet    = "Research History"
	summarySheet    = "Summary"
)

var historyHeaders = []string{"Date", "Query", "Answer", "Sources", "Used Documents", "Notes"}

// ExportXLSX renders entries as a workbook with a history sheet and a summary sheet.
func ExportXLSX(entries []models.HistoryEntry, exportedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := writeRow(f, historySheet, 1, toAny(historyHeaders)); err != nil {
		return nil, err
	}
	sourceCount := 0
	for i, e := range entries {
		labels := make([]string, len(e.Sources))
		for j, s := range e.Sources {
			labels[j] = fmt.Sprintf("[%s] %s", s.Label, s.URLOrFilename)
		}
		sourceCount += len(e.Sources)
		row := []any{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Query,
			e.Answer,
			strings.Join(labels, "\n"),
			e.UsedDocument,
			strings.Join(e.Notes, "\n"),
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	widths := map[string]float64{"A": 20, "B": 40, "C": 80, "D": 50, "E": 15, "F": 40}
	for col, w := range widths {
		if err := f.SetColWidth(historySheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Export Date", exportedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Total Queries", len(entries)},
		{"Total Sources Cited", sourceCount},
	}
	for i, row := range summary {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
