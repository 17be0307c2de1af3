package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/security/validation"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Kosten"

var exportHeaders = []string{
	"Datum", "Art", "Lieferant", "Betrag", "Währung", "Titel", "Kategorie", "Notiz", "Paperless-ID", "Konfidenz", "Prüfen",
}

type exportServiceImpl struct {
	costs CostService
}

func NewExportService(costs CostService) ExportService {
	return &exportServiceImpl{costs: costs}
}

// WriteCSV writes a semicolon separated file with German decimal commas.
func (s *exportServiceImpl) WriteCSV(ctx context.Context, w io.Writer, filter model.CostFilter) error {
	rows, err := s.costs.AllCosts(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			textCell(r.Date),
			r.Kind,
			textCell(r.Vendor),
			germanDecimal(r.Amount, 2),
			r.Currency,
			textCell(r.Title),
			textCell(r.Category),
			textCell(r.Note),
			"",
			"",
			"",
		}
		if r.PaperlessDocID != nil {
			record[8] = strconv.FormatInt(*r.PaperlessDocID, 10)
		}
		if r.Confidence != nil {
			record[9] = germanDecimal(*r.Confidence, 2)
		}
		if r.NeedsReview != nil {
			record[10] = yesNo(*r.NeedsReview)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	logger.FromContext(ctx).Info("CSV export written", "rows", len(rows))
	return nil
}

// WriteXLSX writes a single-sheet workbook. Amounts and confidences stay numeric.
func (s *exportServiceImpl) WriteXLSX(ctx context.Context, w io.Writer, filter model.CostFilter) error {
	rows, err := s.costs.AllCosts(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(exportSheet, 1, 1, boldStyle)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(exportSheet, cell, v)
		}
		values := []any{
			textCell(r.Date), r.Kind, textCell(r.Vendor), r.Amount, r.Currency,
			textCell(r.Title), textCell(r.Category), textCell(r.Note), nil, nil, nil,
		}
		if r.PaperlessDocID != nil {
			values[8] = *r.PaperlessDocID
		}
		if r.Confidence != nil {
			values[9] = *r.Confidence
		}
		if r.NeedsReview != nil {
			values[10] = yesNo(*r.NeedsReview)
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := write(col+1, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(4, row)
		_ = f.SetCellStyle(exportSheet, cell, cell, amountStyle)
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 12)
	_ = f.SetColWidth(exportSheet, "C", "C", 32)
	_ = f.SetColWidth(exportSheet, "D", "E", 12)
	_ = f.SetColWidth(exportSheet, "F", "H", 28)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	logger.FromContext(ctx).Info("XLSX export written", "rows", len(rows))
	return nil
}

func textCell(s *string) string {
	if s == nil {
		return ""
	}
	return validation.SanitizeForFormulaInjection(*s)
}

func germanDecimal(v float64, places int) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', places, 64), ".", ",", 1)
}

func yesNo(b bool) string {
	if b {
		return "ja"
	}
	return "nein"
}
