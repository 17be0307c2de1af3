package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cost row kinds.
const (
	KindInvoice = "invoice"
	KindManual  = "manual"
)

// CostRow is one line of the combined invoice and manual cost list.
type CostRow struct {
	Kind           string
	ID             int64
	Date           string
	Vendor         *string
	Amount         decimal.Decimal
	Currency       string
	Title          *string
	Category       *string
	Note           *string
	PaperlessDocID *int64
	Confidence     *float64
	NeedsReview    *bool
}

// CostFilter narrows ListCostRows. Kind is "", KindInvoice or KindManual.
type CostFilter struct {
	Year int
	Kind string
}

const costUnionQuery = `
SELECT kind, id, date, vendor, amount, currency, title, category, note, paperless_doc_id, confidence, needs_review
FROM (
	SELECT 'invoice' AS kind, id, substr(COALESCE(paperless_created, updated_at), 1, 10) AS date, vendor, amount,
		currency, title, NULL AS category, NULL AS note, paperless_doc_id, confidence, needs_review
	FROM invoices
	WHERE amount IS NOT NULL
	UNION ALL
	SELECT 'manual' AS kind, id, date, vendor, amount, currency, NULL AS title, category, note,
		NULL AS paperless_doc_id, NULL AS confidence, NULL AS needs_review
	FROM manual_costs
)`

// ListCostRows returns invoices with an amount together with manual costs, newest first.
func ListCostRows(ctx context.Context, q DBTX, f CostFilter) ([]CostRow, error) {
	var where []string
	var args []any
	if f.Year > 0 {
		where = append(where, "substr(date, 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	query := costUnionQuery
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, kind ASC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list costs: %w", err)
	}
	defer rows.Close()

	out := []CostRow{}
	for rows.Next() {
		var r CostRow
		var date, vendor, title, category, note sql.NullString
		var docID sql.NullInt64
		var confidence sql.NullFloat64
		var needsReview sql.NullInt64
		if err := rows.Scan(&r.Kind, &r.ID, &date, &vendor, &r.Amount, &r.Currency, &title, &category,
			&note, &docID, &confidence, &needsReview); err != nil {
			return nil, fmt.Errorf("scan cost row: %w", err)
		}
		r.Date = date.String
		r.Vendor = nullString(vendor)
		r.Title = nullString(title)
		r.Category = nullString(category)
		r.Note = nullString(note)
		if docID.Valid {
			r.PaperlessDocID = &docID.Int64
		}
		if confidence.Valid {
			r.Confidence = &confidence.Float64
		}
		if needsReview.Valid {
			b := needsReview.Int64 != 0
			r.NeedsReview = &b
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountNeedsReview counts invoices flagged for review, optionally within one year.
func CountNeedsReview(ctx context.Context, q DBTX, year int) (int, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE needs_review = 1`
	var args []any
	if year > 0 {
		query += ` AND substr(COALESCE(paperless_created, updated_at), 1, 4) = ?`
		args = append(args, fmt.Sprintf("%04d", year))
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invoices needing review: %w", err)
	}
	return n, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
