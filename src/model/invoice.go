package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/poolcosts/backend/src/extraction"
)

// Field provenance for vendor and amount.
const (
	SourceAuto   = "auto"
	SourceManual = "manual"
)

var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Invoice is a Paperless document together with its extracted fields.
type Invoice struct {
	ID               int64
	Source           string
	PaperlessDocID   int64
	PaperlessCreated *time.Time
	Title            string
	Vendor           *string
	Amount           decimal.NullDecimal
	Currency         string
	Confidence       float64
	NeedsReview      bool
	ExtractedAt      *time.Time
	UpdatedAt        time.Time
	DebugJSON        string
	Correspondent    string
	DocumentType     string
	OCRText          string
	VendorSource     string
	AmountSource     string
}

// HasManualField reports whether a user has corrected vendor or amount.
func (inv *Invoice) HasManualField() bool {
	return inv.VendorSource == SourceManual || inv.AmountSource == SourceManual
}

// Document is the source-side view of an invoice handed to ApplyExtraction.
type Document struct {
	ID            int64
	Content       string
	Correspondent string
	Created       *time.Time
	Title         string
	DocumentType  string
}

// ApplyOutcome tells a sync run what ApplyExtraction did with a document.
type ApplyOutcome int

const (
	OutcomeInserted ApplyOutcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

const invoiceColumns = `id, source, paperless_doc_id, paperless_created, title, vendor, amount, currency,
	confidence, needs_review, extracted_at, updated_at, debug_json, correspondent, document_type,
	ocr_text, vendor_source, amount_source`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s rowScanner) (*Invoice, error) {
	var inv Invoice
	var created, extractedAt, title, vendor, debugJSON, correspondent, docType sql.NullString
	var updatedAt string
	if err := s.Scan(
		&inv.ID, &inv.Source, &inv.PaperlessDocID, &created, &title, &vendor, &inv.Amount, &inv.Currency,
		&inv.Confidence, &inv.NeedsReview, &extractedAt, &updatedAt, &debugJSON, &correspondent, &docType,
		&inv.OCRText, &inv.VendorSource, &inv.AmountSource,
	); err != nil {
		return nil, err
	}
	inv.PaperlessCreated = parseTime(created)
	inv.ExtractedAt = parseTime(extractedAt)
	if t := parseTime(sql.NullString{String: updatedAt, Valid: true}); t != nil {
		inv.UpdatedAt = *t
	}
	inv.Title = title.String
	if vendor.Valid {
		v := vendor.String
		inv.Vendor = &v
	}
	inv.DebugJSON = debugJSON.String
	inv.Correspondent = correspondent.String
	inv.DocumentType = docType.String
	return &inv, nil
}

// GetInvoice loads one invoice by primary key.
func GetInvoice(ctx context.Context, q DBTX, id int64) (*Invoice, error) {
	row := q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

// GetInvoiceByDocID loads the invoice for a Paperless document id.
func GetInvoiceByDocID(ctx context.Context, q DBTX, docID int64) (*Invoice, error) {
	row := q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE paperless_doc_id = ?`, docID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

// InvoiceFilter narrows ListInvoices. Zero values mean "any".
type InvoiceFilter struct {
	NeedsReview *bool
	Vendor      string
	Year        int
	Limit       int
	Offset      int
}

// ListInvoices returns invoices newest first.
func ListInvoices(ctx context.Context, q DBTX, f InvoiceFilter) ([]Invoice, error) {
	var where []string
	var args []any
	if f.NeedsReview != nil {
		where = append(where, "needs_review = ?")
		args = append(args, *f.NeedsReview)
	}
	if v := strings.TrimSpace(f.Vendor); v != "" {
		where = append(where, "vendor LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(v)+"%")
	}
	if f.Year > 0 {
		where = append(where, "substr(COALESCE(paperless_created, updated_at), 1, 4) = ?")
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY COALESCE(paperless_created, updated_at) DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// ApplyExtraction stores the engine result for doc. Vendor and amount are only
// written while their provenance is auto, and needs_review is left alone once a user
// has corrected either field. Unchanged documents are reported as skipped.
func ApplyExtraction(ctx context.Context, q DBTX, doc Document, res extraction.Result, now time.Time) (ApplyOutcome, error) {
	existing, err := GetInvoiceByDocID(ctx, q, doc.ID)
	if errors.Is(err, ErrNotFound) {
		inv := Invoice{
			Source:           "paperless",
			PaperlessDocID:   doc.ID,
			PaperlessCreated: doc.Created,
			Title:            doc.Title,
			Vendor:           res.Vendor,
			Amount:           res.Amount,
			Currency:         res.Currency,
			Confidence:       res.Confidence,
			NeedsReview:      res.NeedsReview,
			ExtractedAt:      &now,
			UpdatedAt:        now,
			DebugJSON:        res.Debug.JSON(),
			Correspondent:    doc.Correspondent,
			DocumentType:     doc.DocumentType,
			OCRText:          doc.Content,
			VendorSource:     SourceAuto,
			AmountSource:     SourceAuto,
		}
		if err := insertInvoice(ctx, q, &inv); err != nil {
			return OutcomeInserted, err
		}
		return OutcomeInserted, nil
	}
	if err != nil {
		return OutcomeSkipped, err
	}

	next := *existing
	next.PaperlessCreated = doc.Created
	next.Title = doc.Title
	next.Correspondent = doc.Correspondent
	next.DocumentType = doc.DocumentType
	next.OCRText = doc.Content
	next.Currency = res.Currency
	next.Confidence = res.Confidence
	next.DebugJSON = res.Debug.JSON()
	if existing.VendorSource == SourceAuto {
		next.Vendor = res.Vendor
	}
	if existing.AmountSource == SourceAuto {
		next.Amount = res.Amount
	}
	if !existing.HasManualField() {
		next.NeedsReview = res.NeedsReview
	}

	if sameStoredContent(existing, &next) {
		return OutcomeSkipped, nil
	}
	next.ExtractedAt = &now
	next.UpdatedAt = now
	if err := updateInvoice(ctx, q, &next); err != nil {
		return OutcomeUpdated, err
	}
	return OutcomeUpdated, nil
}

func sameStoredContent(a, b *Invoice) bool {
	return sameTime(a.PaperlessCreated, b.PaperlessCreated) &&
		a.Title == b.Title &&
		a.Correspondent == b.Correspondent &&
		a.DocumentType == b.DocumentType &&
		a.OCRText == b.OCRText &&
		a.Currency == b.Currency &&
		a.Confidence == b.Confidence &&
		a.DebugJSON == b.DebugJSON &&
		a.NeedsReview == b.NeedsReview &&
		sameString(a.Vendor, b.Vendor) &&
		sameAmount(a.Amount, b.Amount)
}

// InvoicePatch is a manual correction. Setting Vendor or Amount marks the field
// manual; the Reset flags hand a field back to automation with the given auto value.
type InvoicePatch struct {
	Vendor      *string
	Amount      *decimal.Decimal
	NeedsReview *bool

	ResetVendor bool
	AutoVendor  *string
	ResetAmount bool
	AutoAmount  decimal.NullDecimal
}

// UpdateInvoice applies patch to the invoice with the given id.
func UpdateInvoice(ctx context.Context, q DBTX, id int64, patch InvoicePatch, now time.Time) (*Invoice, error) {
	inv, err := GetInvoice(ctx, q, id)
	if err != nil {
		return nil, err
	}

	if patch.ResetVendor {
		inv.Vendor = patch.AutoVendor
		inv.VendorSource = SourceAuto
	}
	if patch.ResetAmount {
		inv.Amount = patch.AutoAmount
		inv.AmountSource = SourceAuto
	}
	if patch.Vendor != nil {
		v := *patch.Vendor
		inv.Vendor = &v
		inv.VendorSource = SourceManual
	}
	if patch.Amount != nil {
		inv.Amount = decimal.NewNullDecimal(*patch.Amount)
		inv.AmountSource = SourceManual
	}
	if patch.NeedsReview != nil {
		inv.NeedsReview = *patch.NeedsReview
	}

	inv.UpdatedAt = now
	if err := updateInvoice(ctx, q, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func insertInvoice(ctx context.Context, q DBTX, inv *Invoice) error {
	res, err := q.ExecContext(ctx, `
	INSERT INTO invoices (source, paperless_doc_id, paperless_created, title, vendor, amount, currency,
		confidence, needs_review, extracted_at, updated_at, debug_json, correspondent, document_type,
		ocr_text, vendor_source, amount_source)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Source, inv.PaperlessDocID, formatTime(inv.PaperlessCreated), inv.Title, inv.Vendor, inv.Amount,
		inv.Currency, inv.Confidence, inv.NeedsReview, formatTime(inv.ExtractedAt), formatTime(&inv.UpdatedAt),
		inv.DebugJSON, inv.Correspondent, inv.DocumentType, inv.OCRText, inv.VendorSource, inv.AmountSource,
	)
	if err != nil {
		return fmt.Errorf("insert invoice for document %d: %w", inv.PaperlessDocID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = id
	return nil
}

func updateInvoice(ctx context.Context, q DBTX, inv *Invoice) error {
	_, err := q.ExecContext(ctx, `
	UPDATE invoices SET paperless_created = ?, title = ?, vendor = ?, amount = ?, currency = ?,
		confidence = ?, needs_review = ?, extracted_at = ?, updated_at = ?, debug_json = ?,
		correspondent = ?, document_type = ?, ocr_text = ?, vendor_source = ?, amount_source = ?
	WHERE id = ?`,
		formatTime(inv.PaperlessCreated), inv.Title, inv.Vendor, inv.Amount, inv.Currency,
		inv.Confidence, inv.NeedsReview, formatTime(inv.ExtractedAt), formatTime(&inv.UpdatedAt), inv.DebugJSON,
		inv.Correspondent, inv.DocumentType, inv.OCRText, inv.VendorSource, inv.AmountSource,
		inv.ID,
	)
	if err != nil {
		return fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	return nil
}
