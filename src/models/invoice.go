package models

import (
	"time"

	"github.com/username/poolcosts/backend/src/model"
)

// InvoiceOut is the API view of a stored invoice.
type InvoiceOut struct {
	ID               int64      `json:"id"`
	Source           string     `json:"source"`
	PaperlessDocID   int64      `json:"paperless_doc_id"`
	PaperlessCreated *time.Time `json:"paperless_created"`
	Title            *string    `json:"title"`
	Vendor           *string    `json:"vendor"`
	Amount           *float64   `json:"amount"`
	Currency         string     `json:"currency"`
	Confidence       float64    `json:"confidence"`
	NeedsReview      bool       `json:"needs_review"`
	ExtractedAt      *time.Time `json:"extracted_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DebugJSON        *string    `json:"debug_json"`
	Correspondent    *string    `json:"correspondent"`
	DocumentType     *string    `json:"document_type"`
	OCRText          *string    `json:"ocr_text,omitempty"`
	OCRSnippet       *string    `json:"ocr_snippet"`
	VendorSource     string     `json:"vendor_source"`
	AmountSource     string     `json:"amount_source"`
}

// InvoiceUpdate is the PATCH /invoices/{id} body.
type InvoiceUpdate struct {
	Vendor      *string  `json:"vendor"`
	Amount      *float64 `json:"amount"`
	NeedsReview *bool    `json:"needs_review"`
	// ResetFields hands "vendor" and/or "amount" back to automatic extraction.
	ResetFields []string `json:"reset_fields"`
}

const ocrSnippetLength = 300

// NewInvoiceOut converts a stored invoice. The full OCR text is only included when withText is set.
func NewInvoiceOut(inv model.Invoice, withText bool) InvoiceOut {
	out := InvoiceOut{
		ID:               inv.ID,
		Source:           inv.Source,
		PaperlessDocID:   inv.PaperlessDocID,
		PaperlessCreated: inv.PaperlessCreated,
		Title:            optional(inv.Title),
		Vendor:           inv.Vendor,
		Currency:         inv.Currency,
		Confidence:       inv.Confidence,
		NeedsReview:      inv.NeedsReview,
		ExtractedAt:      inv.ExtractedAt,
		UpdatedAt:        inv.UpdatedAt,
		DebugJSON:        optional(inv.DebugJSON),
		Correspondent:    optional(inv.Correspondent),
		DocumentType:     optional(inv.DocumentType),
		VendorSource:     inv.VendorSource,
		AmountSource:     inv.AmountSource,
	}
	if inv.Amount.Valid {
		f := inv.Amount.Decimal.InexactFloat64()
		out.Amount = &f
	}
	if inv.OCRText != "" {
		snippet := inv.OCRText
		if r := []rune(snippet); len(r) > ocrSnippetLength {
			snippet = string(r[:ocrSnippetLength])
		}
		out.OCRSnippet = &snippet
		if withText {
			text := inv.OCRText
			out.OCRText = &text
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
