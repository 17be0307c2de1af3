package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/username/poolcosts/backend/src/extraction"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/security/validation"
)

type invoiceServiceImpl struct {
	db        *sql.DB
	extractor *extraction.Extractor
	costs     CostService
	now       func() time.Time
}

func NewInvoiceService(db *sql.DB, extractor *extraction.Extractor, costs CostService) InvoiceService {
	return &invoiceServiceImpl{db: db, extractor: extractor, costs: costs, now: time.Now}
}

func (s *invoiceServiceImpl) ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]models.InvoiceOut, error) {
	invoices, err := model.ListInvoices(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.InvoiceOut, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, models.NewInvoiceOut(inv, false))
	}
	return out, nil
}

func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, id int64) (*models.InvoiceOut, error) {
	inv, err := model.GetInvoice(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out := models.NewInvoiceOut(*inv, true)
	return &out, nil
}

// UpdateInvoice applies a manual correction. Fields named in ResetFields are
// re-extracted from the stored OCR text and go back to automatic provenance.
func (s *invoiceServiceImpl) UpdateInvoice(ctx context.Context, id int64, upd models.InvoiceUpdate) (*models.InvoiceOut, error) {
	patch := model.InvoicePatch{NeedsReview: upd.NeedsReview}

	for _, field := range upd.ResetFields {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "vendor":
			patch.ResetVendor = true
		case "amount":
			patch.ResetAmount = true
		default:
			return nil, fmt.Errorf("%w: unknown reset field %q", ErrInvalidPatch, field)
		}
	}
	if upd.Vendor != nil {
		if patch.ResetVendor {
			return nil, fmt.Errorf("%w: vendor cannot be set and reset at once", ErrInvalidPatch)
		}
		vendor, err := validation.ValidateVendor(*upd.Vendor)
		if err != nil {
			return nil, err
		}
		patch.Vendor = &vendor
	}
	if upd.Amount != nil {
		if patch.ResetAmount {
			return nil, fmt.Errorf("%w: amount cannot be set and reset at once", ErrInvalidPatch)
		}
		amount, err := validation.ValidateAmount(*upd.Amount, "amount")
		if err != nil {
			return nil, err
		}
		patch.Amount = &amount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin invoice update: %w", err)
	}
	defer tx.Rollback()

	if patch.ResetVendor || patch.ResetAmount {
		stored, err := model.GetInvoice(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		res := s.extractor.Extract(stored.OCRText, stored.Correspondent)
		patch.AutoVendor = res.Vendor
		patch.AutoAmount = res.Amount
	}

	inv, err := model.UpdateInvoice(ctx, tx, id, patch, s.now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invoice update: %w", err)
	}
	if s.costs != nil {
		s.costs.InvalidateSummaries()
	}
	logger.FromContext(ctx).Info("Invoice updated", "id", id,
		"vendorSource", inv.VendorSource, "amountSource", inv.AmountSource, "needsReview", inv.NeedsReview)

	out := models.NewInvoiceOut(*inv, true)
	return &out, nil
}
