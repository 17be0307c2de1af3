package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/paperless"
)

// Define common service errors
var (
	ErrSyncInProgress = errors.New("a sync run is already in progress")
	ErrInvalidPatch   = errors.New("invalid invoice update")
)

// DocumentSource is the part of the Paperless client the sync needs.
type DocumentSource interface {
	FindTagID(ctx context.Context, name string) (int64, error)
	ListDocuments(ctx context.Context, tagID int64, opts paperless.ListOptions) ([]paperless.Document, error)
}

// SyncService pulls tagged documents, extracts their fields and stores them.
type SyncService interface {
	Run(ctx context.Context) (*models.SyncResponse, error)
}

// InvoiceService reads and corrects stored invoices.
type InvoiceService interface {
	ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]models.InvoiceOut, error)
	GetInvoice(ctx context.Context, id int64) (*models.InvoiceOut, error)
	UpdateInvoice(ctx context.Context, id int64, upd models.InvoiceUpdate) (*models.InvoiceOut, error)
}

// CostService combines invoices and manual costs.
type CostService interface {
	Summary(ctx context.Context, year int) (*models.SummaryOut, error)
	AllCosts(ctx context.Context, filter model.CostFilter) ([]models.AllCostRow, error)

	ListManualCosts(ctx context.Context, year int) ([]models.ManualCostOut, error)
	GetManualCost(ctx context.Context, id int64) (*models.ManualCostOut, error)
	CreateManualCost(ctx context.Context, in models.ManualCostInput) (*models.ManualCostOut, error)
	UpdateManualCost(ctx context.Context, id int64, in models.ManualCostInput) (*models.ManualCostOut, error)
	DeleteManualCost(ctx context.Context, id int64) error

	// InvalidateSummaries drops every cached summary. Writers call it after changing costs.
	InvalidateSummaries()
}

// ExportService renders the combined cost list for spreadsheets.
type ExportService interface {
	WriteCSV(ctx context.Context, w io.Writer, filter model.CostFilter) error
	WriteXLSX(ctx context.Context, w io.Writer, filter model.CostFilter) error
}
