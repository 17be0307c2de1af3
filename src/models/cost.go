package models

import (
	"time"

	"github.com/username/poolcosts/backend/src/model"
)

// ManualCostInput is the body of POST and PUT /manual-costs. Date defaults to today.
type ManualCostInput struct {
	Date     string  `json:"date"`
	Vendor   string  `json:"vendor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Category *string `json:"category"`
	Note     *string `json:"note"`
}

type ManualCostOut struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Date      string    `json:"date"`
	Vendor    string    `json:"vendor"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Category  *string   `json:"category"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewManualCostOut(mc model.ManualCost) ManualCostOut {
	return ManualCostOut{
		ID:        mc.ID,
		Source:    mc.Source,
		Date:      mc.Date.Format(model.DateLayout),
		Vendor:    mc.Vendor,
		Amount:    mc.Amount.InexactFloat64(),
		Currency:  mc.Currency,
		Category:  mc.Category,
		Note:      mc.Note,
		CreatedAt: mc.CreatedAt,
		UpdatedAt: mc.UpdatedAt,
	}
}

// AllCostRow is one entry of GET /costs.
type AllCostRow struct {
	Kind           string   `json:"kind"`
	ID             int64    `json:"id"`
	Date           *string  `json:"date"`
	Vendor         *string  `json:"vendor"`
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	Title          *string  `json:"title"`
	Category       *string  `json:"category"`
	Note           *string  `json:"note"`
	PaperlessDocID *int64   `json:"paperless_doc_id"`
	Confidence     *float64 `json:"confidence"`
	NeedsReview    *bool    `json:"needs_review"`
}

func NewAllCostRow(r model.CostRow) AllCostRow {
	return AllCostRow{
		Kind:           r.Kind,
		ID:             r.ID,
		Date:           optional(r.Date),
		Vendor:         r.Vendor,
		Amount:         r.Amount.InexactFloat64(),
		Currency:       r.Currency,
		Title:          r.Title,
		Category:       r.Category,
		Note:           r.Note,
		PaperlessDocID: r.PaperlessDocID,
		Confidence:     r.Confidence,
		NeedsReview:    r.NeedsReview,
	}
}

type NameAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// SummaryOut aggregates all costs of one year, or of all years when Year is 0.
type SummaryOut struct {
	Year             int              `json:"year,omitempty"`
	TotalAmount      float64          `json:"total_amount"`
	PaperlessTotal   float64          `json:"paperless_total"`
	ManualTotal      float64          `json:"manual_total"`
	InvoiceCount     int              `json:"invoice_count"`
	ManualCostCount  int              `json:"manual_cost_count"`
	NeedsReviewCount int              `json:"needs_review_count"`
	TopVendors       []NameAmount     `json:"top_vendors"`
	CostsByCategory  []CategoryAmount `json:"costs_by_category"`
}

type SyncResponse struct {
	Synced    int   `json:"synced"`
	Inserted  int   `json:"inserted"`
	Updated   int   `json:"updated"`
	Skipped   int   `json:"skipped"`
	PoolTagID int64 `json:"pool_tag_id"`
}

// ConfigOut lists the non-secret runtime settings.
type ConfigOut struct {
	PaperlessBaseURL         string `json:"paperless_base_url"`
	PoolTagName              string `json:"pool_tag_name"`
	SchedulerEnabled         bool   `json:"scheduler_enabled"`
	SchedulerIntervalMinutes int    `json:"scheduler_interval_minutes"`
	SchedulerRunOnStartup    bool   `json:"scheduler_run_on_startup"`
	SyncLookbackDays         int    `json:"sync_lookback_days"`
}
