package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/poolcosts/backend/src/logger"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/security/validation"
)

const (
	ckSummary              = "summary_year_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	topVendorCount = 10
	unknownVendor  = "Unbekannt"
	uncategorised  = "Sonstiges"
)

type costServiceImpl struct {
	db           *sql.DB
	summaryCache *cache.Cache
	now          func() time.Time
}

func NewCostService(db *sql.DB, summaryCache *cache.Cache) CostService {
	if summaryCache == nil {
		summaryCache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	return &costServiceImpl{db: db, summaryCache: summaryCache, now: time.Now}
}

func (s *costServiceImpl) InvalidateSummaries() {
	s.summaryCache.Flush()
}

// Summary aggregates one year, or everything when year is 0.
func (s *costServiceImpl) Summary(ctx context.Context, year int) (*models.SummaryOut, error) {
	cacheKey := fmt.Sprintf(ckSummary, year)
	if cached, found := s.summaryCache.Get(cacheKey); found {
		logger.FromContext(ctx).Debug("Summary served from cache", "year", year)
		summary := cached.(models.SummaryOut)
		return &summary, nil
	}

	rows, err := model.ListCostRows(ctx, s.db, model.CostFilter{Year: year})
	if err != nil {
		return nil, err
	}
	reviewCount, err := model.CountNeedsReview(ctx, s.db, year)
	if err != nil {
		return nil, err
	}

	summary := summarize(rows)
	summary.Year = year
	summary.NeedsReviewCount = reviewCount

	s.summaryCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return &summary, nil
}

func summarize(rows []model.CostRow) models.SummaryOut {
	invoiceTotal, manualTotal := decimal.Zero, decimal.Zero
	byVendor := map[string]decimal.Decimal{}
	byCategory := map[string]decimal.Decimal{}
	out := models.SummaryOut{TopVendors: []models.NameAmount{}, CostsByCategory: []models.CategoryAmount{}}

	for _, r := range rows {
		vendor := unknownVendor
		if r.Vendor != nil && *r.Vendor != "" {
			vendor = *r.Vendor
		}
		byVendor[vendor] = byVendor[vendor].Add(r.Amount)

		switch r.Kind {
		case model.KindInvoice:
			invoiceTotal = invoiceTotal.Add(r.Amount)
			out.InvoiceCount++
		case model.KindManual:
			manualTotal = manualTotal.Add(r.Amount)
			out.ManualCostCount++
			category := uncategorised
			if r.Category != nil && *r.Category != "" {
				category = *r.Category
			}
			byCategory[category] = byCategory[category].Add(r.Amount)
		}
	}

	out.PaperlessTotal = invoiceTotal.InexactFloat64()
	out.ManualTotal = manualTotal.InexactFloat64()
	out.TotalAmount = invoiceTotal.Add(manualTotal).InexactFloat64()

	for _, name := range sortedByAmount(byVendor) {
		if len(out.TopVendors) == topVendorCount {
			break
		}
		out.TopVendors = append(out.TopVendors, models.NameAmount{Name: name, Amount: byVendor[name].InexactFloat64()})
	}
	for _, name := range sortedByAmount(byCategory) {
		out.CostsByCategory = append(out.CostsByCategory, models.CategoryAmount{Category: name, Amount: byCategory[name].InexactFloat64()})
	}
	return out
}

// sortedByAmount orders keys by amount descending, then name.
func sortedByAmount(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := m[keys[i]].Cmp(m[keys[j]]); c != 0 {
			return c > 0
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (s *costServiceImpl) AllCosts(ctx context.Context, filter model.CostFilter) ([]models.AllCostRow, error) {
	rows, err := model.ListCostRows(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.AllCostRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.NewAllCostRow(r))
	}
	return out, nil
}

func (s *costServiceImpl) ListManualCosts(ctx context.Context, year int) ([]models.ManualCostOut, error) {
	costs, err := model.ListManualCosts(ctx, s.db, year)
	if err != nil {
		return nil, err
	}
	out := make([]models.ManualCostOut, 0, len(costs))
	for _, mc := range costs {
		out = append(out, models.NewManualCostOut(mc))
	}
	return out, nil
}

func (s *costServiceImpl) GetManualCost(ctx context.Context, id int64) (*models.ManualCostOut, error) {
	mc, err := model.GetManualCost(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out := models.NewManualCostOut(*mc)
	return &out, nil
}

func (s *costServiceImpl) CreateManualCost(ctx context.Context, in models.ManualCostInput) (*models.ManualCostOut, error) {
	mc, err := s.validateManualCost(in)
	if err != nil {
		return nil, err
	}
	if err := model.CreateManualCost(ctx, s.db, mc, s.now()); err != nil {
		return nil, err
	}
	s.InvalidateSummaries()
	logger.FromContext(ctx).Info("Manual cost created", "id", mc.ID, "amount", mc.Amount.String())
	out := models.NewManualCostOut(*mc)
	return &out, nil
}

func (s *costServiceImpl) UpdateManualCost(ctx context.Context, id int64, in models.ManualCostInput) (*models.ManualCostOut, error) {
	existing, err := model.GetManualCost(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	mc, err := s.validateManualCost(in)
	if err != nil {
		return nil, err
	}
	mc.ID = existing.ID
	mc.Source = existing.Source
	mc.CreatedAt = existing.CreatedAt
	if err := model.UpdateManualCost(ctx, s.db, mc, s.now()); err != nil {
		return nil, err
	}
	s.InvalidateSummaries()
	out := models.NewManualCostOut(*mc)
	return &out, nil
}

func (s *costServiceImpl) DeleteManualCost(ctx context.Context, id int64) error {
	if err := model.DeleteManualCost(ctx, s.db, id); err != nil {
		return err
	}
	s.InvalidateSummaries()
	logger.FromContext(ctx).Info("Manual cost deleted", "id", id)
	return nil
}

func (s *costServiceImpl) validateManualCost(in models.ManualCostInput) (*model.ManualCost, error) {
	date, err := validation.ValidateDateString(in.Date, "date", s.now())
	if err != nil {
		return nil, err
	}
	vendor, err := validation.ValidateVendor(in.Vendor)
	if err != nil {
		return nil, err
	}
	amount, err := validation.ValidateAmount(in.Amount, "amount")
	if err != nil {
		return nil, err
	}
	currency, err := validation.ValidateCurrencyCode(in.Currency)
	if err != nil {
		return nil, err
	}
	category, err := validation.ValidateOptionalText(in.Category, validation.MaxCategoryLength, "category")
	if err != nil {
		return nil, err
	}
	note, err := validation.ValidateOptionalText(in.Note, validation.MaxNoteLength, "note")
	if err != nil {
		return nil, err
	}
	return &model.ManualCost{
		Source:   "manual",
		Date:     date,
		Vendor:   vendor,
		Amount:   amount,
		Currency: currency,
		Category: category,
		Note:     note,
	}, nil
}
