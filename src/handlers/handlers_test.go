package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/poolcosts/backend/src/config"
	"github.com/username/poolcosts/backend/src/extraction"
	"github.com/username/poolcosts/backend/src/model"
	"github.com/username/poolcosts/backend/src/models"
	"github.com/username/poolcosts/backend/src/paperless"
	"github.com/username/poolcosts/backend/src/security/validation"
	"github.com/username/poolcosts/backend/src/services"
	"golang.org/x/time/rate"
)

type fakeSync struct {
	result *models.SyncResponse
	err    error
}

func (f *fakeSync) Run(ctx context.Context) (*models.SyncResponse, error) {
	return f.result, f.err
}

type fakeInvoices struct {
	lastFilter model.InvoiceFilter
	lastUpdate models.InvoiceUpdate
	updateErr  error
}

func (f *fakeInvoices) ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]models.InvoiceOut, error) {
	f.lastFilter = filter
	return []models.InvoiceOut{{ID: 1, PaperlessDocID: 10, Currency: "EUR"}}, nil
}

func (f *fakeInvoices) GetInvoice(ctx context.Context, id int64) (*models.InvoiceOut, error) {
	if id != 1 {
		return nil, model.ErrNotFound
	}
	return &models.InvoiceOut{ID: 1, PaperlessDocID: 10, Currency: "EUR"}, nil
}

func (f *fakeInvoices) UpdateInvoice(ctx context.Context, id int64, upd models.InvoiceUpdate) (*models.InvoiceOut, error) {
	f.lastUpdate = upd
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.InvoiceOut{ID: id, Vendor: upd.Vendor, VendorSource: model.SourceManual}, nil
}

type fakeCosts struct {
	created   models.ManualCostInput
	deleted   int64
	lastYear  int
	lastKind  string
	createErr error
}

func (f *fakeCosts) Summary(ctx context.Context, year int) (*models.SummaryOut, error) {
	f.lastYear = year
	return &models.SummaryOut{Year: year, TotalAmount: 1240, TopVendors: []models.NameAmount{}, CostsByCategory: []models.CategoryAmount{}}, nil
}

func (f *fakeCosts) AllCosts(ctx context.Context, filter model.CostFilter) ([]models.AllCostRow, error) {
	f.lastYear, f.lastKind = filter.Year, filter.Kind
	return []models.AllCostRow{}, nil
}

func (f *fakeCosts) ListManualCosts(ctx context.Context, year int) ([]models.ManualCostOut, error) {
	f.lastYear = year
	return []models.ManualCostOut{}, nil
}

func (f *fakeCosts) GetManualCost(ctx context.Context, id int64) (*models.ManualCostOut, error) {
	return nil, model.ErrNotFound
}

func (f *fakeCosts) CreateManualCost(ctx context.Context, in models.ManualCostInput) (*models.ManualCostOut, error) {
	f.created = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.ManualCostOut{ID: 5, Vendor: in.Vendor, Amount: in.Amount, Currency: "EUR"}, nil
}

func (f *fakeCosts) UpdateManualCost(ctx context.Context, id int64, in models.ManualCostInput) (*models.ManualCostOut, error) {
	return &models.ManualCostOut{ID: id, Vendor: in.Vendor, Amount: in.Amount}, nil
}

func (f *fakeCosts) DeleteManualCost(ctx context.Context, id int64) error {
	f.deleted = id
	return nil
}

func (f *fakeCosts) InvalidateSummaries() {}

type fakeExport struct {
	err error
}

func (f *fakeExport) WriteCSV(ctx context.Context, w io.Writer, filter model.CostFilter) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "Datum;Art\n")
	return err
}

func (f *fakeExport) WriteXLSX(ctx context.Context, w io.Writer, filter model.CostFilter) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("PK"))
	return err
}

type testAPI struct {
	handler  http.Handler
	sync     *fakeSync
	invoices *fakeInvoices
	costs    *fakeCosts
	export   *fakeExport
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ta := &testAPI{
		sync:     &fakeSync{result: &models.SyncResponse{Synced: 2, Inserted: 1, Skipped: 1, PoolTagID: 7}},
		invoices: &fakeInvoices{},
		costs:    &fakeCosts{},
		export:   &fakeExport{},
	}
	ta.handler = NewRouter(API{
		Extract:  NewExtractHandler(extraction.NewDefault(), 64*1024),
		Sync:     NewSyncHandler(ta.sync),
		Invoices: NewInvoiceHandler(ta.invoices),
		Costs:    NewCostHandler(ta.costs, ta.export),
	}, RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}})
	return ta
}

func (ta *testAPI) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthAndRequestID(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodGet, "/", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestExtractJSON(t *testing.T) {
	ta := newTestAPI(t)
	body := `{"text":"Rabatt -50,00 EUR\nSumme 450,00 EUR\nZu zahlen 450,00 EUR","correspondent":"ACME GmbH"}`
	rec := ta.do(t, http.MethodPost, "/api/extract", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Vendor      *string         `json:"vendor"`
		Amount      *float64        `json:"amount"`
		Currency    string          `json:"currency"`
		NeedsReview bool            `json:"needs_review"`
		Debug       json.RawMessage `json:"debug"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 450.0, *resp.Amount)
	require.NotNil(t, resp.Vendor)
	assert.Equal(t, "ACME GmbH", *resp.Vendor)
	assert.Equal(t, "EUR", resp.Currency)

	validator, err := extraction.NewTraceValidator()
	require.NoError(t, err)
	assert.NoError(t, validator.Validate(string(resp.Debug)))
}

func TestExtractInvalidBody(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodPost, "/api/extract", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, partType string, content []byte, correspondent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="rechnung.txt"`)
	h.Set("Content-Type", partType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("correspondent", correspondent))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestExtractMultipart(t *testing.T) {
	ta := newTestAPI(t)

	t.Run("text upload", func(t *testing.T) {
		body, ct := multipartBody(t, "text/plain", []byte("Summe 450,00 EUR\nZu zahlen 450,00 EUR"), "ACME GmbH")
		rec := ta.do(t, http.MethodPost, "/api/extract", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"amount":450`)
	})

	t.Run("binary upload rejected", func(t *testing.T) {
		body, ct := multipartBody(t, "text/plain", []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0x01}, "")
		rec := ta.do(t, http.MethodPost, "/api/extract", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("declared pdf rejected", func(t *testing.T) {
		body, ct := multipartBody(t, "application/pdf", []byte("Zu zahlen 1,00"), "")
		rec := ta.do(t, http.MethodPost, "/api/extract", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSyncErrors(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/sync", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"synced":2,"inserted":1,"updated":0,"skipped":1,"pool_tag_id":7}`, rec.Body.String())

	cases := []struct {
		err  error
		want int
	}{
		{services.ErrSyncInProgress, http.StatusConflict},
		{fmt.Errorf("find tag: %w", paperless.ErrTagNotFound), http.StatusNotFound},
		{&paperless.StatusError{StatusCode: http.StatusUnauthorized, URL: "http://paperless/api/tags/"}, http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		ta.sync.err = c.err
		rec := ta.do(t, http.MethodPost, "/api/sync", nil, "")
		assert.Equal(t, c.want, rec.Code, c.err.Error())
	}
}

func TestInvoiceRoutes(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/invoices?needs_review=true&vendor=acme&year=2025&limit=20&offset=40", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ta.invoices.lastFilter.NeedsReview)
	assert.True(t, *ta.invoices.lastFilter.NeedsReview)
	assert.Equal(t, "acme", ta.invoices.lastFilter.Vendor)
	assert.Equal(t, 2025, ta.invoices.lastFilter.Year)
	assert.Equal(t, 20, ta.invoices.lastFilter.Limit)
	assert.Equal(t, 40, ta.invoices.lastFilter.Offset)

	for _, bad := range []string{"needs_review=maybe", "year=abc", "limit=-1", "limit=501", "offset=-3"} {
		rec := ta.do(t, http.MethodGet, "/api/invoices?"+bad, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = ta.do(t, http.MethodGet, "/api/invoices/1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(t, http.MethodGet, "/api/invoices/2", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ta.do(t, http.MethodGet, "/api/invoices/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchInvoice(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPatch, "/api/invoices/1", strings.NewReader(`{"vendor":"Poolbau Nord","reset_fields":["amount"]}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, ta.invoices.lastUpdate.Vendor)
	assert.Equal(t, "Poolbau Nord", *ta.invoices.lastUpdate.Vendor)
	assert.Equal(t, []string{"amount"}, ta.invoices.lastUpdate.ResetFields)
	assert.Contains(t, rec.Body.String(), `"vendor_source":"manual"`)

	ta.invoices.updateErr = fmt.Errorf("%w: unknown reset field %q", services.ErrInvalidPatch, "title")
	rec = ta.do(t, http.MethodPatch, "/api/invoices/1", strings.NewReader(`{"reset_fields":["title"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "unknown reset field")

	rec = ta.do(t, http.MethodPatch, "/api/invoices/1", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualCostRoutes(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/manual-costs", strings.NewReader(`{"date":"2025-05-01","vendor":"Chlor Shop","amount":39.9,"currency":"EUR"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Chlor Shop", ta.costs.created.Vendor)
	assert.Equal(t, 39.9, ta.costs.created.Amount)

	ta.costs.createErr = fmt.Errorf("%w: amount must be positive", validation.ErrValidationFailed)
	rec = ta.do(t, http.MethodPost, "/api/manual-costs", strings.NewReader(`{"vendor":"x","amount":-1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/manual-costs?year=2024", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, ta.costs.lastYear)

	rec = ta.do(t, http.MethodGet, "/api/manual-costs/9", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(t, http.MethodPut, "/api/manual-costs/5", strings.NewReader(`{"vendor":"Chlor Shop","amount":41}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(t, http.MethodDelete, "/api/manual-costs/5", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(5), ta.costs.deleted)
}

func TestSummaryAndCosts(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/summary?year=2025", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2025, ta.costs.lastYear)
	assert.Contains(t, rec.Body.String(), `"total_amount":1240`)

	rec = ta.do(t, http.MethodGet, "/api/costs?kind=manual", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.KindManual, ta.costs.lastKind)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = ta.do(t, http.MethodGet, "/api/costs?kind=receipt", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExports(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/costs/export.csv?year=2025", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="poolkosten_2025.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Datum;Art\n", rec.Body.String())

	rec = ta.do(t, http.MethodGet, "/api/costs/export.xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="poolkosten.xlsx"`, rec.Header().Get("Content-Disposition"))

	ta.export.err = fmt.Errorf("boom")
	rec = ta.do(t, http.MethodGet, "/api/costs/export.csv", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestConfigHidesToken(t *testing.T) {
	previous := config.Cfg
	t.Cleanup(func() { config.Cfg = previous })
	config.Cfg = &config.AppConfig{
		PaperlessBaseURL: "http://paperless:8000",
		PaperlessToken:   "super-secret",
		PoolTagName:      "Pool",
		SchedulerEnabled: true,
	}

	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodGet, "/api/config", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pool_tag_name":"Pool"`)
	assert.NotContains(t, rec.Body.String(), "super-secret")
}

func TestCORS(t *testing.T) {
	ta := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/summary", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	handler := RateLimitMiddleware(rate.NewLimiter(rate.Limit(0.001), 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
