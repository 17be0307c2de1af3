package model

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/poolcosts/backend/src/database"
	"github.com/username/poolcosts/backend/src/extraction"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testDocument(id int64, content string) Document {
	created := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	return Document{
		ID:            id,
		Content:       content,
		Correspondent: "ACME GmbH",
		Created:       &created,
		Title:         "Rechnung",
		DocumentType:  "Invoice",
	}
}

func TestApplyExtractionInsertsThenSkips(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	e := extraction.NewDefault()
	doc := testDocument(42, "Netto 100,00 EUR\nZu zahlen 119,00 EUR")
	res := e.Extract(doc.Content, doc.Correspondent)

	outcome, err := ApplyExtraction(ctx, db, doc, res, testNow)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)

	inv, err := GetInvoiceByDocID(ctx, db, 42)
	require.NoError(t, err)
	assert.Equal(t, SourceAuto, inv.VendorSource)
	assert.Equal(t, SourceAuto, inv.AmountSource)
	require.True(t, inv.Amount.Valid)
	assert.Equal(t, "119", inv.Amount.Decimal.String())
	require.NotNil(t, inv.Vendor)
	assert.Equal(t, "ACME GmbH", *inv.Vendor)
	assert.Equal(t, res.Debug.JSON(), inv.DebugJSON)
	require.NotNil(t, inv.PaperlessCreated)
	assert.True(t, doc.Created.Equal(*inv.PaperlessCreated))

	outcome, err = ApplyExtraction(ctx, db, doc, res, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	doc.Content = "Netto 100,00 EUR\nZu zahlen 238,00 EUR"
	outcome, err = ApplyExtraction(ctx, db, doc, e.Extract(doc.Content, doc.Correspondent), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	inv, err = GetInvoiceByDocID(ctx, db, 42)
	require.NoError(t, err)
	assert.Equal(t, "238", inv.Amount.Decimal.String())
	assert.True(t, inv.UpdatedAt.Equal(testNow.Add(time.Hour)))
}

func TestApplyExtractionKeepsManualFields(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	e := extraction.NewDefault()
	doc := testDocument(7, "Zu zahlen 50,00 EUR")

	_, err := ApplyExtraction(ctx, db, doc, e.Extract(doc.Content, doc.Correspondent), testNow)
	require.NoError(t, err)
	inv, err := GetInvoiceByDocID(ctx, db, 7)
	require.NoError(t, err)

	vendor := "Poolbau Nord"
	amount := decimal.RequireFromString("55.5")
	reviewed := false
	_, err = UpdateInvoice(ctx, db, inv.ID, InvoicePatch{Vendor: &vendor, Amount: &amount, NeedsReview: &reviewed}, testNow)
	require.NoError(t, err)

	doc.Content = "Zu zahlen 60,00 EUR\nGutschrift"
	outcome, err := ApplyExtraction(ctx, db, doc, e.Extract(doc.Content, ""), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	inv, err = GetInvoice(ctx, db, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Poolbau Nord", *inv.Vendor)
	assert.Equal(t, "55.5", inv.Amount.Decimal.String())
	assert.Equal(t, SourceManual, inv.VendorSource)
	assert.Equal(t, SourceManual, inv.AmountSource)
	assert.False(t, inv.NeedsReview, "review flag stays as the user left it")
	assert.Equal(t, doc.Content, inv.OCRText)
}

func TestUpdateInvoiceReset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	doc := testDocument(9, "Zu zahlen 80,00 EUR")
	res := extraction.NewDefault().Extract(doc.Content, doc.Correspondent)
	_, err := ApplyExtraction(ctx, db, doc, res, testNow)
	require.NoError(t, err)
	inv, err := GetInvoiceByDocID(ctx, db, 9)
	require.NoError(t, err)

	vendor := "Someone"
	_, err = UpdateInvoice(ctx, db, inv.ID, InvoicePatch{Vendor: &vendor}, testNow)
	require.NoError(t, err)

	got, err := UpdateInvoice(ctx, db, inv.ID, InvoicePatch{ResetVendor: true, AutoVendor: res.Vendor}, testNow)
	require.NoError(t, err)
	assert.Equal(t, SourceAuto, got.VendorSource)
	assert.Equal(t, "ACME GmbH", *got.Vendor)
}

func TestGetInvoiceNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetInvoice(context.Background(), db, 123)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = UpdateInvoice(context.Background(), db, 123, InvoicePatch{}, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListInvoicesFilters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	e := extraction.NewDefault()

	docs := []Document{
		testDocument(1, "Netto 1.000,00 EUR\nMwSt 190,00 EUR\nBrutto 1.190,00 EUR\nZahlbetrag 1.190,00 EUR"),
		testDocument(2, ""),
		testDocument(3, "Zahlbetrag 10,00 EUR"),
	}
	docs[2].Correspondent = "Chlor_Shop 100%"
	older := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	docs[2].Created = &older
	for _, d := range docs {
		_, err := ApplyExtraction(ctx, db, d, e.Extract(d.Content, d.Correspondent), testNow)
		require.NoError(t, err)
	}

	all, err := ListInvoices(ctx, db, InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[2].PaperlessDocID, "oldest last")

	review := true
	flagged, err := ListInvoices(ctx, db, InvoiceFilter{NeedsReview: &review})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, int64(2), flagged[0].PaperlessDocID)
	assert.False(t, flagged[0].Amount.Valid)

	byVendor, err := ListInvoices(ctx, db, InvoiceFilter{Vendor: "r_shop 100%"})
	require.NoError(t, err)
	require.Len(t, byVendor, 1)
	assert.Equal(t, int64(3), byVendor[0].PaperlessDocID)

	byYear, err := ListInvoices(ctx, db, InvoiceFilter{Year: 2024})
	require.NoError(t, err)
	assert.Len(t, byYear, 1)

	page, err := ListInvoices(ctx, db, InvoiceFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
