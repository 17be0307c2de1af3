package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "second run is a no-op")

	for _, table := range []string{"invoices", "manual_costs"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}

	var vendorSource string
	_, err = db.Exec(`INSERT INTO invoices (paperless_doc_id, updated_at) VALUES (1, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow(`SELECT vendor_source FROM invoices WHERE paperless_doc_id = 1`).Scan(&vendorSource))
	assert.Equal(t, "auto", vendorSource)
}
