package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/poolcosts/backend/src/models"
)

func runExtract(t *testing.T, stdin string, args ...string) models.ExtractResponse {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"extract"}, args...))
	require.NoError(t, cmd.Execute())

	var resp models.ExtractResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp
}

func TestExtractCommandPrintsAllCandidates(t *testing.T) {
	text := "Netto 1.000,00 EUR\nMwSt 190,00 EUR\nZu zahlen 1.190,00 EUR"
	path := filepath.Join(t.TempDir(), "rechnung.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	resp := runExtract(t, "", "--candidates", "--correspondent", "ACME GmbH", path)
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 1190.0, *resp.Amount)
	require.Len(t, resp.Candidates, 3)
	assert.Equal(t, 1190.0, resp.Candidates[0].Value)
	require.NotNil(t, resp.Candidates[0].ClosestKeyword)
	assert.Equal(t, "zu zahlen", *resp.Candidates[0].ClosestKeyword)
	for i := 1; i < len(resp.Candidates); i++ {
		assert.GreaterOrEqual(t, resp.Candidates[i-1].Score, resp.Candidates[i].Score)
	}
}

func TestExtractCommandReadsStdin(t *testing.T) {
	resp := runExtract(t, "Zu zahlen 45,50 EUR", "--correspondent", "Chlor Shop")
	require.NotNil(t, resp.Amount)
	assert.Equal(t, 45.5, *resp.Amount)
	assert.Empty(t, resp.Candidates)
}
