package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLines(t *testing.T) {
	text := "  Poolservice   GmbH \r\n\r\n\tZu zahlen 10,00 EUR\rSeite 1\n   \n"
	lines := NormalizeLines(text)
	require.Len(t, lines, 3)

	assert.Equal(t, "Poolservice GmbH", lines[0].Text)
	assert.Equal(t, "Zu zahlen 10,00 EUR", lines[1].Text)
	assert.Equal(t, "Seite 1", lines[2].Text)
}

func TestNormalizeLinesOffsets(t *testing.T) {
	text := "Kopf\n  Summe 5,00\nSumme 5,00"
	lines := NormalizeLines(text)
	require.Len(t, lines, 3)

	assert.Equal(t, 0, lines[0].StartOffset)
	assert.Equal(t, 7, lines[1].StartOffset)
	assert.Equal(t, 18, lines[2].StartOffset, "repeated text is found after the cursor")
	for _, l := range lines {
		assert.Equal(t, l.Text, text[l.StartOffset:l.StartOffset+len(l.Text)])
	}
}

func TestNormalizeLinesOffsetFallbackIsMonotonic(t *testing.T) {
	text := "A  B\nC    D\nE"
	lines := NormalizeLines(text)
	require.Len(t, lines, 3)

	assert.Equal(t, 0, lines[0].StartOffset, "collapsed line falls back to the cursor")
	assert.Equal(t, 0, lines[1].StartOffset)
	assert.Equal(t, 12, lines[2].StartOffset)
	for i := 1; i < len(lines); i++ {
		assert.GreaterOrEqual(t, lines[i].StartOffset, lines[i-1].StartOffset)
	}
}

func TestNormalizeLinesEmpty(t *testing.T) {
	assert.Empty(t, NormalizeLines(""))
	assert.Empty(t, NormalizeLines(" \n\t\n "))
}
