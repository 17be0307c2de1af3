package extraction

import (
	"regexp"
	"strings"
)

// Line is one cleaned line of OCR text and its best-effort byte offset in the source.
type Line struct {
	Text        string
	StartOffset int
}

var (
	lineBreakRe  = regexp.MustCompile(`\r\n|[\n\r\v\f\x{1c}\x{1d}\x{1e}\x{85}\x{2028}\x{2029}]`)
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// NormalizeLines splits text into trimmed, whitespace-collapsed, non-empty lines.
// Offsets come from a forward substring search; when a collapsed line no longer occurs
// verbatim, the previous cursor is used so offsets never decrease.
func NormalizeLines(text string) []Line {
	var lines []Line
	cursor := 0
	for _, raw := range lineBreakRe.Split(text, -1) {
		clean := strings.TrimSpace(whitespaceRe.ReplaceAllString(raw, " "))
		if clean == "" {
			continue
		}
		offset := cursor
		if idx := strings.Index(text[cursor:], clean); idx >= 0 {
			offset = cursor + idx
			cursor = offset + len(clean)
		}
		lines = append(lines, Line{Text: clean, StartOffset: offset})
	}
	return lines
}
