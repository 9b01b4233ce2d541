package export

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// XLSXName derives the workbook name for a source document: "guide.pdf" -> "guide.xlsx".
func XLSXName(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "extraction.xlsx"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
