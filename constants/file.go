package constants

import "strings"

// Formats understood by the document reader.
const (
	PDF  = "PDF"
	TEXT = "TEXT"
)

// AllowedExtensions holds the file extensions accepted for extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
	"txt": {},
	"md":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF or TEXT for a supported extension, "" otherwise.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "txt", "md":
		return TEXT
	default:
		return ""
	}
}

// IsAllowedExt reports whether ext (with or without dot) can be extracted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
