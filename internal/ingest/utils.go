package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/guideline-extractor/constants"
)

// AllowedExt checks if a file extension is in the allowed set (pdf/txt/md).
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
