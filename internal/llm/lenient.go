package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// NormalizeSegmentation makes a core-segmentation answer schema-friendly in place:
//   - renames the "atoms" synonym to "atom"
//   - coerces a numeric-string "total" to a number
//   - derives a missing "total" from the atom count
//
// It returns the list of adjustments made, for logging.
func NormalizeSegmentation(m map[string]any, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	changed := make([]string, 0, 4)

	if v, ok := m["atoms"]; ok {
		if _, exists := m["atom"]; !exists {
			m["atom"] = v
			changed = append(changed, "atoms->atom")
		}
		delete(m, "atoms")
	}

	switch t := m["total"].(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			m["total"] = n
			changed = append(changed, "total(string)")
		}
	case float64:
		if t == math.Trunc(t) {
			m["total"] = int(t)
		}
	case nil:
		if atoms, ok := m["atom"].([]any); ok {
			m["total"] = len(atoms)
			changed = append(changed, "total(derived)")
		}
	}

	if len(changed) > 0 {
		logger.Warn("llm.segmentation.normalized", "changed", changed)
	}
	return changed
}

// AtomText renders one atom value as prompt-ready text. Strings pass through;
// any other JSON value is re-encoded.
func AtomText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
