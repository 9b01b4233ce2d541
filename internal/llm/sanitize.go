package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/guideline-extractor/constants"
)

// NormalizeZones coerces zone values of a layout answer to strings in place, so the
// overall document can still validate. Only present keys are touched:
//   - null becomes ""
//   - a list of strings is joined with newlines
//   - numbers and booleans are formatted
//   - objects are re-encoded as JSON text
//
// Missing zones are left missing; the schema check reports them.
func NormalizeZones(m map[string]any, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var changed []string
	for _, z := range constants.AllZones {
		v, ok := m[z]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
		case nil:
			m[z] = ""
			changed = append(changed, z+"(null)")
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, AtomText(p))
			}
			m[z] = strings.Join(parts, "\n")
			changed = append(changed, z+"(list)")
		case float64, bool:
			m[z] = fmt.Sprint(t)
			changed = append(changed, z+"(scalar)")
		default:
			b, _ := json.Marshal(t)
			m[z] = string(b)
			changed = append(changed, z+"(object)")
		}
	}
	if len(changed) > 0 {
		logger.Warn("llm.layout.normalized", "changed", changed)
	}
	return changed
}
