// Package table holds the six-column knowledge table produced by an extraction.
package table

import (
	"strings"
	"unicode"

	"github.com/joseph-ayodele/guideline-extractor/constants"
)

// Record is one row of the knowledge table. Absent fields are empty strings;
// JSON keys and their order are part of the API contract.
type Record struct {
	Entity    string `json:"entity"`
	Property  string `json:"property"`
	Value     string `json:"value"`
	EntityTag string `json:"entityTag"`
	ValueTag  string `json:"valueTag"`
	Level     string `json:"level"`
}

// Fields returns the record's values in column order.
func (r Record) Fields() []string {
	return []string{r.Entity, r.Property, r.Value, r.EntityTag, r.ValueTag, r.Level}
}

// FromFields builds a record from the first six fields, padding missing ones with "".
func FromFields(fields []string) Record {
	var f [6]string
	copy(f[:], fields)
	return Record{
		Entity:    f[0],
		Property:  f[1],
		Value:     f[2],
		EntityTag: f[3],
		ValueTag:  f[4],
		Level:     f[5],
	}
}

// Table is an ordered list of records under the fixed column schema.
type Table struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Empty returns a table with the column schema and zero rows.
func Empty() Table {
	return Table{
		Columns: append([]string(nil), constants.Columns...),
		Records: []Record{},
	}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Records) }

// Parse turns TAB-delimited lines into a table. Blank lines are dropped; every other
// line becomes exactly one record, truncated or padded to six fields. Row order follows
// line order and duplicates are kept.
func Parse(text string) Table {
	t := Empty()
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Leading/trailing TABs mark empty columns, so only other whitespace is trimmed:
		// "\tb\tc\td\te\tf" keeps an empty entity and "b" as the property.
		line = strings.TrimFunc(line, isNonTabSpace)
		t.Records = append(t.Records, FromFields(strings.Split(line, "\t")))
	}
	return t
}

func isNonTabSpace(r rune) bool {
	return r != '\t' && unicode.IsSpace(r)
}
