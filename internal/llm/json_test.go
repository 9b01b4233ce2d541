package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONObject(t *testing.T) {
	for _, in := range []string{
		`{"total": 2}`,
		"```json\n{\"total\": 2}\n```",
		"```\n{\"total\": 2}\n```",
		"  {\"total\": 2}  ",
	} {
		m, err := ParseJSONObject(in, nil)
		require.NoError(t, err, in)
		assert.EqualValues(t, 2, m["total"])
	}
}

func TestParseJSONObject_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", "[1,2]", "null", `{"a":`} {
		m, err := ParseJSONObject(in, nil)
		assert.Nil(t, m, in)
		assert.True(t, errors.Is(err, ErrMalformedResult), in)
	}
}

func TestNormalizeZones(t *testing.T) {
	m := map[string]any{
		"base":      "title",
		"core":      []any{"rec 1", "rec 2"},
		"evidence":  nil,
		"other":     float64(3),
		"reference": map[string]any{"a": "b"},
	}
	changed := NormalizeZones(m, nil)
	assert.Len(t, changed, 4)
	assert.Equal(t, "title", m["base"])
	assert.Equal(t, "rec 1\nrec 2", m["core"])
	assert.Equal(t, "", m["evidence"])
	assert.Equal(t, "3", m["other"])
	assert.Equal(t, `{"a":"b"}`, m["reference"])
	require.NoError(t, NewValidator("layout.json", LayoutSchema).Validate(m))
}

func TestLayoutSchema_MissingZoneFails(t *testing.T) {
	v := NewValidator("layout.json", LayoutSchema)
	m := map[string]any{"base": "", "core": "", "evidence": "", "other": ""}
	NormalizeZones(m, nil)
	assert.Error(t, v.Validate(m))
}

func TestNormalizeSegmentation(t *testing.T) {
	t.Run("synonym and string total", func(t *testing.T) {
		m := map[string]any{"atoms": []any{"a", "b"}, "total": " 2 "}
		changed := NormalizeSegmentation(m, nil)
		assert.ElementsMatch(t, []string{"atoms->atom", "total(string)"}, changed)
		assert.Equal(t, 2, m["total"])
		_, hasSynonym := m["atoms"]
		assert.False(t, hasSynonym)
		require.NoError(t, NewValidator("seg.json", SegmentationSchema).Validate(m))
	})
	t.Run("derived total", func(t *testing.T) {
		m := map[string]any{"atom": []any{"a", "b", "c"}}
		NormalizeSegmentation(m, nil)
		assert.Equal(t, 3, m["total"])
	})
	t.Run("float total is integral", func(t *testing.T) {
		m := map[string]any{"atom": []any{}, "total": float64(0)}
		assert.Empty(t, NormalizeSegmentation(m, nil))
		require.NoError(t, NewValidator("seg.json", SegmentationSchema).Validate(m))
	})
	t.Run("non-numeric total fails validation", func(t *testing.T) {
		m := map[string]any{"atom": []any{"a"}, "total": "many"}
		NormalizeSegmentation(m, nil)
		assert.Error(t, NewValidator("seg.json", SegmentationSchema).Validate(m))
	})
	t.Run("atom must be a list", func(t *testing.T) {
		m := map[string]any{"atom": "a", "total": 1}
		assert.Error(t, NewValidator("seg.json", SegmentationSchema).Validate(m))
	})
}

func TestAtomText(t *testing.T) {
	assert.Equal(t, "plain", AtomText("plain"))
	assert.Equal(t, "", AtomText(nil))
	assert.Equal(t, `{"q":"dose?"}`, AtomText(map[string]any{"q": "dose?"}))
	assert.Equal(t, "42", AtomText(float64(42)))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	require.NoError(t, ValidateJSONAgainstSchema(SegmentationSchema(), []byte(`{"atom":["x"],"total":1}`)))
	assert.Error(t, ValidateJSONAgainstSchema(SegmentationSchema(), []byte(`{"atom":["x"],"total":-1}`)))
	assert.Error(t, ValidateJSONAgainstSchema(SegmentationSchema(), []byte(`{`)))
}
