package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/guideline-extractor/internal/common"
	"github.com/joseph-ayodele/guideline-extractor/internal/table"
	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

func readRows(t *testing.T, b []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestTableXLSX_HeaderAndRows(t *testing.T) {
	svc := NewService(nil, nil)
	b, err := svc.TableXLSX(table.Parse("Hypertension\tfirst-line\tACE inhibitor\tDisease\tDrug\tIA\nAspirin\tdose"))
	require.NoError(t, err)

	rows := readRows(t, b)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"entity", "property", "value", "entityTag", "valueTag", "level"}, rows[0])
	assert.Equal(t, []string{"Hypertension", "first-line", "ACE inhibitor", "Disease", "Drug", "IA"}, rows[1])
	assert.Equal(t, "Aspirin", rows[2][0])
	assert.Equal(t, "dose", rows[2][1])
}

func TestTableXLSX_EmptyTableKeepsHeader(t *testing.T) {
	b, err := NewService(nil, nil).TableXLSX(table.Empty())
	require.NoError(t, err)
	rows := readRows(t, b)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 6)
}

func TestExportTaskXLSX(t *testing.T) {
	store := tasks.NewStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	_, _, err := svc.ExportTaskXLSX(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	running := store.Create("running.pdf")
	_, _, err = svc.ExportTaskXLSX(ctx, running.ID)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	done := store.Create("ada-2024.pdf")
	tbl := table.Parse("Diabetes\tHbA1c target\t<7%\tDisease\tLab\tA")
	_, ok := store.Complete(done.ID, tasks.Result{Filename: "ada-2024.pdf", Data: tbl.Records, Count: tbl.Len()}, "ok")
	require.True(t, ok)

	b, name, err := svc.ExportTaskXLSX(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada-2024.xlsx", name)
	rows := readRows(t, b)
	require.Len(t, rows, 2)
	assert.Equal(t, "<7%", rows[1][2])
}

func TestWriteXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, NewService(nil, nil).WriteXLSXFile(path, table.Parse("a\tb")))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestXLSXName(t *testing.T) {
	assert.Equal(t, "guide.xlsx", XLSXName("guide.pdf"))
	assert.Equal(t, "guide.v2.xlsx", XLSXName("/tmp/in/guide.v2.md"))
	assert.Equal(t, "extraction.xlsx", XLSXName(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "指南…", truncate("指南文档", 3))
}
