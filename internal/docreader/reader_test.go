package docreader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	name   string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return f.stdout, f.stderr, f.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRead_PlainTextAndMarkdown(t *testing.T) {
	r := New(Config{}, nil)
	ctx := context.Background()

	assert.Equal(t, "Guideline body", r.Read(ctx, writeFile(t, "g.txt", "\ufeffGuideline body\n\n")))
	assert.Equal(t, "# Title\n\nText", r.Read(ctx, writeFile(t, "g.MD", "# Title\n\nText\n")))
}

func TestRead_FailuresReturnEmpty(t *testing.T) {
	r := New(Config{}, nil).WithRunner(&fakeRunner{err: errors.New("not found")})
	ctx := context.Background()

	assert.Equal(t, "", r.Read(ctx, filepath.Join(t.TempDir(), "missing.txt")))
	assert.Equal(t, "", r.Read(ctx, writeFile(t, "scan.docx", "binary")))
	assert.Equal(t, "", r.Read(ctx, writeFile(t, "broken.pdf", "not a pdf at all")))
}

func TestExtract_PDFViaPdftotext(t *testing.T) {
	run := &fakeRunner{stdout: []byte("Page one\fPage two\f")}
	r := New(Config{Pdftotext: "/opt/bin/pdftotext", MaxPages: 3}, nil).WithRunner(run)
	path := writeFile(t, "g.pdf", "%PDF-1.4")

	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Page one\fPage two", res.Text)
	assert.Equal(t, "/opt/bin/pdftotext", run.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", "-l", "3", path, "-"}, run.args)
}

func TestExtract_PDFFallbackReportsBothFailures(t *testing.T) {
	run := &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("Syntax Error")}
	r := New(Config{}, nil).WithRunner(run)

	_, err := r.Extract(context.Background(), writeFile(t, "g.pdf", "garbage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf text")
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := New(Config{}, nil).Extract(context.Background(), "notes.docx")
	assert.ErrorContains(t, err, "unsupported extension")
}

// scriptedRunner answers pdftotext with a failure, renders two fake pages for
// pdftoppm and returns per-page text for tesseract.
type scriptedRunner struct {
	calls []string
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)
	switch name {
	case "pdftotext":
		return nil, []byte("Syntax Error"), errors.New("exit status 1")
	case "pdftoppm":
		prefix := args[len(args)-1]
		for _, n := range []string{"1", "2"} {
			if err := os.WriteFile(prefix+"-"+n+".png", []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if filepath.Base(args[0]) == "page-2.png" {
			return []byte("Recommendation 1\t\tgrade A\r\n-----\n\n\n\nend"), nil, nil
		}
		return []byte("Guideline   title\n"), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func TestExtract_PDFFallsBackToOCR(t *testing.T) {
	run := &scriptedRunner{}
	r := New(Config{OCR: true}, nil).WithRunner(run)

	res, err := r.Extract(context.Background(), writeFile(t, "scan.pdf", "garbage"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Guideline title\n\n\f\nRecommendation 1 grade A\n\nend", res.Text)
	assert.Equal(t, []string{"pdftotext", "pdftoppm", "tesseract", "tesseract"}, run.calls)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtract_OCRDisabledByDefault(t *testing.T) {
	run := &scriptedRunner{}
	_, err := New(Config{}, nil).WithRunner(run).Extract(context.Background(), writeFile(t, "scan.pdf", "garbage"))
	require.Error(t, err)
	assert.Equal(t, []string{"pdftotext"}, run.calls)
}
