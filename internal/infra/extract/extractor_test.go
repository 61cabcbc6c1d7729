package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(t.TempDir(), 2*time.Second, arbor.NewNoOpLogger())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestExtractFile_PlainText(t *testing.T) {
	p := writeFile(t, "policy.txt", "  SECTION I - INSURING AGREEMENTS\n")

	out, err := newExtractor(t).ExtractFile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "SECTION I - INSURING AGREEMENTS", out.Text)
	assert.Equal(t, 1, out.PageCount)
}

func TestExtractFile_Errors(t *testing.T) {
	e := newExtractor(t)

	_, err := e.ExtractFile(context.Background(), writeFile(t, "empty.txt", "   \n"))
	assert.ErrorIs(t, err, ErrNoText)

	_, err = e.ExtractFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	_, err = e.ExtractFile(context.Background(), writeFile(t, "broken.pdf", "%PDF-1.4 truncated"))
	assert.Error(t, err)
}

func TestExtractFile_PDF(t *testing.T) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(40, 10, "Hello policy")
	pdf.AddPage()
	pdf.Cell(40, 10, "Second page")
	p := filepath.Join(t.TempDir(), "policy.pdf")
	require.NoError(t, pdf.OutputFileAndClose(p))

	out, err := newExtractor(t).ExtractFile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, out.PageCount)
	assert.Contains(t, out.Text, "Hello policy")
	assert.Contains(t, out.Text, "Second page")
}

func TestExtractURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/policy.txt":
			_, _ = w.Write([]byte("Retention: $25,000"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newExtractor(t)
	out, err := e.ExtractURL(context.Background(), srv.URL+"/policy.txt?sig=abc")
	require.NoError(t, err)
	assert.Equal(t, "Retention: $25,000", out.Text)

	_, err = e.ExtractURL(context.Background(), srv.URL+"/gone.pdf")
	assert.ErrorIs(t, err, ErrDownloadStatus)

	left, _ := os.ReadDir(e.tempDir)
	assert.Empty(t, left, "downloads must be cleaned up")
}

func TestExtractURL_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newExtractor(t).ExtractURL(context.Background(), url+"/policy.pdf")
	assert.Error(t, err)
}

func TestDownloadExt(t *testing.T) {
	assert.Equal(t, ".pdf", downloadExt("https://x/y", "application/pdf"))
	assert.Equal(t, ".txt", downloadExt("https://x/y.txt?token=1", "text/plain"))
	assert.Equal(t, "", downloadExt("https://x/y", ""))
}
