package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

const (
	DefaultTimeout  = 60 * time.Second
	maxDownloadSize = 50 << 20
)

var (
	ErrNoText         = errors.New("no text could be extracted")
	ErrDownloadStatus = errors.New("document download failed")
	ErrTooLarge       = errors.New("document exceeds size limit")
)

var pageFile = regexp.MustCompile(`page_(\d+)`)

// Extractor fetches documents and recovers their text. PDFs go through
// pdfcpu; anything else is read as plain text.
type Extractor struct {
	httpClient *http.Client
	tempDir    string
	logger     arbor.ILogger
}

var _ jobs.Extractor = (*Extractor)(nil)

func New(tempDir string, timeout time.Duration, logger arbor.ILogger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: timeout},
		tempDir:    tempDir,
		logger:     logger,
	}
}

// ExtractURL downloads url into the temp dir and extracts it.
func (e *Extractor) ExtractURL(ctx context.Context, url string) (jobs.Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return jobs.Extraction{}, fmt.Errorf("%w: HTTP %d", ErrDownloadStatus, resp.StatusCode)
	}

	if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
		return jobs.Extraction{}, fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(e.tempDir, "download-*"+downloadExt(url, resp.Header.Get("Content-Type")))
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxDownloadSize+1))
	closeErr := f.Close()
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("save document: %w", err)
	}
	if closeErr != nil {
		return jobs.Extraction{}, fmt.Errorf("save document: %w", closeErr)
	}
	if n > maxDownloadSize {
		return jobs.Extraction{}, ErrTooLarge
	}

	e.logger.Debug().Str("url", url).Int64("bytes", n).Msg("document downloaded")
	return e.ExtractFile(ctx, f.Name())
}

// ExtractFile reads the document at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (jobs.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return jobs.Extraction{}, err
	}
	isPDF, err := sniffPDF(path)
	if err != nil {
		return jobs.Extraction{}, err
	}

	var out jobs.Extraction
	if isPDF {
		out, err = e.extractPDF(path)
		if err != nil {
			return jobs.Extraction{}, err
		}
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return jobs.Extraction{}, fmt.Errorf("read document: %w", err)
		}
		out = jobs.Extraction{Text: string(b), PageCount: 1}
	}

	out.Text = strings.TrimSpace(out.Text)
	if out.Text == "" {
		return jobs.Extraction{}, ErrNoText
	}
	e.logger.Info().
		Str("path", filepath.Base(path)).
		Int("chars", len(out.Text)).
		Int("pages", out.PageCount).
		Msg("document text extracted")
	return out, nil
}

func (e *Extractor) extractPDF(path string) (jobs.Extraction, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("read PDF: %w", err)
	}

	outDir, err := os.MkdirTemp(e.tempDir, "pages-*")
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("create page dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return jobs.Extraction{}, fmt.Errorf("extract PDF content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return jobs.Extraction{}, fmt.Errorf("read page dir: %w", err)
	}
	pages := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pageFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			e.logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable page content")
			continue
		}
		pages[num] += TextFromContentStream(string(raw))
	}

	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var b strings.Builder
	for i, n := range nums {
		if i > 0 {
			fmt.Fprintf(&b, "\n\n--- Page %d ---\n\n", n)
		}
		b.WriteString(pages[n])
	}
	return jobs.Extraction{Text: b.String(), PageCount: pdfCtx.PageCount}, nil
}

func sniffPDF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	head := make([]byte, 5)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read document: %w", err)
	}
	return string(head[:n]) == "%PDF-", nil
}

func downloadExt(url, contentType string) string {
	if strings.Contains(contentType, "pdf") {
		return ".pdf"
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if ext := filepath.Ext(url); len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ""
}
