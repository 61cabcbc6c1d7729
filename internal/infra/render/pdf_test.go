package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeUploader struct {
	key string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, localPath, key string) (string, error) {
	f.key = key
	if f.err != nil {
		return "", f.err
	}
	return "http://minio.local/reports/" + filepath.Base(localPath), nil
}

func sampleAnalysis() map[string]any {
	return map[string]any{
		"client_company":  "Acme Corp",
		"client_industry": "Manufacturing",
		"program_details": map[string]any{"carrier": "Example Mutual", "deductible": float64(25000)},
		"coverage_analysis": map[string]any{
			"first_party": []any{
				map[string]any{"coverage_name": "Business Interruption", "maturity_score": float64(6), "sublimit": "$1,000,000"},
			},
		},
		"executive_summary": map[string]any{
			"overview":       "Solid baseline program with gaps in OT coverage.",
			"key_metrics":    map[string]any{"overall_maturity_score": 6.2},
			"recommendation": "BIND WITH CONDITIONS",
		},
		"red_flags": []any{
			map[string]any{"flag": "Absolute failure-to-patch exclusion", "severity": "HIGH"},
		},
		"policy_summary":  map[string]any{"strengths": []any{"Full prior acts"}},
		"recommendations": map[string]any{"immediate_actions": []any{map[string]any{"priority": float64(1), "item": "Negotiate OT endorsement"}}},
		"_metadata":       map[string]any{"client_name": "Acme Corp"},
	}
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 4)
	assert.Equal(t, "%PDF", string(b[:4]))
}

func TestRender_Structured(t *testing.T) {
	r := New(t.TempDir(), "Rhône Risk Advisory", nil, arbor.NewNoOpLogger())

	path, err := r.Render(context.Background(), "analysis_0123456789ab", sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, r.ReportPath("analysis_0123456789ab"), path)
	assert.Equal(t, "analysis_0123456789ab_report.pdf", filepath.Base(path))
	assertPDF(t, path)
}

func TestRender_Degraded(t *testing.T) {
	r := New(t.TempDir(), "Rhône Risk Advisory", nil, arbor.NewNoOpLogger())

	path, err := r.Render(context.Background(), "analysis_raw", map[string]any{"raw_analysis": "The policy looks fine overall."})
	require.NoError(t, err)
	assertPDF(t, path)
}

func TestRender_Upload(t *testing.T) {
	up := &fakeUploader{}
	r := New(t.TempDir(), "Rhône Risk Advisory", up, arbor.NewNoOpLogger())

	ref, err := r.Render(context.Background(), "analysis_up", sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local/reports/analysis_up_report.pdf", ref)
	assert.Equal(t, "reports/analysis_up_report.pdf", up.key)

	failing := New(t.TempDir(), "Rhône Risk Advisory", &fakeUploader{err: errors.New("minio down")}, arbor.NewNoOpLogger())
	ref, err = failing.Render(context.Background(), "analysis_up", sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, failing.ReportPath("analysis_up"), ref)
}

func TestRender_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(file, "X", nil, arbor.NewNoOpLogger()).Render(context.Background(), "analysis_x", sampleAnalysis())
	assert.Error(t, err)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "25000", display(float64(25000)))
	assert.Equal(t, "6.5", display(6.5))
	assert.Equal(t, "a, b", display([]any{"a", "b"}))
	assert.Equal(t, "", display(nil))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
