package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// Uploader publishes a rendered report and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

type rgb struct{ r, g, b int }

var (
	primary = rgb{22, 43, 77}
	accent  = rgb{12, 189, 219}
	muted   = rgb{90, 90, 90}
	danger  = rgb{180, 35, 35}
)

// Renderer writes branded PDF reports to a local directory.
type Renderer struct {
	dir      string
	company  string
	uploader Uploader
	logger   arbor.ILogger
	now      func() time.Time
}

var _ jobs.Renderer = (*Renderer)(nil)

// New returns a renderer writing into dir. uploader may be nil.
func New(dir, company string, uploader Uploader, logger arbor.ILogger) *Renderer {
	return &Renderer{
		dir:      dir,
		company:  company,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// ReportPath is where the report for jobID is written.
func (r *Renderer) ReportPath(jobID string) string {
	return filepath.Join(r.dir, jobID+"_report.pdf")
}

// Render writes the report and returns its local path, or the uploaded URL
// when an uploader is configured and the upload succeeds.
func (r *Renderer) Render(ctx context.Context, jobID string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle("Policy Analysis "+jobID, true)
	pdf.SetAuthor(r.company, true)
	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.AddPage()
	w.header(r.company, data, r.now())

	if raw, ok := data["raw_analysis"].(string); ok {
		w.section("Analysis")
		w.note("The analysis could not be structured; the model output is reproduced below.")
		w.paragraph(raw)
	} else {
		w.executiveSummary(mapOf(data["executive_summary"]))
		w.programDetails(mapOf(data["program_details"]))
		w.coverage(mapOf(data["coverage_analysis"]))
		w.redFlags(listOf(data["red_flags"]))
		w.policySummary(mapOf(data["policy_summary"]))
		w.recommendations(mapOf(data["recommendations"]))
	}

	path := r.ReportPath(jobID)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	r.logger.Info().Str("job_id", jobID).Str("path", path).Msg("report generated")

	if r.uploader == nil {
		return path, nil
	}
	url, err := r.uploader.Upload(ctx, path, "reports/"+filepath.Base(path))
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("report upload failed, keeping local path")
		return path, nil
	}
	return url, nil
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) color(c rgb) { w.pdf.SetTextColor(c.r, c.g, c.b) }

func (w *writer) header(company string, data map[string]any, at time.Time) {
	w.pdf.SetFillColor(primary.r, primary.g, primary.b)
	w.pdf.Rect(0, 0, 210, 28, "F")
	w.pdf.SetXY(15, 8)
	w.pdf.SetFont("Helvetica", "B", 16)
	w.pdf.SetTextColor(255, 255, 255)
	w.pdf.CellFormat(0, 8, w.tr(company), "", 1, "L", false, 0, "")
	w.pdf.SetX(15)
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.CellFormat(0, 6, "Cyber Insurance Policy Analysis", "", 1, "L", false, 0, "")
	w.pdf.SetY(34)

	meta := mapOf(data["_metadata"])
	client := firstString(data["client_company"], meta["client_name"])
	if client == "" {
		client = jobs.DefaultClientName
	}
	w.color(primary)
	w.pdf.SetFont("Helvetica", "B", 14)
	w.pdf.CellFormat(0, 8, w.tr(client), "", 1, "L", false, 0, "")
	w.color(muted)
	w.pdf.SetFont("Helvetica", "", 9)
	line := "Report date: " + at.Format("January 2, 2006")
	if ind := firstString(data["client_industry"], meta["client_industry"]); ind != "" {
		line += "   Industry: " + ind
	}
	w.pdf.CellFormat(0, 5, w.tr(line), "", 1, "L", false, 0, "")
	w.pdf.Ln(4)
}

func (w *writer) section(title string) {
	w.pdf.Ln(3)
	w.color(primary)
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.CellFormat(0, 7, w.tr(title), "", 1, "L", false, 0, "")
	w.pdf.SetDrawColor(accent.r, accent.g, accent.b)
	w.pdf.SetLineWidth(0.6)
	y := w.pdf.GetY()
	w.pdf.Line(15, y, 195, y)
	w.pdf.Ln(2)
}

func (w *writer) paragraph(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, 5, w.tr(text), "", "L", false)
	w.pdf.Ln(1)
}

func (w *writer) note(text string) {
	w.color(muted)
	w.pdf.SetFont("Helvetica", "I", 9)
	w.pdf.MultiCell(0, 5, w.tr(text), "", "L", false)
}

func (w *writer) kv(label string, value any) {
	s := display(value)
	if s == "" {
		return
	}
	w.color(muted)
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(55, 6, w.tr(label), "", 0, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.MultiCell(0, 6, w.tr(s), "", "L", false)
}

func (w *writer) bullets(title string, items []any) {
	if len(items) == 0 {
		return
	}
	if title != "" {
		w.color(primary)
		w.pdf.SetFont("Helvetica", "B", 10)
		w.pdf.CellFormat(0, 6, w.tr(title), "", 1, "L", false, 0, "")
	}
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		w.pdf.SetX(19)
		w.pdf.MultiCell(0, 5, w.tr("- "+display(it)), "", "L", false)
	}
	w.pdf.Ln(1)
}

func (w *writer) executiveSummary(es map[string]any) {
	if es == nil {
		return
	}
	w.section("Executive Summary")

	metrics := mapOf(es["key_metrics"])
	score, rec := jobs.Summary(map[string]any{"executive_summary": es})
	w.pdf.SetFillColor(accent.r, accent.g, accent.b)
	w.pdf.SetTextColor(255, 255, 255)
	w.pdf.SetFont("Helvetica", "B", 11)
	scoreText := "Overall maturity: n/a"
	if score != nil {
		scoreText = fmt.Sprintf("Overall maturity: %.1f / 10", *score)
	}
	w.pdf.CellFormat(90, 9, scoreText, "", 0, "C", true, 0, "")
	recText := "Recommendation: n/a"
	if rec != nil {
		recText = "Recommendation: " + string(*rec)
	}
	w.pdf.SetFillColor(primary.r, primary.g, primary.b)
	w.pdf.CellFormat(90, 9, w.tr(recText), "", 1, "C", true, 0, "")
	w.pdf.Ln(3)

	w.paragraph(display(es["overview"]))
	w.kv("Coverage comprehensiveness", metrics["coverage_comprehensiveness"])
	w.kv("Total coverage limit", metrics["total_coverage_limit"])
	w.kv("Annual premium", metrics["annual_premium"])
	w.kv("Carrier rating", metrics["primary_carrier_rating"])
	w.kv("Rationale", es["recommendation_rationale"])
	w.bullets("Critical action items", listOf(es["critical_action_items"]))
}

func (w *writer) programDetails(pd map[string]any) {
	if pd == nil {
		return
	}
	w.section("Program Details")
	for _, k := range []struct{ label, key string }{
		{"Carrier", "carrier"},
		{"Policy number", "policy_number"},
		{"Primary limits", "primary_limits"},
		{"Deductible", "deductible"},
		{"Total premium", "total_premium"},
		{"Financial rating", "financial_rating"},
		{"Policy period", "policy_period"},
	} {
		w.kv(k.label, pd[k.key])
	}
}

func (w *writer) coverage(ca map[string]any) {
	if ca == nil {
		return
	}
	w.section("Coverage Analysis")
	w.coverageTable("First-Party Coverages", listOf(ca["first_party"]))
	w.coverageTable("Third-Party Coverages", listOf(ca["third_party"]))
}

func (w *writer) coverageTable(title string, rows []any) {
	if len(rows) == 0 {
		return
	}
	w.color(primary)
	w.pdf.SetFont("Helvetica", "B", 10)
	w.pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")

	w.pdf.SetFillColor(primary.r, primary.g, primary.b)
	w.pdf.SetTextColor(255, 255, 255)
	w.pdf.SetFont("Helvetica", "B", 9)
	w.pdf.CellFormat(100, 7, "Coverage", "1", 0, "L", true, 0, "")
	w.pdf.CellFormat(25, 7, "Score", "1", 0, "C", true, 0, "")
	w.pdf.CellFormat(55, 7, "Sublimit", "1", 1, "L", true, 0, "")

	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.SetFont("Helvetica", "", 9)
	for i, row := range rows {
		m := mapOf(row)
		fill := i%2 == 1
		w.pdf.SetFillColor(240, 244, 248)
		w.pdf.CellFormat(100, 6, w.tr(truncate(display(m["coverage_name"]), 60)), "1", 0, "L", fill, 0, "")
		w.pdf.CellFormat(25, 6, display(m["maturity_score"]), "1", 0, "C", fill, 0, "")
		w.pdf.CellFormat(55, 6, w.tr(truncate(display(m["sublimit"]), 32)), "1", 1, "L", fill, 0, "")
	}
	w.pdf.Ln(2)
}

func (w *writer) redFlags(flags []any) {
	if len(flags) == 0 {
		return
	}
	w.section("Red Flags")
	for _, f := range flags {
		m := mapOf(f)
		if m == nil {
			w.bullets("", []any{f})
			continue
		}
		w.color(danger)
		w.pdf.SetFont("Helvetica", "B", 10)
		head := display(m["flag"])
		if sev := display(m["severity"]); sev != "" {
			head = "[" + sev + "] " + head
		}
		w.pdf.MultiCell(0, 5, w.tr(head), "", "L", false)
		w.kv("Impact", m["impact"])
		w.kv("Remediation", m["recommendation"])
		w.pdf.Ln(1)
	}
}

func (w *writer) policySummary(ps map[string]any) {
	if ps == nil {
		return
	}
	w.section("Policy Summary")
	w.bullets("Strengths", listOf(ps["strengths"]))
	w.bullets("Critical deficiencies", listOf(ps["critical_deficiencies"]))
	w.bullets("Moderate concerns", listOf(ps["moderate_concerns"]))
	w.bullets("Industry-specific findings", listOf(ps["industry_specific_findings"]))
}

func (w *writer) recommendations(rc map[string]any) {
	if rc == nil {
		return
	}
	w.section("Recommendations")
	var actions []any
	for _, a := range listOf(rc["immediate_actions"]) {
		m := mapOf(a)
		if m == nil {
			actions = append(actions, a)
			continue
		}
		line := display(m["item"])
		if p := display(m["priority"]); p != "" {
			line = "P" + p + ": " + line
		}
		if why := display(m["rationale"]); why != "" {
			line += " (" + why + ")"
		}
		actions = append(actions, line)
	}
	w.bullets("Immediate actions", actions)
	w.bullets("Renewal considerations", listOf(rc["renewal_considerations"]))
	w.bullets("Risk management suggestions", listOf(rc["risk_management_suggestions"]))
}
