package access

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"clinicbook/internal/domain/audit"
)

type ReportFilter struct {
	ActorID string
	From    time.Time
	To      time.Time
}

type AccessReport struct {
	GeneratedAt          time.Time          `json:"generatedAt"`
	From                 time.Time          `json:"from,omitempty"`
	To                   time.Time          `json:"to,omitempty"`
	ActorID              string             `json:"actorId,omitempty"`
	TotalEvents          int                `json:"totalEvents"`
	UnauthorizedAttempts int                `json:"unauthorizedAttempts"`
	PHIAccesses          int                `json:"phiAccesses"`
	ByRole               map[string]int     `json:"byRole"`
	ByRisk               map[audit.Risk]int `json:"byRisk"`
}

// GenerateAccessReport reduces over the ledger. Pure read side, no events are
// emitted for report generation itself.
func (e *Engine) GenerateAccessReport(f ReportFilter) AccessReport {
	report := AccessReport{
		GeneratedAt: e.now().UTC(),
		From:        f.From,
		To:          f.To,
		ActorID:     f.ActorID,
		ByRole:      map[string]int{},
		ByRisk:      map[audit.Risk]int{},
	}
	for _, event := range e.ledger.Events(audit.Filter{ActorID: f.ActorID, From: f.From, To: f.To}) {
		report.TotalEvents++
		if event.Action == audit.ActionUnauthorizedAccess {
			report.UnauthorizedAttempts++
		}
		if event.PHIAccessed {
			report.PHIAccesses++
		}
		if event.ActorRole != "" {
			report.ByRole[event.ActorRole]++
		}
		report.ByRisk[event.RiskLevel]++
	}
	return report
}

// WriteReportPDF renders the report for compliance officers who want a
// signed-off paper artifact.
func WriteReportPDF(report AccessReport, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Access Control Report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(7)
	if !report.From.IsZero() || !report.To.IsZero() {
		pdf.Cell(0, 8, fmt.Sprintf("Window: %s to %s", formatBound(report.From), formatBound(report.To)))
		pdf.Ln(7)
	}
	if report.ActorID != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Actor: %s", report.ActorID))
		pdf.Ln(7)
	}
	pdf.Ln(3)
	pdf.Cell(0, 8, fmt.Sprintf("Total events: %d", report.TotalEvents))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Unauthorized attempts: %d", report.UnauthorizedAttempts))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("PHI accesses: %d", report.PHIAccesses))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "By role")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	for _, role := range sortedKeys(report.ByRole) {
		pdf.Cell(0, 7, fmt.Sprintf("  %s: %d", role, report.ByRole[role]))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "By risk level")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	for _, risk := range []audit.Risk{audit.RiskLow, audit.RiskMedium, audit.RiskHigh, audit.RiskCritical} {
		if count, ok := report.ByRisk[risk]; ok {
			pdf.Cell(0, 7, fmt.Sprintf("  %s: %d", risk, count))
			pdf.Ln(6)
		}
	}

	return pdf.Output(w)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "start"
	}
	return t.Format("2006-01-02")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
