package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

const (
	pdfBarMaxWidth = 100 // mm
	pdfLabelWidth  = 42  // mm
)

// renderPDF produces the portable-document artifact.
func renderPDF(rep domain.Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s brief for %s", rep.Cadence, rep.ClientName), true)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(29, 39, 51)
	pdf.CellFormat(0, 9, tr(fmt.Sprintf("%s business intelligence brief", capitalize(string(rep.Cadence)))), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 102, 115)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Client: %s (%s)", rep.ClientName, rep.ClientID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Window: %s to %s", rep.From.Format(timeLayout), rep.To.Format(timeLayout))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generated: %s    Report ID: %s", rep.GeneratedAt.Format(timeLayout), rep.ID)), "", 1, "L", false, 0, "")
	if rep.Partial {
		pdf.SetTextColor(156, 101, 0)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Partial report: %s", rep.PartialReason)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// Executive summary
	pdfHeading(pdf, "Executive Summary")
	if rep.Summary.Degraded {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(90, 102, 115)
		pdf.CellFormat(0, 5, "Automated fallback summary", "", 1, "L", false, 0, "")
	} else if rep.Summary.ModelUsed != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(90, 102, 115)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Model: %s", rep.Summary.ModelUsed)), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(29, 39, 51)
	pdf.MultiCell(0, 5, tr(rep.Summary.Paragraph), "", "L", false)
	for _, bullet := range rep.Summary.Bullets {
		pdf.MultiCell(0, 5, tr("* "+bullet), "", "L", false)
	}
	pdf.Ln(3)

	// Trends
	pdfHeading(pdf, "Trends")
	s := rep.Trends.Sentiment
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(29, 39, 51)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Sentiment mean %+.2f (%d positive, %d negative, %d neutral)",
		s.Mean, s.Positive, s.Negative, s.Neutral)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	for _, chart := range rep.Trends.Charts {
		pdfChart(pdf, tr, rep.Trends, chart)
	}

	// Articles
	pdfHeading(pdf, fmt.Sprintf("Articles (%d)", len(rep.Articles)))
	for i, ref := range rep.Articles {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(29, 39, 51)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s", i+1, ref.Title)), "", "L", false)

		meta := []string{
			ref.SourceID,
			ref.PublishedAt.Format(dateLayout),
			fmt.Sprintf("relevance %.2f", ref.Score),
		}
		if ref.Sentiment != "" {
			meta = append(meta, ref.Sentiment)
		}
		if len(ref.Topics) > 0 {
			meta = append(meta, strings.Join(ref.Topics, "/"))
		}
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(90, 102, 115)
		pdf.CellFormat(0, 4, tr(strings.Join(meta, " | ")), "", 1, "L", false, 0, "")
		pdf.SetTextColor(10, 110, 138)
		pdf.CellFormat(0, 4, tr(ref.URL), "", 1, "L", false, 0, "")
		pdf.Ln(1.5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func pdfHeading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(10, 110, 138)
	pdf.CellFormat(0, 7, text, "", 1, "L", false, 0, "")
}

func pdfChart(pdf *fpdf.Fpdf, tr func(string) string, trends domain.TrendsSection, chart domain.ChartKind) {
	rows := chartRows(trends, chart)
	if len(rows) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(90, 102, 115)
	pdf.CellFormat(0, 5, tr(chartTitle(chart)), "", 1, "L", false, 0, "")

	maxValue := 0
	for _, r := range rows {
		if r.value > maxValue {
			maxValue = r.value
		}
	}
	if maxValue == 0 {
		maxValue = 1
	}
	pdf.SetFillColor(10, 110, 138)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(29, 39, 51)
	for _, r := range rows {
		y := pdf.GetY()
		pdf.CellFormat(pdfLabelWidth, 5, tr(r.label), "", 0, "L", false, 0, "")
		barWidth := float64(r.value) / float64(maxValue) * pdfBarMaxWidth
		if barWidth < 1 {
			barWidth = 1
		}
		x := pdf.GetX()
		pdf.Rect(x, y+1, barWidth, 3.2, "F")
		pdf.SetXY(x+barWidth+2, y)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d", r.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}
