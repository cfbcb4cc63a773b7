package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// InvoiceDocument carries the printable content of an invoice.
type InvoiceDocument struct {
	Number         string
	IssuedAt       time.Time
	StudentName    string
	StudentEmail   string
	FormationTitle string
	FormationType  string
	FormateurName  string
	Amount         float64
	Currency       string
}

// AchievementDocument carries the content of a course badge or formation certificate.
type AchievementDocument struct {
	StudentName    string
	FormationTitle string
	CourseTitle    string
	FormateurName  string
	Score          float64
	AwardedAt      time.Time
	Reference      string
}

// DocumentRenderer draws fixed-layout documents with gofpdf.
type DocumentRenderer struct {
	Issuer string
}

// NewDocumentRenderer builds a renderer stamping documents with the issuer name.
func NewDocumentRenderer(issuer string) *DocumentRenderer {
	if issuer == "" {
		issuer = "Formation LMS"
	}
	return &DocumentRenderer{Issuer: issuer}
}

// Invoice renders a one page A4 invoice.
func (r *DocumentRenderer) Invoice(doc InvoiceDocument) ([]byte, error) {
	if doc.Number == "" {
		return nil, fmt.Errorf("invoice number required")
	}
	currency := doc.Currency
	if currency == "" {
		currency = "EUR"
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, tr(r.Issuer), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, "INVOICE", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	meta := [][2]string{
		{"Invoice number", doc.Number},
		{"Issued", doc.IssuedAt.Format("2006-01-02")},
		{"Billed to", doc.StudentName},
		{"Email", doc.StudentEmail},
	}
	for _, kv := range meta {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(110, 8, "Formation", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Type", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	title := doc.FormationTitle
	if doc.FormateurName != "" {
		title = fmt.Sprintf("%s (%s)", doc.FormationTitle, doc.FormateurName)
	}
	pdf.CellFormat(110, 8, tr(title), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, doc.FormationType, "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, FormatAmount(doc.Amount, currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(140, 9, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 9, FormatAmount(doc.Amount, currency), "1", 1, "R", false, 0, "")

	pdf.Ln(12)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This invoice was issued automatically when the enrollment was approved.", "", "L", false)

	return output(pdf)
}

// CourseBadge renders a landscape badge for a passed course.
func (r *DocumentRenderer) CourseBadge(doc AchievementDocument) ([]byte, error) {
	if doc.CourseTitle == "" {
		return nil, fmt.Errorf("course title required")
	}
	return r.achievement("COURSE BADGE", doc.CourseTitle, doc)
}

// FormationCertificate renders a landscape certificate for a completed formation.
func (r *DocumentRenderer) FormationCertificate(doc AchievementDocument) ([]byte, error) {
	if doc.FormationTitle == "" {
		return nil, fmt.Errorf("formation title required")
	}
	return r.achievement("CERTIFICATE OF COMPLETION", doc.FormationTitle, doc)
}

func (r *DocumentRenderer) achievement(heading, subject string, doc AchievementDocument) ([]byte, error) {
	if doc.StudentName == "" {
		return nil, fmt.Errorf("student name required")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	width, height := pdf.GetPageSize()
	pdf.SetLineWidth(1.5)
	pdf.SetDrawColor(40, 70, 140)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetY(35)
	pdf.SetFont("Arial", "B", 26)
	pdf.SetTextColor(40, 70, 140)
	pdf.CellFormat(0, 14, heading, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "This is awarded to", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 14, tr(doc.StudentName), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 13)
	pdf.CellFormat(0, 8, "for successfully completing", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(subject), "", 1, "C", false, 0, "")
	if doc.CourseTitle != "" && doc.FormationTitle != "" && subject != doc.FormationTitle {
		pdf.SetFont("Arial", "I", 11)
		pdf.CellFormat(0, 7, tr("part of "+doc.FormationTitle), "", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Score: %.1f%%", doc.Score), "", 1, "C", false, 0, "")

	pdf.SetY(height - 45)
	pdf.SetFont("Arial", "", 10)
	half := (width - 40) / 2
	pdf.CellFormat(half, 6, "Awarded "+doc.AwardedAt.Format("2 January 2006"), "", 0, "L", false, 0, "")
	signer := r.Issuer
	if doc.FormateurName != "" {
		signer = doc.FormateurName + " / " + r.Issuer
	}
	pdf.CellFormat(half, 6, tr(signer), "", 1, "R", false, 0, "")
	if doc.Reference != "" {
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 6, "Reference "+strings.ToUpper(doc.Reference), "", 1, "C", false, 0, "")
	}

	return output(pdf)
}

// FormatAmount prints an amount with two decimals and a currency code.
func FormatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
