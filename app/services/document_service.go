package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Content types of rendered documents
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InvoiceDocument is everything printed on an invoice PDF
type InvoiceDocument struct {
	Invoice      models.Invoice
	Items        []models.InvoiceItem
	Participants []*models.Participant
	Owner        models.Account
	Profile      *models.Profile
	Today        time.Time
}

// DocumentRenderer renders invoices and tabular exports. It never touches storage.
type DocumentRenderer interface {
	InvoicePDF(doc *InvoiceDocument) ([]byte, error)
	// Table renders header and rows as "csv" or "xlsx" and returns the content type with the bytes
	Table(format, sheet string, header []string, rows [][]string) (string, []byte, error)
}

// DocumentRendererImpl implements DocumentRenderer
type DocumentRendererImpl struct {
	policy   pricing.Policy
	siteName string
}

// NewDocumentRenderer creates a renderer that prints the rate schedule of policy on invoices
func NewDocumentRenderer(policy pricing.Policy, siteName string) DocumentRenderer {
	return &DocumentRendererImpl{policy: policy, siteName: siteName}
}

func (r *DocumentRendererImpl) InvoicePDF(doc *InvoiceDocument) ([]byte, error) {
	inv := doc.Invoice

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetAuthor(r.siteName, true)
	pdf.SetCreationDate(doc.Today)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.siteName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "INVOICE "+inv.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 6, "Billed to", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Details", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	billed := []string{doc.Owner.Username, doc.Owner.Email}
	if doc.Profile != nil {
		for _, s := range []string{doc.Profile.CompanyName, doc.Profile.Address, doc.Profile.Phone} {
			if s != "" {
				billed = append(billed, s)
			}
		}
	}
	details := []string{
		"Issue date: " + inv.IssueDate.Format(utils.DateLayout),
		"Due date: " + inv.DueDate.Format(utils.DateLayout),
		"Status: " + inv.PaymentStatus(doc.Today),
	}
	if ref := utils.Deref(inv.PaymentReference); ref != "" {
		details = append(details, "Reference: "+ref)
	}
	for i := 0; i < max(len(billed), len(details)); i++ {
		left, right := "", ""
		if i < len(billed) {
			left = billed[i]
		}
		if i < len(details) {
			right = details[i]
		}
		pdf.CellFormat(90, 5, tr(left), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(right), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(95, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(32, 7, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(33, 7, "Total", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if len(doc.Items) == 0 {
		pdf.CellFormat(180, 7, "No participants on this invoice", "1", 1, "L", false, 0, "")
	}
	for _, item := range doc.Items {
		pdf.CellFormat(95, 7, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 7, item.UnitPrice.Format(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(33, 7, item.Total.Format(), "1", 1, "R", false, 0, "")
	}

	totals := [][2]string{
		{"Subtotal", inv.Subtotal.String()},
		{"Tax", inv.TaxAmount.String()},
		{"Total", inv.TotalAmount.String()},
		{"Amount due", inv.AmountDue().String()},
	}
	for i, row := range totals {
		if i == len(totals)-2 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(147, 6, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(33, 6, row[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if len(doc.Participants) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Participants", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for i, p := range doc.Participants {
			line := fmt.Sprintf("%d. %s <%s>", i+1, p.Name, p.Email)
			if p.Phone != "" {
				line += " " + p.Phone
			}
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Rate schedule", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range r.rateSchedule() {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	if inv.Notes != "" {
		pdf.Ln(3)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// rateSchedule describes each pricing tier using the quotes of the injected policy
func (r *DocumentRendererImpl) rateSchedule() []string {
	individual := r.policy.Price(1)
	special := r.policy.Price(pricing.SpecialGroupSize)
	group := r.policy.Price(pricing.SpecialGroupSize + 1)
	return []string{
		fmt.Sprintf("1-%d participants: %s per person", pricing.SpecialGroupSize-1, individual.UnitPrice),
		fmt.Sprintf("%d participants: %s total", pricing.SpecialGroupSize, special.Subtotal),
		fmt.Sprintf("%d or more participants: %s per person", pricing.SpecialGroupSize+1, group.UnitPrice),
	}
}

func (r *DocumentRendererImpl) Table(format, sheet string, header []string, rows [][]string) (string, []byte, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		data, err := renderCSV(header, rows)
		return ContentTypeCSV, data, err
	case "xlsx":
		data, err := renderXLSX(sheet, header, rows)
		return ContentTypeXLSX, data, err
	default:
		return "", nil, ErrUnsupportedFormat
	}
}

func renderCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(sheet string, header []string, rows [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	name := sanitizeSheetName(sheet)
	if err := xl.SetSheetName(xl.GetSheetName(0), name); err != nil {
		return nil, err
	}

	if err := xl.SetSheetRow(name, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := xl.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = xl.SetCellStyle(name, "A1", last, bold)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(name, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeSheetName strips characters Excel forbids in sheet names and keeps at most 31 runes
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if safe == "" {
		return "Sheet1"
	}
	if r := []rune(safe); len(r) > 31 {
		safe = string(r[:31])
	}
	return safe
}
