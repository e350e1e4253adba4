package services

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDocumentRenderer_InvoicePDF(t *testing.T) {
	r := NewDocumentRenderer(pricing.NewSummitPolicy(), "Apay Summit")
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	quote := pricing.NewSummitPolicy().Price(2)
	inv := models.Invoice{InvoiceNumber: "INV-1A2B3C4D", IssueDate: day, DueDate: day.AddDate(0, 0, 30), Status: models.InvoiceStatusPending}
	inv.ApplyQuote(quote)

	data, err := r.InvoicePDF(&InvoiceDocument{
		Invoice: inv,
		Items:   []models.InvoiceItem{models.NewInvoiceItem(1, quote.Description, quote.Count, quote.UnitPrice)},
		Participants: []*models.Participant{
			{Name: "Jane Wanjiku", Email: "jane@example.co.ke"},
			{Name: "Otieno", Email: "otieno@example.co.ke", Phone: "0712345678"},
		},
		Owner:   models.Account{Username: "apay_member", Email: "member@example.co.ke"},
		Profile: &models.Profile{CompanyName: "Apay Ltd"},
		Today:   day,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestDocumentRenderer_RateScheduleFollowsPolicy(t *testing.T) {
	r := &DocumentRendererImpl{policy: pricing.NewSummitPolicy()}

	lines := r.rateSchedule()
	require.Len(t, lines, 3)
	assert.Equal(t, "1-3 participants: KES 15,000.00 per person", lines[0])
	assert.Equal(t, "4 participants: KES 45,000.00 total", lines[1])
	assert.Equal(t, "5 or more participants: KES 11,000.00 per person", lines[2])
}

func TestDocumentRenderer_Table(t *testing.T) {
	r := NewDocumentRenderer(pricing.NewSummitPolicy(), "Apay Summit")
	header := []string{"name", "email"}
	rows := [][]string{{"Jane, W.", "jane@example.co.ke"}, {"Otieno", "otieno@example.co.ke"}}

	t.Run("csv", func(t *testing.T) {
		ct, data, err := r.Table("csv", "participants", header, rows)
		require.NoError(t, err)
		assert.Equal(t, ContentTypeCSV, ct)

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "Jane, W.", records[1][0])
	})

	t.Run("xlsx", func(t *testing.T) {
		ct, data, err := r.Table("XLSX", "participants/2026", header, rows)
		require.NoError(t, err)
		assert.Equal(t, ContentTypeXLSX, ct)

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer xl.Close()

		got, err := xl.GetRows("participants_2026")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "otieno@example.co.ke", got[2][1])
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := r.Table("pdf", "x", header, rows)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
