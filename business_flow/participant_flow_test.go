package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParticipantFlow(s *memory.Store) *ParticipantFlowImpl {
	policy := pricing.NewSummitPolicy()
	f := NewParticipantFlow(
		s.Participants(),
		s.Invoices(),
		newTestLedger(s),
		s,
		services.NewDocumentRenderer(policy, "Apay Summit"),
	).(*ParticipantFlowImpl)
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestParticipantFlow_AddParticipant(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	first, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: " Jane ", Email: "jane@example.co.ke"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane", first.Participant.Name)
	assert.Equal(t, "Participant added successfully! New invoice generated.", first.Message)
	assert.Equal(t, 1, first.Invoice.ParticipantCount)
	assert.Equal(t, pricing.KES(15000), first.Invoice.TotalAmount)

	second, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: "Otieno", Email: "otieno@example.co.ke", Phone: "0712345678"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Equal(t, "Participant added successfully! Existing invoice updated.", second.Message)
	assert.Equal(t, pricing.KES(30000), second.Invoice.Subtotal)
}

func TestParticipantFlow_AddToEmptiedInvoiceReusesIt(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	first, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: "Jane", Email: "jane@example.co.ke"}, nil)
	require.NoError(t, err)

	detached, err := flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{
		AccountID:     owner.ID,
		InvoiceID:     first.Invoice.ID,
		ParticipantID: first.Participant.ID,
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, detached.Invoice.ParticipantCount)

	again, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: "Amina", Email: "amina@example.co.ke"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Invoice.ID, again.Invoice.ID)
	assert.Equal(t, 1, again.Invoice.ParticipantCount)
	assert.Equal(t, "Participant added successfully! Existing invoice updated.", again.Message)
}

func TestParticipantFlow_AddParticipantValidation(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	owner := seedAccount(t, s, "wanjiku")

	_, err := flow.AddParticipant(context.Background(), &dto.AddParticipantRequest{AccountID: owner.ID, Name: "  ", Email: ""}, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	fields := ValidationFields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Field)
	assert.Equal(t, "email", fields[1].Field)

	count, err := s.Invoices().Count(context.Background(), models.InvoiceFilter{})
	require.NoError(t, err)
	assert.Zero(t, count, "no invoice is opened for a rejected participant")
}

func TestParticipantFlow_AddParticipantRollsBack(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	s.FailNext("invoices.AttachParticipants", errors.New("connection reset"))
	_, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: "Jane", Email: "jane@example.co.ke"}, nil)
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	participants, err := s.Participants().Count(ctx, models.ParticipantFilter{})
	require.NoError(t, err)
	assert.Zero(t, participants)

	invoices, err := s.Invoices().Count(ctx, models.InvoiceFilter{})
	require.NoError(t, err)
	assert.Zero(t, invoices)
}

func TestParticipantFlow_BulkAdd(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	resp, err := flow.BulkAddParticipants(ctx, &dto.BulkAddParticipantsRequest{
		AccountID: owner.ID,
		Data:      "Jane Doe,jane@x.com,0712345678\nBadLine\n\nJohn,john@x.com,",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.AddedCount)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, resp.Errors[0].Line)
	assert.Equal(t, "Line 2: Invalid format. Expected: Name,Email,Phone", resp.Errors[0].Message)

	require.NotNil(t, resp.Invoice)
	assert.Equal(t, pricing.KES(30000), resp.Invoice.Subtotal)
	assert.Equal(t, 2, resp.Invoice.ParticipantCount)
	assert.Equal(t, "Successfully added 2 participants! Invoice updated.", resp.Message)

	items, err := s.Invoices().Items(ctx, resp.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestParticipantFlow_BulkAddLineErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		messages []string
	}{
		{
			name:     "missing name",
			data:     " ,jane@x.com,0712345678",
			messages: []string{"Line 1: Name and email are required"},
		},
		{
			name:     "too many fields",
			data:     "Jane,jane@x.com,0712345678,extra",
			messages: []string{"Line 1: Invalid format. Expected: Name,Email,Phone"},
		},
		{
			name:     "blank lines keep their numbers",
			data:     "\n\nJane\n\n,,\n",
			messages: []string{"Line 1: Invalid format. Expected: Name,Email,Phone", "Line 3: Name and email are required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			flow := newTestParticipantFlow(s)
			owner := seedAccount(t, s, "wanjiku")

			resp, err := flow.BulkAddParticipants(context.Background(), &dto.BulkAddParticipantsRequest{AccountID: owner.ID, Data: tt.data}, nil)
			require.NoError(t, err)
			assert.Zero(t, resp.AddedCount)
			assert.Nil(t, resp.Invoice)

			got := make([]string, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.messages, got)

			count, err := s.Invoices().Count(context.Background(), models.InvoiceFilter{})
			require.NoError(t, err)
			assert.Zero(t, count, "nothing accepted means no invoice")
		})
	}
}

func TestParticipantFlow_BulkAddJoinsOpenInvoice(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")

	single, err := flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: owner.ID, Name: "Jane", Email: "jane@x.com"}, nil)
	require.NoError(t, err)

	bulk, err := flow.BulkAddParticipants(ctx, &dto.BulkAddParticipantsRequest{
		AccountID: owner.ID,
		Data:      "A,a@x.com,\nB,b@x.com,\nC,c@x.com,\nD,d@x.com,",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, bulk.Invoice)
	assert.Equal(t, single.Invoice.ID, bulk.Invoice.ID)
	assert.Equal(t, 5, bulk.Invoice.ParticipantCount)
	assert.Equal(t, pricing.KES(55000), bulk.Invoice.TotalAmount)
}

func TestParticipantFlow_ListAndExport(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")
	other := seedAccount(t, s, "otieno")

	_, err := flow.BulkAddParticipants(ctx, &dto.BulkAddParticipantsRequest{AccountID: owner.ID, Data: "A,a@x.com,\nB,b@x.com,\nC,c@x.com,"}, nil)
	require.NoError(t, err)
	_, err = flow.AddParticipant(ctx, &dto.AddParticipantRequest{AccountID: other.ID, Name: "Z", Email: "z@x.com"}, nil)
	require.NoError(t, err)

	list, err := flow.ListParticipants(ctx, &dto.ListParticipantsRequest{AccountID: owner.ID, Page: 1, PageSize: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.TotalCount)
	assert.Len(t, list.Participants, 2)
	assert.Equal(t, 2, list.Pagination.TotalPages)

	file, err := flow.ExportParticipants(ctx, &dto.ExportParticipantsRequest{AccountID: owner.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "participants.csv", file.FileName)
	assert.Contains(t, string(file.Content), "a@x.com")
	assert.NotContains(t, string(file.Content), "z@x.com")

	_, err = flow.ExportParticipants(ctx, &dto.ExportParticipantsRequest{AccountID: owner.ID, Format: "ods"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedExportFormat)
}

func TestParticipantFlow_DetachParticipant(t *testing.T) {
	s := memory.New()
	flow := newTestParticipantFlow(s)
	ctx := context.Background()
	owner := seedAccount(t, s, "wanjiku")
	stranger := seedAccount(t, s, "stranger")

	bulk, err := flow.BulkAddParticipants(ctx, &dto.BulkAddParticipantsRequest{AccountID: owner.ID, Data: "A,a@x.com,\nB,b@x.com,\nC,c@x.com,\nD,d@x.com,"}, nil)
	require.NoError(t, err)
	invoiceID := bulk.Invoice.ID
	assert.Equal(t, pricing.KES(45000), bulk.Invoice.TotalAmount)

	attached, err := s.Participants().ByFilter(ctx, models.ParticipantFilter{InvoiceID: &invoiceID}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, attached, 4)
	target := attached[0].ID

	_, err = flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{AccountID: stranger.ID, InvoiceID: invoiceID, ParticipantID: target}, nil)
	assert.ErrorIs(t, err, ErrInvoiceAccessDenied)

	resp, err := flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{AccountID: owner.ID, InvoiceID: invoiceID, ParticipantID: target}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Invoice.ParticipantCount)
	assert.Equal(t, pricing.KES(45000), resp.Invoice.TotalAmount)
	assert.Equal(t, models.InvoiceStatusPending, resp.Invoice.Status)

	_, err = flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{AccountID: owner.ID, InvoiceID: invoiceID, ParticipantID: target}, nil)
	assert.ErrorIs(t, err, ErrParticipantNotOnInvoice)

	kept, err := s.Participants().ByID(ctx, target)
	require.NoError(t, err)
	assert.NotNil(t, kept, "detaching keeps the participant row")

	inv, err := s.Invoices().ByID(ctx, invoiceID)
	require.NoError(t, err)
	inv.Status = models.InvoiceStatusPaid
	require.NoError(t, s.Invoices().Update(ctx, inv))

	_, err = flow.DetachParticipant(ctx, &dto.DetachParticipantRequest{IsStaff: true, InvoiceID: invoiceID, ParticipantID: attached[1].ID}, nil)
	assert.ErrorIs(t, err, ErrInvoiceNotEditable)
}
