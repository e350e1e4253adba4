package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
)

// ParticipantFlow registers participants and keeps the owner's open invoice in step with them
type ParticipantFlow interface {
	AddParticipant(ctx context.Context, req *dto.AddParticipantRequest, metadata *ClientMetadata) (*dto.AddParticipantResponse, error)
	BulkAddParticipants(ctx context.Context, req *dto.BulkAddParticipantsRequest, metadata *ClientMetadata) (*dto.BulkAddParticipantsResponse, error)
	ListParticipants(ctx context.Context, req *dto.ListParticipantsRequest, metadata *ClientMetadata) (*dto.ListParticipantsResponse, error)
	ExportParticipants(ctx context.Context, req *dto.ExportParticipantsRequest, metadata *ClientMetadata) (*dto.ExportFile, error)
	DetachParticipant(ctx context.Context, req *dto.DetachParticipantRequest, metadata *ClientMetadata) (*dto.DetachParticipantResponse, error)
}

// ParticipantFlowImpl implements ParticipantFlow
type ParticipantFlowImpl struct {
	participantRepo repository.ParticipantRepository
	invoiceRepo     repository.InvoiceRepository
	ledger          InvoiceLedger
	txr             repository.Transactor
	renderer        services.DocumentRenderer
	now             func() time.Time
}

// NewParticipantFlow creates a new participant flow
func NewParticipantFlow(
	participantRepo repository.ParticipantRepository,
	invoiceRepo repository.InvoiceRepository,
	ledger InvoiceLedger,
	txr repository.Transactor,
	renderer services.DocumentRenderer,
) ParticipantFlow {
	return &ParticipantFlowImpl{
		participantRepo: participantRepo,
		invoiceRepo:     invoiceRepo,
		ledger:          ledger,
		txr:             txr,
		renderer:        renderer,
		now:             utils.UTCNow,
	}
}

// AddParticipant stores one participant, attaches it to the open invoice and reprices that invoice
func (f *ParticipantFlowImpl) AddParticipant(ctx context.Context, req *dto.AddParticipantRequest, metadata *ClientMetadata) (*dto.AddParticipantResponse, error) {
	if err := ValidateParticipant(req.Name, req.Email); err != nil {
		return nil, NewBusinessError("PARTICIPANT_VALIDATION_FAILED", "Participant validation failed", err)
	}

	participant := &models.Participant{
		AccountID: req.AccountID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
	}

	var invoice *models.Invoice
	var participantCount int
	var newInvoice bool

	err := f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		open, created, err := f.ledger.GetOrCreateOpenInvoice(txCtx, req.AccountID)
		if err != nil {
			return err
		}
		newInvoice = created

		if err := f.participantRepo.Save(txCtx, participant); err != nil {
			return persistence("create participant", err)
		}
		if err := f.invoiceRepo.AttachParticipants(txCtx, open.ID, []uint{participant.ID}); err != nil {
			return persistence("attach participant", err)
		}

		invoice, err = f.ledger.Recompute(txCtx, open.ID)
		if err != nil {
			return err
		}

		participantCount, err = f.invoiceRepo.CountParticipants(txCtx, invoice.ID)
		return persistence("count participants", err)
	})
	if err != nil {
		return nil, NewBusinessError("ADD_PARTICIPANT_FAILED", "Failed to add participant", err)
	}

	participantsAddedTotal.WithLabelValues("single").Inc()
	slog.InfoContext(ctx, "Participant added",
		append(metadata.logAttrs(), "account_id", req.AccountID, "participant_id", participant.ID, "invoice_number", invoice.InvoiceNumber)...)

	message := "Participant added successfully! Existing invoice updated."
	if newInvoice {
		message = "Participant added successfully! New invoice generated."
	}

	return &dto.AddParticipantResponse{
		Message:     message,
		Participant: ToParticipantDTO(*participant),
		Invoice:     ToInvoiceSummaryDTO(*invoice, participantCount, utils.DateOnly(f.now())),
	}, nil
}

// BulkAddParticipants imports one "Name,Email,Phone" row per line.
// Rejected lines are reported, accepted ones share one open invoice that is repriced once.
func (f *ParticipantFlowImpl) BulkAddParticipants(ctx context.Context, req *dto.BulkAddParticipantsRequest, metadata *ClientMetadata) (*dto.BulkAddParticipantsResponse, error) {
	lines := strings.Split(strings.TrimSpace(req.Data), "\n")

	accepted := make([]*models.Participant, 0, len(lines))
	lineErrors := make([]dto.BulkLineError, 0)
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		name, email, phone, problem := parseBulkLine(line)
		if problem != "" {
			lineErrors = append(lineErrors, dto.BulkLineError{
				Line:    lineNo,
				Message: fmt.Sprintf("Line %d: %s", lineNo, problem),
			})
			continue
		}

		accepted = append(accepted, &models.Participant{
			AccountID: req.AccountID,
			Name:      name,
			Email:     email,
			Phone:     phone,
		})
	}

	if len(lineErrors) > 0 {
		bulkLineErrorsTotal.Add(float64(len(lineErrors)))
	}

	resp := &dto.BulkAddParticipantsResponse{Errors: lineErrors}
	if len(accepted) == 0 {
		resp.Message = "No participants were added."
		return resp, nil
	}

	var invoice *models.Invoice
	var participantCount int

	err := f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		open, _, err := f.ledger.GetOrCreateOpenInvoice(txCtx, req.AccountID)
		if err != nil {
			return err
		}

		if err := f.participantRepo.SaveBatch(txCtx, accepted); err != nil {
			return persistence("create participants", err)
		}

		ids := make([]uint, 0, len(accepted))
		for _, p := range accepted {
			ids = append(ids, p.ID)
		}
		if err := f.invoiceRepo.AttachParticipants(txCtx, open.ID, ids); err != nil {
			return persistence("attach participants", err)
		}

		invoice, err = f.ledger.Recompute(txCtx, open.ID)
		if err != nil {
			return err
		}

		participantCount, err = f.invoiceRepo.CountParticipants(txCtx, invoice.ID)
		return persistence("count participants", err)
	})
	if err != nil {
		return nil, NewBusinessError("BULK_ADD_PARTICIPANTS_FAILED", "Failed to add participants", err)
	}

	participantsAddedTotal.WithLabelValues("bulk").Add(float64(len(accepted)))
	slog.InfoContext(ctx, "Participants imported",
		append(metadata.logAttrs(), "account_id", req.AccountID, "added", len(accepted), "rejected", len(lineErrors), "invoice_number", invoice.InvoiceNumber)...)

	summary := ToInvoiceSummaryDTO(*invoice, participantCount, utils.DateOnly(f.now()))
	resp.AddedCount = len(accepted)
	resp.Invoice = &summary
	resp.Message = fmt.Sprintf("Successfully added %d participants! Invoice updated.", len(accepted))
	return resp, nil
}

// ListParticipants pages through every participant the caller registered, newest first
func (f *ParticipantFlowImpl) ListParticipants(ctx context.Context, req *dto.ListParticipantsRequest, metadata *ClientMetadata) (*dto.ListParticipantsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := models.ParticipantFilter{AccountID: &req.AccountID}

	total, err := f.participantRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_PARTICIPANTS_FAILED", "Failed to list participants", persistence("count participants", err))
	}

	rows, err := f.participantRepo.ByFilter(ctx, filter, repository.ParticipantOrderNewest, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_PARTICIPANTS_FAILED", "Failed to list participants", persistence("list participants", err))
	}

	return &dto.ListParticipantsResponse{
		Participants: ToParticipantDTOs(rows),
		TotalCount:   total,
		Pagination:   paginationInfo(total, page, pageSize),
	}, nil
}

// ExportParticipants renders all of the caller's participants as CSV or XLSX
func (f *ParticipantFlowImpl) ExportParticipants(ctx context.Context, req *dto.ExportParticipantsRequest, metadata *ClientMetadata) (*dto.ExportFile, error) {
	format := exportFormat(req.Format)

	rows, err := f.participantRepo.ByFilter(ctx, models.ParticipantFilter{AccountID: &req.AccountID}, repository.ParticipantOrderAdded, 0, 0)
	if err != nil {
		return nil, NewBusinessError("EXPORT_PARTICIPANTS_FAILED", "Failed to export participants", persistence("list participants", err))
	}

	header := []string{"name", "email", "phone", "registered_at"}
	records := make([][]string, 0, len(rows))
	for _, p := range rows {
		records = append(records, []string{p.Name, p.Email, p.Phone, p.CreatedAt.UTC().Format(time.RFC3339)})
	}

	contentType, data, err := f.renderer.Table(format, "participants", header, records)
	if err != nil {
		return nil, renderError("EXPORT_PARTICIPANTS_FAILED", "Failed to export participants", err)
	}

	return &dto.ExportFile{
		FileName:    "participants." + format,
		ContentType: contentType,
		Content:     data,
	}, nil
}

// DetachParticipant removes a participant from an editable invoice and reprices it.
// The participant row itself is kept.
func (f *ParticipantFlowImpl) DetachParticipant(ctx context.Context, req *dto.DetachParticipantRequest, metadata *ClientMetadata) (*dto.DetachParticipantResponse, error) {
	var invoice *models.Invoice
	var participantCount int

	err := f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := f.invoiceRepo.LockByID(txCtx, req.InvoiceID)
		if err != nil {
			return persistence("lock invoice", err)
		}
		if inv == nil {
			return ErrInvoiceNotFound
		}
		if !req.IsStaff && inv.AccountID != req.AccountID {
			return ErrInvoiceAccessDenied
		}
		if !inv.IsEditable() {
			return ErrInvoiceNotEditable
		}

		removed, err := f.invoiceRepo.DetachParticipant(txCtx, inv.ID, req.ParticipantID)
		if err != nil {
			return persistence("detach participant", err)
		}
		if !removed {
			return ErrParticipantNotOnInvoice
		}

		invoice, err = f.ledger.Recompute(txCtx, inv.ID)
		if err != nil {
			return err
		}

		participantCount, err = f.invoiceRepo.CountParticipants(txCtx, inv.ID)
		return persistence("count participants", err)
	})
	if err != nil {
		return nil, NewBusinessError("DETACH_PARTICIPANT_FAILED", "Failed to remove participant from invoice", err)
	}

	slog.InfoContext(ctx, "Participant detached",
		append(metadata.logAttrs(), "invoice_number", invoice.InvoiceNumber, "participant_id", req.ParticipantID, "by_staff", req.IsStaff)...)

	return &dto.DetachParticipantResponse{
		Message: "Participant removed. Invoice updated.",
		Invoice: ToInvoiceSummaryDTO(*invoice, participantCount, utils.DateOnly(f.now())),
	}, nil
}

// exportFormat defaults an empty format to CSV
func exportFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return dto.ExportFormatCSV
	}
	return format
}

// renderError maps a renderer failure to a BusinessError
func renderError(code, message string, err error) error {
	if errors.Is(err, services.ErrUnsupportedFormat) {
		return NewBusinessError(code, message, ErrUnsupportedExportFormat)
	}
	return NewBusinessError(code, message, err)
}
