package businessflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
)

// bulkActionStatus maps a staff bulk action to the status it applies
var bulkActionStatus = map[string]string{
	dto.BulkActionMarkAsPaid:      models.InvoiceStatusPaid,
	dto.BulkActionMarkAsPending:   models.InvoiceStatusPending,
	dto.BulkActionMarkAsOverdue:   models.InvoiceStatusOverdue,
	dto.BulkActionMarkAsCancelled: models.InvoiceStatusCancelled,
}

// PaymentFlow drives the payment lifecycle of invoices: proof uploads by registrants and status changes by staff
type PaymentFlow interface {
	UploadProof(ctx context.Context, req *dto.UploadProofRequest, metadata *ClientMetadata) (*dto.UploadProofResponse, error)
	DownloadProof(ctx context.Context, req *dto.ProofFileRequest, metadata *ClientMetadata) (*dto.ExportFile, error)
	PreviewProof(ctx context.Context, req *dto.ProofFileRequest, metadata *ClientMetadata) (*dto.ExportFile, error)
	UpdatePaymentStatus(ctx context.Context, req *dto.UpdatePaymentStatusRequest, metadata *ClientMetadata) (*dto.UpdatePaymentStatusResponse, error)
	BulkUpdateStatus(ctx context.Context, req *dto.BulkStatusRequest, metadata *ClientMetadata) (*dto.BulkStatusResponse, error)
}

// PaymentFlowImpl implements PaymentFlow
type PaymentFlowImpl struct {
	invoiceReader
	txr     repository.Transactor
	storage services.FileStorage
	now     func() time.Time
}

// NewPaymentFlow creates a new payment flow
func NewPaymentFlow(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	participantRepo repository.ParticipantRepository,
	invoiceRepo repository.InvoiceRepository,
	txr repository.Transactor,
	storage services.FileStorage,
) PaymentFlow {
	return &PaymentFlowImpl{
		invoiceReader: invoiceReader{
			accountRepo:     accountRepo,
			profileRepo:     profileRepo,
			participantRepo: participantRepo,
			invoiceRepo:     invoiceRepo,
		},
		txr:     txr,
		storage: storage,
		now:     utils.UTCNow,
	}
}

// UploadProof stores a proof of payment and attaches it to the invoice.
// The file is written before the transaction opens; a failed transaction removes it again.
func (f *PaymentFlowImpl) UploadProof(ctx context.Context, req *dto.UploadProofRequest, metadata *ClientMetadata) (*dto.UploadProofResponse, error) {
	method := utils.TrimPtr(req.PaymentMethod)
	if err := ValidateProofFile(req.FileName, req.Size, method); err != nil {
		proofUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, NewBusinessError("PROOF_VALIDATION_FAILED", "Proof of payment validation failed", err)
	}

	// Reject early so nothing is written for an invoice that cannot take a proof
	if _, err := f.uploadTarget(ctx, f.invoiceRepo.ByID, req); err != nil {
		proofUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, NewBusinessError("UPLOAD_PROOF_FAILED", "Failed to upload proof of payment", err)
	}

	stored, err := f.storage.Save(req.Content, filepath.Ext(req.FileName), utils.MaxProofOfPaymentSize)
	if err != nil {
		proofUploadsTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, services.ErrFileTooLarge) {
			return nil, NewBusinessError("PROOF_VALIDATION_FAILED", "Proof of payment validation failed",
				NewValidationError(FieldError{Field: "proof_of_payment", Message: "File size must be less than 5MB."}))
		}
		slog.ErrorContext(ctx, "Failed to store proof of payment", append(metadata.logAttrs(), "invoice_id", req.InvoiceID, "error", err)...)
		return nil, NewBusinessError("UPLOAD_PROOF_FAILED", "Failed to upload proof of payment", persistence("store proof file", err))
	}

	var invoice *models.Invoice
	var replaced string

	err = f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := f.uploadTarget(txCtx, f.invoiceRepo.LockByID, req)
		if err != nil {
			return err
		}

		replaced = utils.Deref(inv.ProofOfPayment)
		inv.AttachProof(stored.Path, filepath.Base(req.FileName), stored.ContentType, method, utils.TrimPtr(req.PaymentNotes), f.now())
		if err := f.invoiceRepo.Update(txCtx, inv); err != nil {
			return persistence("update invoice", err)
		}
		invoice = inv
		return nil
	})
	if err != nil {
		if rmErr := f.storage.Remove(stored.Path); rmErr != nil {
			slog.WarnContext(ctx, "Failed to remove orphaned proof file", append(metadata.logAttrs(), "path", stored.Path, "error", rmErr)...)
		}
		proofUploadsTotal.WithLabelValues("failed").Inc()
		return nil, NewBusinessError("UPLOAD_PROOF_FAILED", "Failed to upload proof of payment", err)
	}

	if replaced != "" && replaced != stored.Path {
		if err := f.storage.Remove(replaced); err != nil {
			slog.WarnContext(ctx, "Failed to remove replaced proof file", append(metadata.logAttrs(), "path", replaced, "error", err)...)
		}
	}

	proofUploadsTotal.WithLabelValues("accepted").Inc()
	slog.InfoContext(ctx, "Proof of payment uploaded",
		append(metadata.logAttrs(), "invoice_number", invoice.InvoiceNumber, "status", invoice.Status, "size", stored.Size)...)

	detail, err := f.detail(ctx, invoice, utils.DateOnly(f.now()))
	if err != nil {
		return nil, NewBusinessError("UPLOAD_PROOF_FAILED", "Failed to upload proof of payment", err)
	}

	return &dto.UploadProofResponse{
		Message: "Proof of payment uploaded successfully! Your payment will be reviewed.",
		Invoice: *detail,
	}, nil
}

// uploadTarget loads the invoice through load and checks the caller may attach a proof to it
func (f *PaymentFlowImpl) uploadTarget(ctx context.Context, load func(context.Context, uint) (*models.Invoice, error), req *dto.UploadProofRequest) (*models.Invoice, error) {
	inv, err := load(ctx, req.InvoiceID)
	if err != nil {
		return nil, persistence("load invoice", err)
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}
	if !req.IsStaff && inv.AccountID != req.AccountID {
		return nil, ErrInvoiceAccessDenied
	}
	if !inv.CanUploadProof() {
		return nil, ErrProofUploadNotAllowed
	}
	return inv, nil
}

// proofOf returns the visible invoice and checks it carries a proof
func (f *PaymentFlowImpl) proofOf(ctx context.Context, req *dto.ProofFileRequest) (*models.Invoice, error) {
	inv, err := f.visible(ctx, req.InvoiceID, req.AccountID, req.IsStaff)
	if err != nil {
		return nil, err
	}
	if !inv.HasProof() {
		return nil, ErrProofNotFound
	}
	return inv, nil
}

// DownloadProof streams the stored proof back under its original file name
func (f *PaymentFlowImpl) DownloadProof(ctx context.Context, req *dto.ProofFileRequest, metadata *ClientMetadata) (*dto.ExportFile, error) {
	inv, err := f.proofOf(ctx, req)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_PROOF_FAILED", "Failed to download proof of payment", err)
	}

	storedPath := *inv.ProofOfPayment
	rc, err := f.storage.Open(storedPath)
	if errors.Is(err, services.ErrStoredNotFound) {
		slog.WarnContext(ctx, "Proof of payment missing from storage", append(metadata.logAttrs(), "invoice_number", inv.InvoiceNumber, "path", storedPath)...)
		return nil, NewBusinessError("DOWNLOAD_PROOF_FAILED", "Failed to download proof of payment", ErrProofNotFound)
	}
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_PROOF_FAILED", "Failed to download proof of payment", persistence("open proof file", err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_PROOF_FAILED", "Failed to download proof of payment", persistence("read proof file", err))
	}

	return &dto.ExportFile{
		FileName:    proofFileName(inv),
		ContentType: proofContentType(inv),
		Content:     data,
	}, nil
}

// PreviewProof renders a JPEG thumbnail of an image proof
func (f *PaymentFlowImpl) PreviewProof(ctx context.Context, req *dto.ProofFileRequest, metadata *ClientMetadata) (*dto.ExportFile, error) {
	inv, err := f.proofOf(ctx, req)
	if err != nil {
		return nil, NewBusinessError("PREVIEW_PROOF_FAILED", "Failed to preview proof of payment", err)
	}
	if !strings.HasPrefix(proofContentType(inv), "image/") {
		return nil, NewBusinessError("PREVIEW_PROOF_FAILED", "Failed to preview proof of payment", ErrProofPreviewNotSupported)
	}

	thumb, err := f.storage.Thumbnail(*inv.ProofOfPayment)
	switch {
	case errors.Is(err, services.ErrStoredNotFound):
		return nil, NewBusinessError("PREVIEW_PROOF_FAILED", "Failed to preview proof of payment", ErrProofNotFound)
	case errors.Is(err, services.ErrNotAnImage):
		return nil, NewBusinessError("PREVIEW_PROOF_FAILED", "Failed to preview proof of payment", ErrProofPreviewNotSupported)
	case err != nil:
		return nil, NewBusinessError("PREVIEW_PROOF_FAILED", "Failed to preview proof of payment", persistence("render proof preview", err))
	}

	name := strings.TrimSuffix(proofFileName(inv), path.Ext(proofFileName(inv)))
	return &dto.ExportFile{
		FileName:    name + "_preview.jpg",
		ContentType: "image/jpeg",
		Content:     thumb,
	}, nil
}

func proofFileName(inv *models.Invoice) string {
	if name := utils.Deref(inv.ProofOriginalName); name != "" {
		return name
	}
	return path.Base(utils.Deref(inv.ProofOfPayment))
}

func proofContentType(inv *models.Invoice) string {
	if ct := utils.Deref(inv.ProofContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(path.Ext(utils.Deref(inv.ProofOfPayment))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// UpdatePaymentStatus applies a staff status change. Moves outside the standard lifecycle are allowed but flagged.
func (f *PaymentFlowImpl) UpdatePaymentStatus(ctx context.Context, req *dto.UpdatePaymentStatusRequest, metadata *ClientMetadata) (*dto.UpdatePaymentStatusResponse, error) {
	ve := NewValidationError()
	if !models.IsValidInvoiceStatus(req.Status) {
		ve.Add("status", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", req.Status))
	}
	var paymentDate *time.Time
	if raw := utils.Deref(utils.TrimPtr(req.PaymentDate)); raw != "" {
		d, err := utils.ParseDate(raw)
		if err != nil {
			ve.Add("payment_date", "Enter a valid date.")
		} else {
			paymentDate = &d
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, NewBusinessError("PAYMENT_STATUS_VALIDATION_FAILED", "Payment status validation failed", err)
	}

	invoice, from, err := f.applyStatus(ctx, req.InvoiceID, req.Status, paymentDate, utils.TrimPtr(req.PaymentReference))
	if err != nil {
		return nil, NewBusinessError("UPDATE_PAYMENT_STATUS_FAILED", "Failed to update payment status", err)
	}

	override := !models.IsStandardTransition(from, invoice.Status)
	f.logStatusChange(ctx, metadata, req.StaffID, invoice, from, override)

	detail, err := f.detail(ctx, invoice, utils.DateOnly(f.now()))
	if err != nil {
		return nil, NewBusinessError("UPDATE_PAYMENT_STATUS_FAILED", "Failed to update payment status", err)
	}

	return &dto.UpdatePaymentStatusResponse{
		Message:  "Payment status updated successfully.",
		Override: override,
		Invoice:  *detail,
	}, nil
}

// applyStatus locks one invoice and moves it to status. It returns the updated invoice and its previous status.
func (f *PaymentFlowImpl) applyStatus(ctx context.Context, invoiceID uint, status string, paymentDate *time.Time, reference *string) (*models.Invoice, string, error) {
	var invoice *models.Invoice
	var from string

	err := f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		if status == models.InvoiceStatusPending {
			// account before invoice, the same order the ledger locks in
			if err := f.lockOwner(txCtx, invoiceID); err != nil {
				return err
			}
		}

		inv, err := f.invoiceRepo.LockByID(txCtx, invoiceID)
		if err != nil {
			return persistence("lock invoice", err)
		}
		if inv == nil {
			return ErrInvoiceNotFound
		}

		if status == models.InvoiceStatusPending && inv.Status != models.InvoiceStatusPending {
			open, err := f.invoiceRepo.OpenByAccount(txCtx, inv.AccountID)
			if err != nil {
				return persistence("load open invoice", err)
			}
			if open != nil && open.ID != inv.ID {
				return fmt.Errorf("%w: %s", ErrOpenInvoiceExists, open.InvoiceNumber)
			}
		}

		from = inv.Status
		if err := inv.ApplyStatus(status, paymentDate, reference, utils.DateOnly(f.now())); err != nil {
			return NewValidationError(FieldError{Field: "status", Message: err.Error()})
		}
		if err := f.invoiceRepo.Update(txCtx, inv); err != nil {
			return persistence("update invoice", err)
		}
		invoice = inv
		return nil
	})
	return invoice, from, err
}

// lockOwner locks the account that owns invoiceID
func (f *PaymentFlowImpl) lockOwner(ctx context.Context, invoiceID uint) error {
	inv, err := f.invoiceRepo.ByID(ctx, invoiceID)
	if err != nil {
		return persistence("load invoice", err)
	}
	if inv == nil {
		return ErrInvoiceNotFound
	}
	if _, err := f.accountRepo.LockByID(ctx, inv.AccountID); err != nil {
		return persistence("lock account", err)
	}
	return nil
}

func (f *PaymentFlowImpl) logStatusChange(ctx context.Context, metadata *ClientMetadata, staffID uint, inv *models.Invoice, from string, override bool) {
	recordStatusChange(from, inv.Status, override)

	attrs := append(metadata.logAttrs(), "staff_id", staffID, "invoice_number", inv.InvoiceNumber, "from", from, "to", inv.Status)
	if override {
		slog.WarnContext(ctx, "Payment status override", attrs...)
		return
	}
	slog.InfoContext(ctx, "Payment status updated", attrs...)
}

// BulkUpdateStatus applies one staff action to many invoices, each in its own transaction.
// A failing invoice is reported and does not stop the rest.
func (f *PaymentFlowImpl) BulkUpdateStatus(ctx context.Context, req *dto.BulkStatusRequest, metadata *ClientMetadata) (*dto.BulkStatusResponse, error) {
	status, ok := bulkActionStatus[req.Action]
	if !ok {
		return nil, NewBusinessError("BULK_STATUS_FAILED", "Failed to update invoices", ErrUnsupportedBulkAction)
	}
	if len(req.InvoiceIDs) == 0 {
		return nil, NewBusinessError("BULK_STATUS_FAILED", "Failed to update invoices",
			NewValidationError(FieldError{Field: "invoice_ids", Message: "Select at least one invoice."}))
	}

	resp := &dto.BulkStatusResponse{Errors: make([]dto.BulkStatusError, 0)}
	for _, id := range req.InvoiceIDs {
		invoice, from, err := f.applyStatus(ctx, id, status, nil, nil)
		if err != nil {
			slog.WarnContext(ctx, "Bulk status change skipped an invoice", append(metadata.logAttrs(), "invoice_id", id, "action", req.Action, "error", err)...)
			resp.Errors = append(resp.Errors, dto.BulkStatusError{InvoiceID: id, Message: err.Error()})
			continue
		}
		f.logStatusChange(ctx, metadata, req.StaffID, invoice, from, !models.IsStandardTransition(from, invoice.Status))
		resp.Updated++
	}

	resp.Message = fmt.Sprintf("%d invoice(s) marked as %s.", resp.Updated, strings.ReplaceAll(status, "_", " "))
	return resp, nil
}
