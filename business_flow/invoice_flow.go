package businessflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
)

// unpaidStatuses count towards the amount an owner still has to pay
var unpaidStatuses = []string{models.InvoiceStatusPending, models.InvoiceStatusOverdue}

// InvoiceFlow serves invoice views, documents and pricing previews
type InvoiceFlow interface {
	ListInvoices(ctx context.Context, req *dto.ListInvoicesRequest, metadata *ClientMetadata) (*dto.ListInvoicesResponse, error)
	GetInvoice(ctx context.Context, req *dto.GetInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceDetailDTO, error)
	DownloadInvoicePDF(ctx context.Context, req *dto.GetInvoiceRequest, metadata *ClientMetadata) (*dto.ExportFile, error)
	AdminListInvoices(ctx context.Context, req *dto.AdminListInvoicesRequest, metadata *ClientMetadata) (*dto.AdminListInvoicesResponse, error)
	ExportInvoices(ctx context.Context, req *dto.ExportInvoicesRequest, metadata *ClientMetadata) (*dto.ExportFile, error)
	RecomputeInvoice(ctx context.Context, req *dto.RecomputeInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceDetailDTO, error)
	QuotePrice(ctx context.Context, req *dto.PricingQuoteRequest) (*dto.PricingQuoteResponse, error)
}

// invoiceReader loads invoices on behalf of a viewer and assembles their detail views
type invoiceReader struct {
	accountRepo     repository.AccountRepository
	profileRepo     repository.ProfileRepository
	participantRepo repository.ParticipantRepository
	invoiceRepo     repository.InvoiceRepository
}

// visible returns the invoice when the viewer owns it or is staff
func (r invoiceReader) visible(ctx context.Context, invoiceID, accountID uint, isStaff bool) (*models.Invoice, error) {
	inv, err := r.invoiceRepo.ByID(ctx, invoiceID)
	if err != nil {
		return nil, persistence("load invoice", err)
	}
	if inv == nil {
		return nil, ErrInvoiceNotFound
	}
	if !isStaff && inv.AccountID != accountID {
		return nil, ErrInvoiceAccessDenied
	}
	return inv, nil
}

func (r invoiceReader) participants(ctx context.Context, invoiceID uint) ([]*models.Participant, error) {
	rows, err := r.participantRepo.ByFilter(ctx, models.ParticipantFilter{InvoiceID: &invoiceID}, repository.ParticipantOrderAdded, 0, 0)
	if err != nil {
		return nil, persistence("list invoice participants", err)
	}
	return rows, nil
}

func (r invoiceReader) detail(ctx context.Context, inv *models.Invoice, today time.Time) (*dto.InvoiceDetailDTO, error) {
	items, err := r.invoiceRepo.Items(ctx, inv.ID)
	if err != nil {
		return nil, persistence("list invoice items", err)
	}

	participants, err := r.participants(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	out := ToInvoiceDetailDTO(*inv, items, participants, today)

	owner, err := r.accountRepo.ByID(ctx, inv.AccountID)
	if err != nil {
		return nil, persistence("load invoice owner", err)
	}
	if owner != nil {
		profile, err := r.profileRepo.ByAccountID(ctx, owner.ID)
		if err != nil {
			return nil, persistence("load owner profile", err)
		}
		ownerDTO := ToAccountDTO(*owner, profile)
		out.Owner = &ownerDTO
	}

	return &out, nil
}

// InvoiceFlowImpl implements InvoiceFlow
type InvoiceFlowImpl struct {
	invoiceReader
	ledger   InvoiceLedger
	renderer services.DocumentRenderer
	policy   pricing.Policy
	now      func() time.Time
}

// NewInvoiceFlow creates a new invoice flow
func NewInvoiceFlow(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	participantRepo repository.ParticipantRepository,
	invoiceRepo repository.InvoiceRepository,
	ledger InvoiceLedger,
	renderer services.DocumentRenderer,
	policy pricing.Policy,
) InvoiceFlow {
	return &InvoiceFlowImpl{
		invoiceReader: invoiceReader{
			accountRepo:     accountRepo,
			profileRepo:     profileRepo,
			participantRepo: participantRepo,
			invoiceRepo:     invoiceRepo,
		},
		ledger:   ledger,
		renderer: renderer,
		policy:   policy,
		now:      utils.UTCNow,
	}
}

func (f *InvoiceFlowImpl) today() time.Time {
	return utils.DateOnly(f.now())
}

// ListInvoices pages through the caller's invoices and totals what is still unpaid
func (f *InvoiceFlowImpl) ListInvoices(ctx context.Context, req *dto.ListInvoicesRequest, metadata *ClientMetadata) (*dto.ListInvoicesResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	owned := models.InvoiceFilter{AccountID: &req.AccountID}
	unpaid := models.InvoiceFilter{AccountID: &req.AccountID, Statuses: unpaidStatuses}

	total, err := f.invoiceRepo.Count(ctx, owned)
	if err != nil {
		return nil, NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", persistence("count invoices", err))
	}
	unpaidCount, err := f.invoiceRepo.Count(ctx, unpaid)
	if err != nil {
		return nil, NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", persistence("count unpaid invoices", err))
	}
	totalDue, err := f.invoiceRepo.SumTotal(ctx, unpaid)
	if err != nil {
		return nil, NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", persistence("sum unpaid invoices", err))
	}

	rows, err := f.invoiceRepo.ByFilter(ctx, owned, repository.InvoiceOrderNewest, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", persistence("list invoices", err))
	}

	summaries, err := f.summaries(ctx, rows)
	if err != nil {
		return nil, NewBusinessError("LIST_INVOICES_FAILED", "Failed to list invoices", err)
	}

	return &dto.ListInvoicesResponse{
		Invoices:      summaries,
		TotalInvoices: total,
		UnpaidCount:   unpaidCount,
		TotalDue:      totalDue,
		Pagination:    paginationInfo(total, page, pageSize),
	}, nil
}

func (f *InvoiceFlowImpl) summaries(ctx context.Context, rows []*models.Invoice) ([]dto.InvoiceSummaryDTO, error) {
	today := f.today()
	out := make([]dto.InvoiceSummaryDTO, 0, len(rows))
	for _, inv := range rows {
		n, err := f.invoiceRepo.CountParticipants(ctx, inv.ID)
		if err != nil {
			return nil, persistence("count participants", err)
		}
		out = append(out, ToInvoiceSummaryDTO(*inv, n, today))
	}
	return out, nil
}

// GetInvoice returns the full invoice for its owner or staff
func (f *InvoiceFlowImpl) GetInvoice(ctx context.Context, req *dto.GetInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceDetailDTO, error) {
	inv, err := f.visible(ctx, req.InvoiceID, req.AccountID, req.IsStaff)
	if err != nil {
		return nil, NewBusinessError("GET_INVOICE_FAILED", "Failed to load invoice", err)
	}

	out, err := f.detail(ctx, inv, f.today())
	if err != nil {
		return nil, NewBusinessError("GET_INVOICE_FAILED", "Failed to load invoice", err)
	}
	return out, nil
}

// DownloadInvoicePDF renders invoice_{number}.pdf for its owner or staff
func (f *InvoiceFlowImpl) DownloadInvoicePDF(ctx context.Context, req *dto.GetInvoiceRequest, metadata *ClientMetadata) (*dto.ExportFile, error) {
	inv, err := f.visible(ctx, req.InvoiceID, req.AccountID, req.IsStaff)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", err)
	}

	items, err := f.invoiceRepo.Items(ctx, inv.ID)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", persistence("list invoice items", err))
	}
	participants, err := f.participants(ctx, inv.ID)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", err)
	}
	owner, err := f.accountRepo.ByID(ctx, inv.AccountID)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", persistence("load invoice owner", err))
	}
	if owner == nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", ErrAccountNotFound)
	}
	profile, err := f.profileRepo.ByAccountID(ctx, owner.ID)
	if err != nil {
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Failed to download invoice", persistence("load owner profile", err))
	}

	data, err := f.renderer.InvoicePDF(&services.InvoiceDocument{
		Invoice:      *inv,
		Items:        items,
		Participants: participants,
		Owner:        *owner,
		Profile:      profile,
		Today:        f.today(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Invoice PDF rendering failed", append(metadata.logAttrs(), "invoice_number", inv.InvoiceNumber, "error", err)...)
		return nil, NewBusinessError("DOWNLOAD_INVOICE_FAILED", "Error generating PDF", err)
	}

	return &dto.ExportFile{
		FileName:    "invoice_" + inv.InvoiceNumber + ".pdf",
		ContentType: services.ContentTypePDF,
		Content:     data,
	}, nil
}

func adminFilter(status, search string) models.InvoiceFilter {
	filter := models.InvoiceFilter{}
	if status = strings.TrimSpace(status); status != "" {
		filter.Status = &status
	}
	if search = strings.TrimSpace(search); search != "" {
		filter.Search = &search
	}
	return filter
}

// owners loads the owners of rows, once per account
func (f *InvoiceFlowImpl) owners(ctx context.Context, rows []*models.Invoice) (map[uint]*models.Account, error) {
	out := make(map[uint]*models.Account)
	for _, inv := range rows {
		if _, ok := out[inv.AccountID]; ok {
			continue
		}
		owner, err := f.accountRepo.ByID(ctx, inv.AccountID)
		if err != nil {
			return nil, persistence("load invoice owner", err)
		}
		out[inv.AccountID] = owner
	}
	return out, nil
}

// AdminListInvoices lists every invoice for staff, filtered by status and a free-text search
func (f *InvoiceFlowImpl) AdminListInvoices(ctx context.Context, req *dto.AdminListInvoicesRequest, metadata *ClientMetadata) (*dto.AdminListInvoicesResponse, error) {
	if req.Status != "" && !models.IsValidInvoiceStatus(req.Status) {
		return nil, NewBusinessError("ADMIN_LIST_INVOICES_FAILED", "Failed to list invoices",
			NewValidationError(FieldError{Field: "status", Message: "Select a valid status."}))
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := adminFilter(req.Status, req.Search)

	total, err := f.invoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LIST_INVOICES_FAILED", "Failed to list invoices", persistence("count invoices", err))
	}

	rows, err := f.invoiceRepo.ByFilter(ctx, filter, repository.InvoiceOrderNewest, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LIST_INVOICES_FAILED", "Failed to list invoices", persistence("list invoices", err))
	}

	owners, err := f.owners(ctx, rows)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LIST_INVOICES_FAILED", "Failed to list invoices", err)
	}

	today := f.today()
	out := make([]dto.AdminInvoiceDTO, 0, len(rows))
	for _, inv := range rows {
		n, err := f.invoiceRepo.CountParticipants(ctx, inv.ID)
		if err != nil {
			return nil, NewBusinessError("ADMIN_LIST_INVOICES_FAILED", "Failed to list invoices", persistence("count participants", err))
		}
		out = append(out, ToAdminInvoiceDTO(*inv, owners[inv.AccountID], n, today))
	}

	return &dto.AdminListInvoicesResponse{
		Invoices:   out,
		Pagination: paginationInfo(total, page, pageSize),
	}, nil
}

// ExportInvoices renders the staff invoice list as CSV or XLSX
func (f *InvoiceFlowImpl) ExportInvoices(ctx context.Context, req *dto.ExportInvoicesRequest, metadata *ClientMetadata) (*dto.ExportFile, error) {
	format := exportFormat(req.Format)

	rows, err := f.invoiceRepo.ByFilter(ctx, adminFilter(req.Status, req.Search), repository.InvoiceOrderNewest, 0, 0)
	if err != nil {
		return nil, NewBusinessError("EXPORT_INVOICES_FAILED", "Failed to export invoices", persistence("list invoices", err))
	}

	owners, err := f.owners(ctx, rows)
	if err != nil {
		return nil, NewBusinessError("EXPORT_INVOICES_FAILED", "Failed to export invoices", err)
	}

	header := []string{
		"invoice_number", "username", "email", "status", "issue_date", "due_date", "participants",
		"subtotal", "tax_amount", "total_amount", "payment_date", "payment_reference", "payment_status",
	}
	today := f.today()
	records := make([][]string, 0, len(rows))
	for _, inv := range rows {
		n, err := f.invoiceRepo.CountParticipants(ctx, inv.ID)
		if err != nil {
			return nil, NewBusinessError("EXPORT_INVOICES_FAILED", "Failed to export invoices", persistence("count participants", err))
		}
		username, email := "", ""
		if owner := owners[inv.AccountID]; owner != nil {
			username, email = owner.Username, owner.Email
		}
		records = append(records, []string{
			inv.InvoiceNumber,
			username,
			email,
			inv.Status,
			inv.IssueDate.Format(utils.DateLayout),
			inv.DueDate.Format(utils.DateLayout),
			strconv.Itoa(n),
			inv.Subtotal.Decimal(),
			inv.TaxAmount.Decimal(),
			inv.TotalAmount.Decimal(),
			utils.Deref(utils.FormatDatePtr(inv.PaymentDate)),
			utils.Deref(inv.PaymentReference),
			inv.PaymentStatus(today),
		})
	}

	contentType, data, err := f.renderer.Table(format, "invoices", header, records)
	if err != nil {
		return nil, renderError("EXPORT_INVOICES_FAILED", "Failed to export invoices", err)
	}

	slog.InfoContext(ctx, "Invoices exported", append(metadata.logAttrs(), "rows", len(records), "format", format)...)

	return &dto.ExportFile{
		FileName:    "invoices_" + today.Format("20060102") + "." + format,
		ContentType: contentType,
		Content:     data,
	}, nil
}

// RecomputeInvoice reprices an invoice from its current participants
func (f *InvoiceFlowImpl) RecomputeInvoice(ctx context.Context, req *dto.RecomputeInvoiceRequest, metadata *ClientMetadata) (*dto.InvoiceDetailDTO, error) {
	inv, err := f.ledger.Recompute(ctx, req.InvoiceID)
	if err != nil {
		return nil, NewBusinessError("RECOMPUTE_INVOICE_FAILED", "Failed to recompute invoice", err)
	}

	slog.InfoContext(ctx, "Invoice recomputed", append(metadata.logAttrs(), "invoice_number", inv.InvoiceNumber, "total", inv.TotalAmount.String())...)

	out, err := f.detail(ctx, inv, f.today())
	if err != nil {
		return nil, NewBusinessError("RECOMPUTE_INVOICE_FAILED", "Failed to recompute invoice", err)
	}
	return out, nil
}

// QuotePrice prices a participant count without touching any invoice
func (f *InvoiceFlowImpl) QuotePrice(ctx context.Context, req *dto.PricingQuoteRequest) (*dto.PricingQuoteResponse, error) {
	if req.Count < 0 {
		return nil, NewBusinessError("PRICING_QUOTE_FAILED", "Invalid participant count",
			NewValidationError(FieldError{Field: "count", Message: "Count must be zero or more."}))
	}

	out := ToPricingQuoteResponse(f.policy.Price(req.Count))
	return &out, nil
}
