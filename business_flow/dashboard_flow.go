package businessflow

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
)

const staffStatsCacheKey = "dashboard:staff"

// DashboardFlow builds the landing view: system statistics for staff, invoice standing for registrants
type DashboardFlow interface {
	GetDashboard(ctx context.Context, req *dto.DashboardRequest, metadata *ClientMetadata) (*dto.DashboardResponse, error)
}

// DashboardFlowImpl implements DashboardFlow
type DashboardFlowImpl struct {
	accountRepo     repository.AccountRepository
	participantRepo repository.ParticipantRepository
	invoiceRepo     repository.InvoiceRepository
	cache           services.CacheService
	now             func() time.Time
}

// NewDashboardFlow creates a new dashboard flow
func NewDashboardFlow(
	accountRepo repository.AccountRepository,
	participantRepo repository.ParticipantRepository,
	invoiceRepo repository.InvoiceRepository,
	cache services.CacheService,
) DashboardFlow {
	return &DashboardFlowImpl{
		accountRepo:     accountRepo,
		participantRepo: participantRepo,
		invoiceRepo:     invoiceRepo,
		cache:           cache,
		now:             utils.UTCNow,
	}
}

func (f *DashboardFlowImpl) GetDashboard(ctx context.Context, req *dto.DashboardRequest, metadata *ClientMetadata) (*dto.DashboardResponse, error) {
	if req.IsStaff {
		stats, err := f.staffStats(ctx, metadata)
		if err != nil {
			return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to load dashboard", err)
		}
		return &dto.DashboardResponse{Staff: stats}, nil
	}

	view, err := f.userView(ctx, req.AccountID)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to load dashboard", err)
	}
	return &dto.DashboardResponse{User: view}, nil
}

// staffStats serves system-wide totals from the cache, recomputing them once the entry lapses
func (f *DashboardFlowImpl) staffStats(ctx context.Context, metadata *ClientMetadata) (*dto.StaffDashboardDTO, error) {
	var cached dto.StaffDashboardDTO
	hit, err := f.cache.GetJSON(ctx, staffStatsCacheKey, &cached)
	if err != nil {
		slog.WarnContext(ctx, "Dashboard cache read failed", append(metadata.logAttrs(), "error", err)...)
	}
	if hit {
		return &cached, nil
	}

	users, err := f.accountRepo.Count(ctx, models.AccountFilter{})
	if err != nil {
		return nil, persistence("count accounts", err)
	}
	invoices, err := f.invoiceRepo.Count(ctx, models.InvoiceFilter{})
	if err != nil {
		return nil, persistence("count invoices", err)
	}
	pending, err := f.invoiceRepo.Count(ctx, models.InvoiceFilter{Statuses: unpaidStatuses})
	if err != nil {
		return nil, persistence("count unpaid invoices", err)
	}
	paid := models.InvoiceStatusPaid
	revenue, err := f.invoiceRepo.SumTotal(ctx, models.InvoiceFilter{Status: &paid})
	if err != nil {
		return nil, persistence("sum revenue", err)
	}

	stats := &dto.StaffDashboardDTO{
		TotalUsers:      users,
		TotalInvoices:   invoices,
		PendingInvoices: pending,
		TotalRevenue:    revenue,
	}
	if err := f.cache.SetJSON(ctx, staffStatsCacheKey, stats, utils.DashboardStatsTTL); err != nil {
		slog.WarnContext(ctx, "Dashboard cache write failed", append(metadata.logAttrs(), "error", err)...)
	}
	return stats, nil
}

func (f *DashboardFlowImpl) userView(ctx context.Context, accountID uint) (*dto.UserDashboardDTO, error) {
	rows, err := f.invoiceRepo.ByFilter(ctx, models.InvoiceFilter{AccountID: &accountID}, repository.InvoiceOrderByStatus, 0, 0)
	if err != nil {
		return nil, persistence("list invoices", err)
	}

	participants, err := f.participantRepo.Count(ctx, models.ParticipantFilter{AccountID: &accountID})
	if err != nil {
		return nil, persistence("count participants", err)
	}

	today := utils.DateOnly(f.now())
	view := &dto.UserDashboardDTO{
		Invoices:          make([]dto.InvoiceSummaryDTO, 0, len(rows)),
		TotalParticipants: participants,
		CurrentAmountDue:  pricing.Money(0),
	}

	for _, inv := range rows {
		n, err := f.invoiceRepo.CountParticipants(ctx, inv.ID)
		if err != nil {
			return nil, persistence("count invoice participants", err)
		}
		summary := ToInvoiceSummaryDTO(*inv, n, today)
		view.Invoices = append(view.Invoices, summary)

		if view.LatestInvoice == nil {
			view.LatestInvoice = &summary
		}
		if slices.Contains(unpaidStatuses, inv.Status) {
			view.UnpaidInvoicesCount++
			view.CurrentAmountDue = view.CurrentAmountDue.Add(inv.TotalAmount)
			if view.LatestUnpaidInvoice == nil {
				view.LatestUnpaidInvoice = &summary
			}
		}
	}

	return view, nil
}
