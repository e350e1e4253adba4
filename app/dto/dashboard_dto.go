package dto

import "github.com/apaysummit/summit-registration/pricing"

// DashboardRequest identifies the viewer
type DashboardRequest struct {
	AccountID uint `json:"-"`
	IsStaff   bool `json:"-"`
}

// DashboardResponse holds exactly one of the staff or registrant views
type DashboardResponse struct {
	Staff *StaffDashboardDTO `json:"staff,omitempty"`
	User  *UserDashboardDTO  `json:"user,omitempty"`
}

// StaffDashboardDTO carries system-wide statistics
type StaffDashboardDTO struct {
	TotalUsers      int64         `json:"total_users"`
	TotalInvoices   int64         `json:"total_invoices"`
	PendingInvoices int64         `json:"pending_invoices"`
	TotalRevenue    pricing.Money `json:"total_revenue"`
}

// UserDashboardDTO summarizes a registrant's invoices and participants
type UserDashboardDTO struct {
	Invoices            []InvoiceSummaryDTO `json:"invoices"`
	TotalParticipants   int64               `json:"total_participants"`
	LatestInvoice       *InvoiceSummaryDTO  `json:"latest_invoice,omitempty"`
	LatestUnpaidInvoice *InvoiceSummaryDTO  `json:"latest_unpaid_invoice,omitempty"`
	CurrentAmountDue    pricing.Money       `json:"current_amount_due"`
	UnpaidInvoicesCount int                 `json:"unpaid_invoices_count"`
}
