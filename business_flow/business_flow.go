// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/utils"
)

// Pagination defaults shared by every list flow
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClientMetadata holds client-related information for logging and auditing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// logAttrs returns key/value pairs for slog calls; metadata may be nil
func (cm *ClientMetadata) logAttrs() []any {
	if cm == nil {
		return nil
	}
	return []any{"request_id", cm.RequestID, "ip", cm.IPAddress}
}

// normalizePage applies the default and maximum page size and clamps page to 1
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func paginationInfo(total int64, page, pageSize int) dto.PaginationInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return dto.PaginationInfo{
		Total:      total,
		Page:       page,
		Limit:      pageSize,
		TotalPages: totalPages,
	}
}

// ToAccountDTO converts an account and its profile to the public view. profile may be nil.
func ToAccountDTO(account models.Account, profile *models.Profile) dto.AccountDTO {
	out := dto.AccountDTO{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		IsStaff:   account.IsStaff,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
	if account.LastLoginAt != nil {
		out.LastLoginAt = utils.ToPtr(account.LastLoginAt.Format(time.RFC3339))
	}
	if profile != nil {
		out.CompanyName = profile.CompanyName
		out.Address = profile.Address
		out.Phone = profile.Phone
		out.EmailVerified = profile.EmailVerified
	}
	return out
}

func ToParticipantDTO(p models.Participant) dto.ParticipantDTO {
	return dto.ParticipantDTO{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func ToParticipantDTOs(rows []*models.Participant) []dto.ParticipantDTO {
	out := make([]dto.ParticipantDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, ToParticipantDTO(*p))
	}
	return out
}

// ToInvoiceSummaryDTO converts an invoice to its list view as seen on today
func ToInvoiceSummaryDTO(inv models.Invoice, participantCount int, today time.Time) dto.InvoiceSummaryDTO {
	return dto.InvoiceSummaryDTO{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNumber,
		Status:           inv.Status,
		IssueDate:        inv.IssueDate.Format(utils.DateLayout),
		DueDate:          inv.DueDate.Format(utils.DateLayout),
		Subtotal:         inv.Subtotal,
		TaxAmount:        inv.TaxAmount,
		TotalAmount:      inv.TotalAmount,
		AmountDue:        inv.AmountDue(),
		ParticipantCount: participantCount,
		PaymentStatus:    inv.PaymentStatus(today),
		HasProof:         inv.HasProof(),
	}
}

// ToInvoiceDetailDTO converts an invoice with its items and participants to the full view
func ToInvoiceDetailDTO(inv models.Invoice, items []models.InvoiceItem, participants []*models.Participant, today time.Time) dto.InvoiceDetailDTO {
	out := dto.InvoiceDetailDTO{
		InvoiceSummaryDTO:  ToInvoiceSummaryDTO(inv, len(participants), today),
		Notes:              inv.Notes,
		PaymentDate:        utils.FormatDatePtr(inv.PaymentDate),
		PaymentReference:   inv.PaymentReference,
		PaymentMethod:      inv.PaymentMethod,
		PaymentNotes:       inv.PaymentNotes,
		ProofOriginalName:  inv.ProofOriginalName,
		CanAddParticipants: inv.CanAcceptParticipants(),
		IsEditable:         inv.IsEditable(),
		Items:              make([]dto.InvoiceItemDTO, 0, len(items)),
		Participants:       ToParticipantDTOs(participants),
	}
	if inv.ProofUploadedAt != nil {
		out.ProofUploadedAt = utils.ToPtr(inv.ProofUploadedAt.Format(time.RFC3339))
	}
	for _, item := range items {
		out.Items = append(out.Items, dto.InvoiceItemDTO{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return out
}

// ToAdminInvoiceDTO converts an invoice and its owner to a staff listing row
func ToAdminInvoiceDTO(inv models.Invoice, owner *models.Account, participantCount int, today time.Time) dto.AdminInvoiceDTO {
	out := dto.AdminInvoiceDTO{
		InvoiceSummaryDTO: ToInvoiceSummaryDTO(inv, participantCount, today),
		AccountID:         inv.AccountID,
		PaymentDate:       utils.FormatDatePtr(inv.PaymentDate),
		PaymentReference:  inv.PaymentReference,
	}
	if owner != nil {
		out.Username = owner.Username
		out.Email = owner.Email
	}
	return out
}

func ToPricingQuoteResponse(q pricing.Quote) dto.PricingQuoteResponse {
	return dto.PricingQuoteResponse{
		Count:       q.Count,
		Tier:        string(q.Tier),
		UnitPrice:   q.UnitPrice,
		Subtotal:    q.Subtotal,
		TaxAmount:   q.TaxAmount,
		TotalAmount: q.TotalAmount,
		Description: q.Description,
		Notes:       q.Notes,
		Formatted:   q.TotalAmount.String(),
	}
}
