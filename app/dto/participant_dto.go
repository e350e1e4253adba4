package dto

// AddParticipantRequest registers one participant for the caller
type AddParticipantRequest struct {
	AccountID uint   `json:"-"`
	Name      string `json:"name" validate:"required,max=200" example:"Jane Wanjiku"`
	Email     string `json:"email" validate:"required,email,max=254" example:"jane@example.co.ke"`
	Phone     string `json:"phone" validate:"omitempty,ke_phone" example:"0712345678"`
}

// AddParticipantResponse returns the participant and the invoice it was attached to
type AddParticipantResponse struct {
	Message     string            `json:"message"`
	Participant ParticipantDTO    `json:"participant"`
	Invoice     InvoiceSummaryDTO `json:"invoice"`
}

// BulkAddParticipantsRequest carries one "Name,Email,Phone" row per line
type BulkAddParticipantsRequest struct {
	AccountID uint   `json:"-"`
	Data      string `json:"participants_data" validate:"required"`
}

// BulkLineError reports a rejected bulk line. Line numbers start at 1.
type BulkLineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// BulkAddParticipantsResponse summarizes a bulk import
type BulkAddParticipantsResponse struct {
	Message    string             `json:"message"`
	AddedCount int                `json:"added_count"`
	Errors     []BulkLineError    `json:"errors"`
	Invoice    *InvoiceSummaryDTO `json:"invoice,omitempty"`
}

// ListParticipantsRequest pages through the caller's participants
type ListParticipantsRequest struct {
	AccountID uint `json:"-"`
	Page      int  `json:"page,omitempty" query:"page"`
	PageSize  int  `json:"page_size,omitempty" query:"page_size"`
}

// ListParticipantsResponse returns a page of participants
type ListParticipantsResponse struct {
	Participants []ParticipantDTO `json:"participants"`
	TotalCount   int64            `json:"total_count"`
	Pagination   PaginationInfo   `json:"pagination"`
}

// ExportParticipantsRequest selects the export format
type ExportParticipantsRequest struct {
	AccountID uint   `json:"-"`
	Format    string `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx"`
}

// DetachParticipantRequest removes a participant from an invoice
type DetachParticipantRequest struct {
	AccountID     uint `json:"-"`
	IsStaff       bool `json:"-"`
	InvoiceID     uint `json:"-"`
	ParticipantID uint `json:"-"`
}

// DetachParticipantResponse returns the repriced invoice
type DetachParticipantResponse struct {
	Message string            `json:"message"`
	Invoice InvoiceSummaryDTO `json:"invoice"`
}

// ParticipantDTO is the public view of a participant
type ParticipantDTO struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at"`
}
