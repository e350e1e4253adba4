package models

import (
	"time"
)

// Participant is a person registered for the summit by an account.
// Participants are never removed automatically; detaching one from an invoice keeps the row.
type Participant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index:idx_participants_account_id" json:"account_id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Email     string    `gorm:"size:254;not null" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_participants_created_at" json:"created_at"`

	Account *Account `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Participant) TableName() string {
	return "participants"
}

// ParticipantFilter represents filter criteria for participant queries
type ParticipantFilter struct {
	ID        *uint
	AccountID *uint
	InvoiceID *uint
	Email     *string
}
