// Package models contains domain entities for summit registration and invoicing
package models

import (
	"time"
)

// Account is a registrant login. Staff accounts can see and verify every invoice.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:150;not null;uniqueIndex:uk_accounts_username" json:"username"`
	Email        string     `gorm:"size:254;not null;uniqueIndex:uk_accounts_email" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	IsStaff      bool       `gorm:"not null;default:false" json:"is_staff"`
	IsActive     *bool      `gorm:"default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:AccountID" json:"profile,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID       *uint
	Username *string
	Email    *string
	IsStaff  *bool
	IsActive *bool
}

// Profile carries registrant details and the email verification state.
type Profile struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	AccountID          uint       `gorm:"not null;uniqueIndex:uk_profiles_account_id" json:"account_id"`
	CompanyName        string     `gorm:"size:200" json:"company_name"`
	Address            string     `gorm:"type:text" json:"address"`
	Phone              string     `gorm:"size:20" json:"phone"`
	EmailVerified      bool       `gorm:"not null;default:false" json:"email_verified"`
	VerificationToken  *string    `gorm:"size:100;index:idx_profiles_verification_token" json:"-"`
	VerificationSentAt *time.Time `json:"verification_sent_at,omitempty"`
	CreatedAt          time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ProfileFilter represents filter criteria for profile queries
type ProfileFilter struct {
	AccountID         *uint
	VerificationToken *string
	EmailVerified     *bool
}

// NewProfile builds the profile that must be stored together with a new account.
// A non-empty token starts the verification window at sentAt.
func NewProfile(accountID uint, companyName, address, phone, verificationToken string, sentAt time.Time) *Profile {
	p := &Profile{
		AccountID:   accountID,
		CompanyName: companyName,
		Address:     address,
		Phone:       phone,
	}
	if verificationToken != "" {
		p.IssueVerificationToken(verificationToken, sentAt)
	}
	return p
}

// IssueVerificationToken replaces any previous token and restarts its validity window.
func (p *Profile) IssueVerificationToken(token string, sentAt time.Time) {
	p.VerificationToken = &token
	p.VerificationSentAt = &sentAt
}

// VerificationExpired reports whether the current token is older than ttl at now.
func (p *Profile) VerificationExpired(now time.Time, ttl time.Duration) bool {
	if p.VerificationSentAt == nil {
		return false
	}
	return now.After(p.VerificationSentAt.Add(ttl))
}

// MarkEmailVerified flags the address as verified and consumes the token.
func (p *Profile) MarkEmailVerified() {
	p.EmailVerified = true
	p.VerificationToken = nil
}
