// Package businessflow contains the core business logic and use cases for registration and invoicing
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Base classes. Specific sentinels wrap one of these so handlers can classify them.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Business flow error constants
var (
	// Lookup errors
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrInvoiceNotFound     = fmt.Errorf("invoice %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrProofNotFound       = fmt.Errorf("proof of payment %w", ErrNotFound)
	ErrProfileNotFound     = fmt.Errorf("profile %w", ErrNotFound)

	// Authorization errors
	ErrInvoiceAccessDenied = fmt.Errorf("invoice access denied: %w", ErrForbidden)
	ErrStaffOnly           = fmt.Errorf("staff access required: %w", ErrForbidden)

	// Authentication errors
	ErrInvalidCredentials       = errors.New("invalid username or password")
	ErrEmailNotRegistered       = errors.New("no account found with this email address")
	ErrEmailNotVerified         = errors.New("email address is not verified")
	ErrAccountInactive          = errors.New("account is inactive")
	ErrInvalidVerificationToken = errors.New("invalid verification link")
	ErrVerificationExpired      = errors.New("verification link has expired")
	ErrAlreadyVerified          = errors.New("email is already verified")
	ErrResendTooSoon            = errors.New("verification email was sent recently")
	ErrUsernameTaken            = errors.New("username already exists")
	ErrEmailTaken               = errors.New("email already exists")

	// Invoice state errors
	ErrInvoiceNotEditable       = errors.New("invoice can no longer be edited")
	ErrProofUploadNotAllowed    = errors.New("proof of payment cannot be uploaded for a paid or cancelled invoice")
	ErrOpenInvoiceExists        = errors.New("the account already has another pending invoice")
	ErrInvoiceNumberUnavailable = errors.New("could not allocate a unique invoice number")
	ErrParticipantNotOnInvoice  = errors.New("participant is not attached to this invoice")
	ErrProofPreviewNotSupported = errors.New("preview is only available for image proofs")
	ErrUnsupportedExportFormat  = errors.New("unsupported export format")
	ErrUnsupportedBulkAction    = errors.New("unsupported bulk action")
)

// FieldError is one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from the given field errors
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records another failing field
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed, so callers never return a typed nil
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// PersistenceError wraps a repository or storage failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps err as a PersistenceError for op; nil stays nil
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationFields returns the field errors carried by err, if any
func ValidationFields(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsEmailNotRegistered(err error) bool {
	return errors.Is(err, ErrEmailNotRegistered)
}

func IsEmailNotVerified(err error) bool {
	return errors.Is(err, ErrEmailNotVerified)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsInvalidVerificationToken(err error) bool {
	return errors.Is(err, ErrInvalidVerificationToken)
}

func IsVerificationExpired(err error) bool {
	return errors.Is(err, ErrVerificationExpired)
}

func IsAlreadyVerified(err error) bool {
	return errors.Is(err, ErrAlreadyVerified)
}

func IsResendTooSoon(err error) bool {
	return errors.Is(err, ErrResendTooSoon)
}

func IsUsernameTaken(err error) bool {
	return errors.Is(err, ErrUsernameTaken)
}

func IsEmailTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken)
}

func IsInvoiceNotEditable(err error) bool {
	return errors.Is(err, ErrInvoiceNotEditable)
}

func IsProofUploadNotAllowed(err error) bool {
	return errors.Is(err, ErrProofUploadNotAllowed)
}

func IsOpenInvoiceExists(err error) bool {
	return errors.Is(err, ErrOpenInvoiceExists)
}

func IsParticipantNotOnInvoice(err error) bool {
	return errors.Is(err, ErrParticipantNotOnInvoice)
}

func IsProofPreviewNotSupported(err error) bool {
	return errors.Is(err, ErrProofPreviewNotSupported)
}

func IsUnsupportedExportFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedExportFormat)
}

func IsUnsupportedBulkAction(err error) bool {
	return errors.Is(err, ErrUnsupportedBulkAction)
}
