package utils

import (
	"time"
)

// Request context keys
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// Verification time constants
const (
	// VerificationTokenTTL is how long an email verification link stays valid
	VerificationTokenTTL = 24 * time.Hour

	// ResendVerificationCooldown throttles verification email resends per address
	ResendVerificationCooldown = time.Minute
)

// Invoice constants
const (
	// InvoiceDueDays is the payment window granted from the issue date
	InvoiceDueDays = 30

	// InvoiceNumberPrefix prefixes every generated invoice number
	InvoiceNumberPrefix = "INV-"

	// InvoiceCreationNote is stored on new invoices until the first recompute
	InvoiceCreationNote = "Apay Summit Registration"

	// MaxProofOfPaymentSize is the largest accepted proof upload (5 MiB)
	MaxProofOfPaymentSize = int64(5 * 1024 * 1024)

	// DashboardStatsTTL is how long staff dashboard aggregates are cached
	DashboardStatsTTL = 60 * time.Second
)
