package services

import (
	"fmt"
	"strings"
)

// Email subjects
const (
	VerificationEmailSubject = "Verify Your Email - Apay Summit Registration"
	WelcomeEmailSubject      = "Welcome to Apay Summit Registration System"
)

// VerificationURL builds the link a registrant follows to verify their address
func VerificationURL(siteURL, token string) string {
	return strings.TrimRight(siteURL, "/") + "/invoices/verify-email/" + token + "/"
}

// VerificationEmailBody renders the plain-text verification email
func VerificationEmailBody(username, verificationURL string) string {
	return fmt.Sprintf(`Hello %s,

Thank you for registering with Apay Summit Registration System!

Please verify your email address by clicking the link below:

%s

This link will expire in 24 hours.

If you didn't create an account, please ignore this email.

Best regards,
Apay Summit Team
`, username, verificationURL)
}

// WelcomeEmailBody renders the plain-text welcome email sent after verification
func WelcomeEmailBody(username string) string {
	return fmt.Sprintf(`Hello %s,

Welcome to the Apay Summit Registration System!

Your account has been successfully created.

You can now:
- Register participants for the summit
- Generate invoices
- Track your payments

If you have any questions, please contact our support team.

Best regards,
Apay Summit Team
`, username)
}
