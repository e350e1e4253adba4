package businessflow

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/utils"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	kenyaPhone      = regexp.MustCompile(`^\+?254\d{9}$|^0\d{9}$`)
)

const minUsernameLength = 3

// proofExtensions are the accepted proof of payment file types, compared lower-cased
var proofExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
}

// IsValidUsername reports whether s uses only letters, digits and underscores
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// IsValidEmail reports whether s looks like an email address
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidKenyanPhone accepts +2547XXXXXXXX, 2547XXXXXXXX and 07XXXXXXXX style numbers
func IsValidKenyanPhone(s string) bool {
	return kenyaPhone.MatchString(s)
}

// ValidateRegistration checks a registration payload and returns every failing field
func ValidateRegistration(req *dto.RegisterRequest, minPasswordLength int) error {
	ve := NewValidationError()

	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		ve.Add("username", "Username is required.")
	case !IsValidUsername(username):
		ve.Add("username", "Username can only contain letters, numbers, and underscores.")
	case len(username) < minUsernameLength:
		ve.Add("username", "Username must be at least 3 characters long.")
	}

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		ve.Add("email", "Email is required.")
	case !IsValidEmail(email):
		ve.Add("email", "Please enter a valid email address.")
	}

	if phone := strings.TrimSpace(req.Phone); phone != "" && !IsValidKenyanPhone(phone) {
		ve.Add("phone", "Please enter a valid Kenyan phone number (e.g., 0712345678 or +254712345678)")
	}

	if len(req.Password) < minPasswordLength {
		ve.Add("password", fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength))
	}
	if req.Password != req.ConfirmPassword {
		ve.Add("confirm_password", "Passwords don't match.")
	}

	return ve.OrNil()
}

// ValidateParticipant checks the fields of a single participant
func ValidateParticipant(name, email string) error {
	ve := NewValidationError()
	if strings.TrimSpace(name) == "" {
		ve.Add("name", "Name is required.")
	}
	if strings.TrimSpace(email) == "" {
		ve.Add("email", "Email is required.")
	}
	return ve.OrNil()
}

// ValidateProofFile checks the name, size and payment method of a proof upload
func ValidateProofFile(fileName string, size int64, method *string) error {
	ve := NewValidationError()

	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := proofExtensions[ext]; !ok {
		ve.Add("proof_of_payment", "Unsupported file type. Please upload PDF or image files (PDF, JPG, PNG, GIF).")
	}
	if size > utils.MaxProofOfPaymentSize {
		ve.Add("proof_of_payment", "File size must be less than 5MB.")
	}
	if method != nil && *method != "" && !models.IsValidPaymentMethod(*method) {
		ve.Add("payment_method", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", *method))
	}

	return ve.OrNil()
}

// parseBulkLine splits one "Name,Email,Phone" row. It returns a message when the row is rejected.
func parseBulkLine(line string) (name, email, phone, problem string) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return "", "", "", "Invalid format. Expected: Name,Email,Phone"
	}
	name = strings.TrimSpace(parts[0])
	email = strings.TrimSpace(parts[1])
	phone = strings.TrimSpace(parts[2])
	if name == "" || email == "" {
		return "", "", "", "Name and email are required"
	}
	return name, email, phone, ""
}
