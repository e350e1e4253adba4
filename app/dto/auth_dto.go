package dto

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=150,username_chars" example:"apay_member"`
	Email           string `json:"email" validate:"required,email,max=254" example:"member@example.co.ke"`
	Password        string `json:"password" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	CompanyName     string `json:"company_name" validate:"omitempty,max=200" example:"Apay Ltd"`
	Address         string `json:"address" validate:"omitempty,max=1000"`
	Phone           string `json:"phone" validate:"omitempty,ke_phone" example:"+254712345678"`
}

// RegisterResponse is returned after an account has been created
type RegisterResponse struct {
	Message          string     `json:"message"`
	Account          AccountDTO `json:"account"`
	VerificationSent bool       `json:"verification_sent"`
}

// VerifyEmailRequest carries the token from the verification link
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmailResponse is returned once the address is verified
type VerifyEmailResponse struct {
	Message string     `json:"message"`
	Account AccountDTO `json:"account"`
}

// ResendVerificationRequest asks for a fresh verification link
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// ResendVerificationResponse confirms a new link was issued
type ResendVerificationResponse struct {
	Message string `json:"message"`
}

// LoginRequest represents the request payload for user login.
// An identifier containing "@" is treated as an email address, otherwise as a username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=254" example:"member@example.co.ke"`
	Password   string `json:"password" validate:"required,max=100"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Account AccountDTO `json:"account"`
	Session SessionDTO `json:"session"`
}

// SessionDTO carries a token pair
type SessionDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse returns the rotated token pair
type RefreshTokenResponse struct {
	Session SessionDTO `json:"session"`
}

// LogoutRequest revokes the presented access token and, optionally, its refresh token
type LogoutRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// LogoutResponse confirms the tokens were revoked
type LogoutResponse struct {
	Message string `json:"message"`
}

// ProfileRequest identifies the caller whose profile is requested
type ProfileRequest struct {
	AccountID uint `json:"-"`
}

// AccountDTO is the public view of an account and its profile
type AccountDTO struct {
	ID            uint    `json:"id"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	IsStaff       bool    `json:"is_staff"`
	CompanyName   string  `json:"company_name,omitempty"`
	Address       string  `json:"address,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	EmailVerified bool    `json:"email_verified"`
	LastLoginAt   *string `json:"last_login_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}
