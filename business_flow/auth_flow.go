package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/repository"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const resendThrottlePrefix = "verify-resend:"

// AuthFlow handles registration, email verification and token sessions
type AuthFlow interface {
	Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error)
	VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest, metadata *ClientMetadata) (*dto.VerifyEmailResponse, error)
	ResendVerification(ctx context.Context, req *dto.ResendVerificationRequest, metadata *ClientMetadata) (*dto.ResendVerificationResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, req *dto.LogoutRequest, metadata *ClientMetadata) (*dto.LogoutResponse, error)
	Profile(ctx context.Context, req *dto.ProfileRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	accountRepo       repository.AccountRepository
	profileRepo       repository.ProfileRepository
	txr               repository.Transactor
	tokenService      services.TokenService
	notificationSvc   services.NotificationService
	cache             services.CacheService
	siteURL           string
	minPasswordLength int

	now func() time.Time
	// dispatch runs email sends off the request path
	dispatch func(func())
}

// NewAuthFlow creates a new auth flow
func NewAuthFlow(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	txr repository.Transactor,
	tokenService services.TokenService,
	notificationSvc services.NotificationService,
	cache services.CacheService,
	siteURL string,
	minPasswordLength int,
) AuthFlow {
	return &AuthFlowImpl{
		accountRepo:       accountRepo,
		profileRepo:       profileRepo,
		txr:               txr,
		tokenService:      tokenService,
		notificationSvc:   notificationSvc,
		cache:             cache,
		siteURL:           siteURL,
		minPasswordLength: minPasswordLength,
		now:               utils.UTCNow,
		dispatch:          func(fn func()) { go fn() },
	}
}

// newVerificationToken returns a 32 character hex token
func newVerificationToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Register creates the account and its profile together, then mails a verification link
func (f *AuthFlowImpl) Register(ctx context.Context, req *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error) {
	if err := ValidateRegistration(req, f.minPasswordLength); err != nil {
		return nil, NewBusinessError("REGISTRATION_VALIDATION_FAILED", "Please correct the errors below.", err)
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if err := f.checkAvailable(ctx, username, email); err != nil {
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", fmt.Errorf("hash password: %w", err))
	}

	now := f.now()
	token := newVerificationToken()
	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
	}
	var profile *models.Profile

	err = f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.accountRepo.Save(txCtx, account); err != nil {
			return persistence("create account", err)
		}
		profile = models.NewProfile(account.ID, strings.TrimSpace(req.CompanyName), strings.TrimSpace(req.Address), strings.TrimSpace(req.Phone), token, now)
		return persistence("create profile", f.profileRepo.Save(txCtx, profile))
	})
	if err != nil {
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}

	slog.InfoContext(ctx, "Account registered", append(metadata.logAttrs(), "account_id", account.ID, "username", account.Username)...)
	f.sendVerification(ctx, account, token)

	return &dto.RegisterResponse{
		Message:          fmt.Sprintf("Registration successful! Please check your email (%s) to verify your account before logging in.", account.Email),
		Account:          ToAccountDTO(*account, profile),
		VerificationSent: true,
	}, nil
}

func (f *AuthFlowImpl) checkAvailable(ctx context.Context, username, email string) error {
	existing, err := f.accountRepo.ByUsername(ctx, username)
	if err != nil {
		return persistence("find account by username", err)
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	existing, err = f.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return persistence("find account by email", err)
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

func (f *AuthFlowImpl) sendVerification(ctx context.Context, account *models.Account, token string) {
	body := services.VerificationEmailBody(account.Username, services.VerificationURL(f.siteURL, token))
	f.sendEmail(ctx, "verification", account, services.VerificationEmailSubject, body)
}

// sendEmail mails account in the background. Failures are logged and counted, never returned.
func (f *AuthFlowImpl) sendEmail(ctx context.Context, kind string, account *models.Account, subject, body string) {
	to := account.Email
	accountID := account.ID
	f.dispatch(func() {
		if err := f.notificationSvc.SendEmail(to, subject, body); err != nil {
			emailsSentTotal.WithLabelValues(kind, "failed").Inc()
			slog.Error("Failed to send email", "kind", kind, "account_id", accountID, "error", err)
			return
		}
		emailsSentTotal.WithLabelValues(kind, "sent").Inc()
	})
}

// VerifyEmail marks the profile behind a verification token as verified and clears the token
func (f *AuthFlowImpl) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest, metadata *ClientMetadata) (*dto.VerifyEmailResponse, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, NewBusinessError("VERIFY_EMAIL_FAILED", "Invalid verification link. Please try registering again.", ErrInvalidVerificationToken)
	}

	var account *models.Account
	var profile *models.Profile

	err := f.txr.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		profile, err = f.profileRepo.ByVerificationToken(txCtx, token)
		if err != nil {
			return persistence("find profile by token", err)
		}
		if profile == nil {
			return ErrInvalidVerificationToken
		}
		if profile.VerificationExpired(f.now(), utils.VerificationTokenTTL) {
			return ErrVerificationExpired
		}

		account, err = f.accountRepo.ByID(txCtx, profile.AccountID)
		if err != nil {
			return persistence("load account", err)
		}
		if account == nil {
			return ErrAccountNotFound
		}

		profile.MarkEmailVerified()
		return persistence("update profile", f.profileRepo.Update(txCtx, profile))
	})
	if err != nil {
		message := "Failed to verify email"
		switch {
		case errors.Is(err, ErrInvalidVerificationToken):
			message = "Invalid verification link. Please try registering again."
		case errors.Is(err, ErrVerificationExpired):
			message = "Verification link has expired. Please request a new one."
		}
		return nil, NewBusinessError("VERIFY_EMAIL_FAILED", message, err)
	}

	slog.InfoContext(ctx, "Email verified", append(metadata.logAttrs(), "account_id", account.ID)...)
	f.sendEmail(ctx, "welcome", account, services.WelcomeEmailSubject, services.WelcomeEmailBody(account.Username))

	return &dto.VerifyEmailResponse{
		Message: "Email verified successfully! You can now log in to your account.",
		Account: ToAccountDTO(*account, profile),
	}, nil
}

// ResendVerification issues a fresh verification link, at most once per cooldown per address
func (f *AuthFlowImpl) ResendVerification(ctx context.Context, req *dto.ResendVerificationRequest, metadata *ClientMetadata) (*dto.ResendVerificationResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Email is required",
			NewValidationError(FieldError{Field: "email", Message: "Email is required."}))
	}

	account, err := f.accountRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Failed to resend verification email", persistence("find account by email", err))
	}
	if account == nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "No account found with this email address.", ErrEmailNotRegistered)
	}

	profile, err := f.profileRepo.ByAccountID(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Failed to resend verification email", persistence("load profile", err))
	}
	if profile != nil && profile.EmailVerified {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Your email is already verified. You can log in.", ErrAlreadyVerified)
	}

	allowed, err := f.cache.SetNX(ctx, resendThrottlePrefix+strings.ToLower(account.Email), utils.ResendVerificationCooldown)
	if err != nil {
		slog.WarnContext(ctx, "Resend throttle unavailable", append(metadata.logAttrs(), "error", err)...)
		allowed = true
	}
	if !allowed {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "A verification email was sent recently. Please wait a minute and try again.", ErrResendTooSoon)
	}

	now := f.now()
	token := newVerificationToken()
	if profile == nil {
		profile = models.NewProfile(account.ID, "", "", "", token, now)
		err = f.profileRepo.Save(ctx, profile)
	} else {
		profile.IssueVerificationToken(token, now)
		err = f.profileRepo.Update(ctx, profile)
	}
	if err != nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Failed to resend verification email", persistence("store verification token", err))
	}

	f.sendVerification(ctx, account, token)

	return &dto.ResendVerificationResponse{
		Message: fmt.Sprintf("Verification email sent to %s. Please check your inbox.", account.Email),
	}, nil
}

// Login authenticates by username or, when the identifier contains "@", by email.
// Only verified addresses may sign in.
func (f *AuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	resp, err := f.login(ctx, req)
	if err != nil {
		outcome := "failed"
		switch {
		case IsInvalidCredentials(err), IsEmailNotRegistered(err):
			outcome = "invalid_credentials"
		case IsEmailNotVerified(err):
			outcome = "unverified"
		case IsAccountInactive(err):
			outcome = "inactive"
		}
		loginAttemptsTotal.WithLabelValues(outcome).Inc()
		slog.WarnContext(ctx, "Login failed", append(metadata.logAttrs(), "identifier", req.Identifier, "outcome", outcome)...)
		return nil, NewBusinessError("LOGIN_FAILED", loginFailureMessage(err), err)
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "Account logged in", append(metadata.logAttrs(), "account_id", resp.Account.ID)...)
	return resp, nil
}

func loginFailureMessage(err error) string {
	switch {
	case IsEmailNotRegistered(err):
		return "No account found with this email address."
	case IsEmailNotVerified(err):
		return "Please verify your email address before logging in. Check your email for the verification link."
	case IsInvalidCredentials(err), IsAccountInactive(err):
		return "Invalid credentials. Please try again."
	case IsValidationError(err):
		return "Please enter both username/email and password."
	}
	return "Login failed"
}

func (f *AuthFlowImpl) login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		ve := NewValidationError()
		if identifier == "" {
			ve.Add("identifier", "Username or email is required.")
		}
		if req.Password == "" {
			ve.Add("password", "Password is required.")
		}
		return nil, ve
	}

	var account *models.Account
	var err error
	if strings.Contains(identifier, "@") {
		account, err = f.accountRepo.ByEmail(ctx, identifier)
		if err != nil {
			return nil, persistence("find account by email", err)
		}
		if account == nil {
			return nil, ErrEmailNotRegistered
		}
	} else {
		account, err = f.accountRepo.ByUsername(ctx, identifier)
		if err != nil {
			return nil, persistence("find account by username", err)
		}
		if account == nil {
			return nil, ErrInvalidCredentials
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if account.IsActive != nil && !*account.IsActive {
		return nil, ErrAccountInactive
	}

	profile, err := f.profileRepo.ByAccountID(ctx, account.ID)
	if err != nil {
		return nil, persistence("load profile", err)
	}
	if profile == nil || !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	now := f.now()
	if err := f.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, persistence("update last login", err)
	}
	account.LastLoginAt = &now

	session, err := f.newSession(account)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Account: ToAccountDTO(*account, profile),
		Session: *session,
	}, nil
}

func (f *AuthFlowImpl) newSession(account *models.Account) (*dto.SessionDTO, error) {
	access, refresh, err := f.tokenService.GenerateTokens(account.ID, account.IsStaff)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	return f.session(access, refresh), nil
}

func (f *AuthFlowImpl) session(access, refresh string) *dto.SessionDTO {
	return &dto.SessionDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(f.tokenService.AccessTokenTTL().Seconds()),
	}
}

// RefreshToken rotates a refresh token into a new token pair
func (f *AuthFlowImpl) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.RefreshTokenResponse, error) {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return nil, NewBusinessError("REFRESH_TOKEN_FAILED", "Refresh token is required",
			NewValidationError(FieldError{Field: "refresh_token", Message: "Refresh token is required."}))
	}

	access, refresh, err := f.tokenService.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		slog.WarnContext(ctx, "Token refresh rejected", append(metadata.logAttrs(), "error", err)...)
		return nil, NewBusinessError("REFRESH_TOKEN_FAILED", "Invalid or expired refresh token", err)
	}

	return &dto.RefreshTokenResponse{Session: *f.session(access, refresh)}, nil
}

// Logout revokes the access token and, when supplied, the refresh token
func (f *AuthFlowImpl) Logout(ctx context.Context, req *dto.LogoutRequest, metadata *ClientMetadata) (*dto.LogoutResponse, error) {
	for _, token := range []string{req.AccessToken, req.RefreshToken} {
		if token == "" {
			continue
		}
		if err := f.tokenService.RevokeToken(ctx, token); err != nil {
			return nil, NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
		}
	}

	slog.InfoContext(ctx, "Account logged out", metadata.logAttrs()...)
	return &dto.LogoutResponse{Message: "You have been logged out."}, nil
}

// Profile returns the caller's account together with its profile
func (f *AuthFlowImpl) Profile(ctx context.Context, req *dto.ProfileRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account, err := f.accountRepo.ByID(ctx, req.AccountID)
	if err != nil {
		return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", persistence("load account", err))
	}
	if account == nil {
		return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", ErrAccountNotFound)
	}

	profile, err := f.profileRepo.ByAccountID(ctx, account.ID)
	if err != nil {
		return nil, NewBusinessError("GET_PROFILE_FAILED", "Failed to load profile", persistence("load profile", err))
	}

	out := ToAccountDTO(*account, profile)
	return &out, nil
}
