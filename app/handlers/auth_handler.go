package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	businessflow "github.com/apaysummit/summit-registration/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	VerifyEmail(c fiber.Ctx) error
	ResendVerification(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	RefreshToken(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Profile(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	authFlow businessflow.AuthFlow
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(),
		authFlow:    authFlow,
	}
}

// Register handles account registration
// @Summary Register
// @Description Create an account and send an email verification link
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration data"
// @Success 201 {object} dto.APIResponse{data=dto.RegisterResponse} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Username or email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/register")
	defer cancel()

	result, err := h.authFlow.Register(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsUsernameTaken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Username already exists", "USERNAME_EXISTS", nil)
		}
		if businessflow.IsEmailTaken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		return h.respondFlowError(c, err, "Registration failed", "REGISTRATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// VerifyEmail consumes a verification link
// @Summary Verify email
// @Tags Authentication
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} dto.APIResponse{data=dto.VerifyEmailResponse} "Email verified"
// @Failure 400 {object} dto.APIResponse "Invalid or expired link"
// @Router /api/v1/auth/verify-email/{token} [get]
func (h *AuthHandler) VerifyEmail(c fiber.Ctx) error {
	req := dto.VerifyEmailRequest{Token: c.Params("token")}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/verify-email")
	defer cancel()

	result, err := h.authFlow.VerifyEmail(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidVerificationToken(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Invalid verification link"), "INVALID_VERIFICATION_TOKEN", nil)
		}
		if businessflow.IsVerificationExpired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Verification link has expired"), "VERIFICATION_EXPIRED", nil)
		}
		return h.respondFlowError(c, err, "Email verification failed", "VERIFY_EMAIL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ResendVerification issues a fresh verification link
// @Summary Resend verification email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ResendVerificationRequest true "Registered email"
// @Success 200 {object} dto.APIResponse{data=dto.ResendVerificationResponse} "Verification email sent"
// @Failure 400 {object} dto.APIResponse "Already verified"
// @Failure 404 {object} dto.APIResponse "Email not registered"
// @Failure 429 {object} dto.APIResponse "Sent too recently"
// @Router /api/v1/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c fiber.Ctx) error {
	var req dto.ResendVerificationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/resend-verification")
	defer cancel()

	result, err := h.authFlow.ResendVerification(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsEmailNotRegistered(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, businessMessage(err, "Email not registered"), "EMAIL_NOT_REGISTERED", nil)
		}
		if businessflow.IsAlreadyVerified(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Email is already verified"), "ALREADY_VERIFIED", nil)
		}
		if businessflow.IsResendTooSoon(err) {
			return h.ErrorResponse(c, fiber.StatusTooManyRequests, businessMessage(err, "Please try again later"), "RESEND_TOO_SOON", nil)
		}
		return h.respondFlowError(c, err, "Failed to resend verification email", "RESEND_VERIFICATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Login handles user authentication
// @Summary Login
// @Description Authenticate with username or email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful with tokens"
// @Failure 401 {object} dto.APIResponse "Authentication failed"
// @Failure 403 {object} dto.APIResponse "Email not verified or account inactive"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/login")
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsInvalidCredentials(err):
			return h.ErrorResponse(c, fiber.StatusUnauthorized, businessMessage(err, "Invalid username or password"), "INVALID_CREDENTIALS", nil)
		case businessflow.IsEmailNotRegistered(err):
			return h.ErrorResponse(c, fiber.StatusUnauthorized, businessMessage(err, "No account found with this email address"), "EMAIL_NOT_REGISTERED", nil)
		case businessflow.IsEmailNotVerified(err):
			return h.ErrorResponse(c, fiber.StatusForbidden, businessMessage(err, "Please verify your email"), "EMAIL_NOT_VERIFIED", nil)
		case businessflow.IsAccountInactive(err):
			return h.ErrorResponse(c, fiber.StatusForbidden, businessMessage(err, "Account is inactive"), "ACCOUNT_INACTIVE", nil)
		}
		return h.respondFlowError(c, err, "Login failed", "LOGIN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// RefreshToken rotates a token pair
// @Summary Refresh tokens
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.RefreshTokenResponse} "Tokens refreshed"
// @Failure 401 {object} dto.APIResponse "Invalid, expired or revoked refresh token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/refresh")
	defer cancel()

	result, err := h.authFlow.RefreshToken(ctx, &req, clientMetadata(c))
	if err != nil {
		if code, ok := tokenErrorCode(err); ok {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, businessMessage(err, "Invalid or expired refresh token"), code, nil)
		}
		return h.respondFlowError(c, err, "Token refresh failed", "REFRESH_TOKEN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed", result)
}

// Logout revokes the caller's access token and, when supplied, the refresh token
// @Summary Logout
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.APIResponse{data=dto.LogoutResponse} "Logged out"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.AccessToken = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")

	ctx, cancel := createRequestContext(c, "/api/v1/auth/logout")
	defer cancel()

	result, err := h.authFlow.Logout(ctx, &req, clientMetadata(c))
	if err != nil {
		if code, ok := tokenErrorCode(err); ok {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token", code, nil)
		}
		return h.respondFlowError(c, err, "Logout failed", "LOGOUT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Profile returns the caller's account and profile
// @Summary Current profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Profile"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/profile [get]
func (h *AuthHandler) Profile(c fiber.Ctx) error {
	accountID, _, ok := caller(c)
	if !ok {
		return h.unauthenticated(c)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/profile")
	defer cancel()

	result, err := h.authFlow.Profile(ctx, &dto.ProfileRequest{AccountID: accountID}, clientMetadata(c))
	if err != nil {
		if businessflow.IsNotFoundError(err) {
			log.Println("Profile lookup for authenticated account failed", err)
		}
		return h.respondFlowError(c, err, "Failed to load profile", "GET_PROFILE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Profile retrieved successfully", result)
}

// tokenErrorCode classifies token service failures
func tokenErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return "TOKEN_EXPIRED", true
	case errors.Is(err, services.ErrTokenRevoked):
		return "TOKEN_REVOKED", true
	case errors.Is(err, services.ErrNotRefresh):
		return "TOKEN_INVALID", true
	case errors.Is(err, services.ErrTokenInvalid):
		return "TOKEN_INVALID", true
	}
	return "", false
}
