package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/services"
	"github.com/apaysummit/summit-registration/repository/memory"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	to      string
	subject string
	body    string
}

// outbox records emails instead of sending them
type outbox struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (o *outbox) SendEmail(email, subject, message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentEmail{to: email, subject: subject, body: message})
	return nil
}

func (o *outbox) last() sentEmail {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return sentEmail{}
	}
	return o.sent[len(o.sent)-1]
}

func newTestAuthFlow(t *testing.T, s *memory.Store) (*AuthFlowImpl, *outbox) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, "summit-test", "summit-test", false, "", "", "test-secret-key-for-auth-flow", nil)
	require.NoError(t, err)

	mail := &outbox{}
	f := NewAuthFlow(s.Accounts(), s.Profiles(), s, tokens, mail, services.NewMemoryCache(), "https://summit.example.co.ke/", 8).(*AuthFlowImpl)
	f.now = func() time.Time { return fixedNow }
	f.dispatch = func(fn func()) { fn() }
	return f, mail
}

func registration(username string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Username:        username,
		Email:           username + "@example.co.ke",
		Password:        "summit-2026",
		ConfirmPassword: "summit-2026",
		CompanyName:     "Apay Ltd",
		Phone:           "+254712345678",
	}
}

// registerVerified registers username and follows the verification link
func registerVerified(t *testing.T, f *AuthFlowImpl, s *memory.Store, username string) *dto.RegisterResponse {
	t.Helper()
	ctx := context.Background()
	resp, err := f.Register(ctx, registration(username), nil)
	require.NoError(t, err)

	profile, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	_, err = f.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: *profile.VerificationToken}, nil)
	require.NoError(t, err)
	return resp
}

func TestAuthFlow_Register(t *testing.T) {
	s := memory.New()
	flow, mail := newTestAuthFlow(t, s)
	ctx := context.Background()

	resp, err := flow.Register(ctx, registration("wanjiku"), nil)
	require.NoError(t, err)
	assert.True(t, resp.VerificationSent)
	assert.Equal(t, "Registration successful! Please check your email (wanjiku@example.co.ke) to verify your account before logging in.", resp.Message)
	assert.Equal(t, "Apay Ltd", resp.Account.CompanyName)
	assert.False(t, resp.Account.EmailVerified)

	account, err := s.Accounts().ByID(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "summit-2026", account.PasswordHash)

	profile, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	require.NotNil(t, profile, "the profile is created with the account")
	require.NotNil(t, profile.VerificationToken)
	assert.Len(t, *profile.VerificationToken, 32)
	assert.Equal(t, fixedNow, *profile.VerificationSentAt)

	sent := mail.last()
	assert.Equal(t, "wanjiku@example.co.ke", sent.to)
	assert.Equal(t, services.VerificationEmailSubject, sent.subject)
	assert.Contains(t, sent.body, "https://summit.example.co.ke/invoices/verify-email/"+*profile.VerificationToken+"/")
}

func TestAuthFlow_RegisterRejections(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	ctx := context.Background()
	_, err := flow.Register(ctx, registration("wanjiku"), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(r *dto.RegisterRequest)
		fields  []string
		wantErr error
	}{
		{
			name:   "bad username and short password",
			mutate: func(r *dto.RegisterRequest) { r.Username = "wa nj"; r.Password = "short"; r.ConfirmPassword = "short" },
			fields: []string{"username", "password"},
		},
		{
			name:   "mismatched passwords and foreign phone",
			mutate: func(r *dto.RegisterRequest) { r.ConfirmPassword = "other-password"; r.Phone = "+15551234567" },
			fields: []string{"phone", "confirm_password"},
		},
		{
			name:    "username taken",
			mutate:  func(r *dto.RegisterRequest) { r.Username = "wanjiku"; r.Email = "fresh@example.co.ke" },
			wantErr: ErrUsernameTaken,
		},
		{
			name:    "email taken ignoring case",
			mutate:  func(r *dto.RegisterRequest) { r.Email = "WANJIKU@example.co.ke" },
			wantErr: ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registration("otieno")
			tt.mutate(req)
			_, err := flow.Register(ctx, req, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			got := make([]string, 0)
			for _, f := range ValidationFields(err) {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestAuthFlow_VerifyEmail(t *testing.T) {
	s := memory.New()
	flow, mail := newTestAuthFlow(t, s)
	ctx := context.Background()

	resp, err := flow.Register(ctx, registration("wanjiku"), nil)
	require.NoError(t, err)
	profile, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	token := *profile.VerificationToken

	_, err = flow.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: "not-a-token"}, nil)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)

	verified, err := flow.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: token}, nil)
	require.NoError(t, err)
	assert.True(t, verified.Account.EmailVerified)
	assert.Equal(t, services.WelcomeEmailSubject, mail.last().subject)

	_, err = flow.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: token}, nil)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken, "the token is consumed")
}

func TestAuthFlow_VerifyEmailExpired(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	ctx := context.Background()

	resp, err := flow.Register(ctx, registration("wanjiku"), nil)
	require.NoError(t, err)
	profile, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)

	flow.now = func() time.Time { return fixedNow.Add(utils.VerificationTokenTTL + time.Minute) }
	_, err = flow.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: *profile.VerificationToken}, nil)
	assert.ErrorIs(t, err, ErrVerificationExpired)

	stored, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailVerified)
}

func TestAuthFlow_ResendVerification(t *testing.T) {
	s := memory.New()
	flow, mail := newTestAuthFlow(t, s)
	ctx := context.Background()

	resp, err := flow.Register(ctx, registration("wanjiku"), nil)
	require.NoError(t, err)
	before, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	oldToken := *before.VerificationToken

	_, err = flow.ResendVerification(ctx, &dto.ResendVerificationRequest{Email: "nobody@example.co.ke"}, nil)
	assert.ErrorIs(t, err, ErrEmailNotRegistered)

	resent, err := flow.ResendVerification(ctx, &dto.ResendVerificationRequest{Email: "wanjiku@example.co.ke"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Verification email sent to wanjiku@example.co.ke. Please check your inbox.", resent.Message)

	after, err := s.Profiles().ByAccountID(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, *after.VerificationToken)
	assert.Contains(t, mail.last().body, *after.VerificationToken)

	_, err = flow.ResendVerification(ctx, &dto.ResendVerificationRequest{Email: "wanjiku@example.co.ke"}, nil)
	assert.ErrorIs(t, err, ErrResendTooSoon)

	_, err = flow.VerifyEmail(ctx, &dto.VerifyEmailRequest{Token: *after.VerificationToken}, nil)
	require.NoError(t, err)
	require.NoError(t, flow.cache.Delete(ctx, resendThrottlePrefix+"wanjiku@example.co.ke"))

	_, err = flow.ResendVerification(ctx, &dto.ResendVerificationRequest{Email: "wanjiku@example.co.ke"}, nil)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestAuthFlow_Login(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	ctx := context.Background()

	registerVerified(t, flow, s, "wanjiku")
	_, err := flow.Register(ctx, registration("otieno"), nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{name: "username", identifier: "wanjiku", password: "summit-2026"},
		{name: "email", identifier: "wanjiku@example.co.ke", password: "summit-2026"},
		{name: "wrong password", identifier: "wanjiku", password: "summit-2025", wantErr: ErrInvalidCredentials},
		{name: "unknown username", identifier: "kamau", password: "summit-2026", wantErr: ErrInvalidCredentials},
		{name: "unknown email", identifier: "kamau@example.co.ke", password: "summit-2026", wantErr: ErrEmailNotRegistered},
		{name: "unverified", identifier: "otieno", password: "summit-2026", wantErr: ErrEmailNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := flow.Login(ctx, &dto.LoginRequest{Identifier: tt.identifier, Password: tt.password}, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "wanjiku", resp.Account.Username)
			assert.Equal(t, "Bearer", resp.Session.TokenType)
			assert.Equal(t, 3600, resp.Session.ExpiresIn)
			require.NotNil(t, resp.Account.LastLoginAt)

			claims, err := flow.tokenService.ValidateToken(ctx, resp.Session.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, resp.Account.ID, claims.AccountID)
			assert.False(t, claims.IsStaff)
		})
	}

	account, err := s.Accounts().ByUsername(ctx, "wanjiku")
	require.NoError(t, err)
	require.NotNil(t, account.LastLoginAt)
	assert.Equal(t, fixedNow, *account.LastLoginAt)
}

func TestAuthFlow_LoginInactive(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	ctx := context.Background()

	reg := registerVerified(t, flow, s, "wanjiku")
	account, err := s.Accounts().ByID(ctx, reg.Account.ID)
	require.NoError(t, err)
	account.IsActive = utils.ToPtr(false)
	require.NoError(t, s.Accounts().Update(ctx, account))

	_, err = flow.Login(ctx, &dto.LoginRequest{Identifier: "wanjiku", Password: "summit-2026"}, nil)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthFlow_RefreshAndLogout(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	ctx := context.Background()
	registerVerified(t, flow, s, "wanjiku")

	login, err := flow.Login(ctx, &dto.LoginRequest{Identifier: "wanjiku", Password: "summit-2026"}, nil)
	require.NoError(t, err)

	refreshed, err := flow.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: login.Session.RefreshToken}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Session.AccessToken)

	_, err = flow.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: login.Session.RefreshToken}, nil)
	assert.ErrorIs(t, err, services.ErrTokenRevoked, "refresh tokens are single use")

	_, err = flow.Logout(ctx, &dto.LogoutRequest{AccessToken: refreshed.Session.AccessToken, RefreshToken: refreshed.Session.RefreshToken}, nil)
	require.NoError(t, err)

	_, err = flow.tokenService.ValidateToken(ctx, refreshed.Session.AccessToken)
	assert.True(t, errors.Is(err, services.ErrTokenRevoked))
}

func TestAuthFlow_EmailFailureDoesNotFailRegistration(t *testing.T) {
	s := memory.New()
	flow, mail := newTestAuthFlow(t, s)
	mail.err = errors.New("smtp: connection refused")

	resp, err := flow.Register(context.Background(), registration("wanjiku"), nil)
	require.NoError(t, err)
	assert.True(t, resp.VerificationSent)
}

func TestAuthFlow_Profile(t *testing.T) {
	s := memory.New()
	flow, _ := newTestAuthFlow(t, s)
	reg := registerVerified(t, flow, s, "wanjiku")

	got, err := flow.Profile(context.Background(), &dto.ProfileRequest{AccountID: reg.Account.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "wanjiku", got.Username)
	assert.Equal(t, "+254712345678", got.Phone)
	assert.True(t, got.EmailVerified)

	_, err = flow.Profile(context.Background(), &dto.ProfileRequest{AccountID: 404}, nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
