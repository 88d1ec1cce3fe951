package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"github.com/filmgate/auth-service/internal/storage"
)

// MFASetup is handed back once at enrollment; the secret is never shown
// again.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// MFAService wraps TOTP enrollment and verification on top of the user
// store.
type MFAService struct {
	users  UserRepository
	tokens TokenProvider
	issuer string
}

func NewMFAService(users UserRepository, tokens TokenProvider, issuer string) *MFAService {
	return &MFAService{users: users, tokens: tokens, issuer: issuer}
}

// Setup generates a new TOTP secret for the user and stores it in a
// pending state. Enrollment completes on the first successful Verify.
func (m *MFAService) Setup(ctx context.Context, userID uuid.UUID) (*MFASetup, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: user.Login,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	secret := key.Secret()
	user.MFASecret = &secret
	user.MFAEnabled = false
	if err := m.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("store mfa secret: %w", err)
	}

	return &MFASetup{Secret: secret, OTPAuthURL: key.URL()}, nil
}

// Verify checks a TOTP code. The first success flips the account to
// MFA-enabled; every success yields an access token carrying the
// mfa_verified claim.
func (m *MFAService) Verify(ctx context.Context, userID uuid.UUID, code string) (IssuedToken, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return IssuedToken{}, ErrUserNotFound
		}
		return IssuedToken{}, fmt.Errorf("load user: %w", err)
	}
	if user.MFASecret == nil {
		return IssuedToken{}, ErrMFANotEnrolled
	}

	if !totp.Validate(code, *user.MFASecret) {
		return IssuedToken{}, ErrInvalidMFACode
	}

	if !user.MFAEnabled {
		user.MFAEnabled = true
		if err := m.users.Update(ctx, user); err != nil {
			return IssuedToken{}, fmt.Errorf("enable mfa: %w", err)
		}
	}

	return m.tokens.IssueAccess(user.ID, user.Login, true)
}
