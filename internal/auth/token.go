package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects which signing secret and lifetime apply.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Token decode failures. ErrTokenRevoked only applies to access tokens,
// whose jti is checked against the deny list on every decode.
var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenRevoked   = errors.New("token has been revoked")
)

// Claims is the payload carried by both token kinds. Refresh tokens only
// populate the registered claims; Login and MFAVerified ride on access
// tokens.
type Claims struct {
	Login       string `json:"login,omitempty"`
	MFAVerified bool   `json:"mfa_verified"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim as a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrTokenMalformed)
	}
	return id, nil
}

// IssuedToken is a freshly signed token with its identity and expiry.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// DenyChecker reports whether a jti has been revoked.
type DenyChecker interface {
	Contains(ctx context.Context, jti string) (bool, error)
}

// TokenProvider issues and decodes the service's token pair.
type TokenProvider interface {
	IssueAccess(subject uuid.UUID, login string, mfaVerified bool) (IssuedToken, error)
	IssueRefresh(subject uuid.UUID) (IssuedToken, error)
	Decode(ctx context.Context, token string, kind TokenKind) (*Claims, error)
	DecodeAllowExpired(token string, kind TokenKind) (*Claims, error)
}

// JWTProvider signs HS256 tokens with separate secrets per kind. Every
// access-token decode consults the deny list, so revocation takes effect
// immediately instead of at expiry.
type JWTProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	denyList      DenyChecker
	now           func() time.Time
}

func NewJWTProvider(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, denyList DenyChecker) *JWTProvider {
	return &JWTProvider{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		denyList:      denyList,
		now:           time.Now,
	}
}

func (p *JWTProvider) secretFor(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return p.refreshSecret
	}
	return p.accessSecret
}

// IssueAccess signs a short-lived access token for the subject.
func (p *JWTProvider) IssueAccess(subject uuid.UUID, login string, mfaVerified bool) (IssuedToken, error) {
	now := p.now()
	expiresAt := now.Add(p.accessTTL)
	jti := uuid.NewString()

	claims := &Claims{
		Login:       login,
		MFAVerified: mfaVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// IssueRefresh signs a long-lived refresh token for the subject. The token
// carries only registered claims; its jti doubles as the session id.
func (p *JWTProvider) IssueRefresh(subject uuid.UUID) (IssuedToken, error) {
	now := p.now()
	expiresAt := now.Add(p.refreshTTL)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Decode verifies signature and expiry, then, for access tokens, rejects
// jtis present on the deny list. A deny-list lookup failure fails closed.
func (p *JWTProvider) Decode(ctx context.Context, token string, kind TokenKind) (*Claims, error) {
	claims, err := p.parse(token, kind)
	if err != nil {
		return nil, err
	}

	if kind == TokenKindAccess && p.denyList != nil {
		revoked, err := p.denyList.Contains(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check deny list: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// DecodeAllowExpired verifies the signature but tolerates an expired token.
// Logout uses this so a session can still be torn down after its refresh
// token lapses.
func (p *JWTProvider) DecodeAllowExpired(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return p.secretFor(kind), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return claims, nil
}

func (p *JWTProvider) parse(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return p.secretFor(kind), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
