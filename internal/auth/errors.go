package auth

import "errors"

// Sentinel errors surfaced by the auth service. The HTTP layer maps these
// to status codes; credential failures stay deliberately vague so callers
// cannot distinguish "no such login" from "wrong password".
var (
	ErrInvalidCredentials  = errors.New("incorrect login or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrLoginTaken          = errors.New("login is already taken")
	ErrUnauthorized        = errors.New("unauthorized")

	ErrMFANotEnrolled = errors.New("mfa not enrolled for user")
	ErrInvalidMFACode = errors.New("invalid mfa code")
)
