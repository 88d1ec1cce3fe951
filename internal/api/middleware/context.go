package middleware

import (
	"context"
	"errors"

	"github.com/filmgate/auth-service/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when a handler asks for the principal on an
// unauthenticated request.
var ErrNoPrincipal = errors.New("no principal in context")

// WithPrincipal stores the resolved principal on the context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the resolved principal from the context.
func GetPrincipal(ctx context.Context) (*auth.Principal, error) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	if !ok || p == nil {
		return nil, ErrNoPrincipal
	}
	return p, nil
}
