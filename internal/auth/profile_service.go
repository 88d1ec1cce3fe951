package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/filmgate/auth-service/internal/storage"
)

// UpdateProfileInput holds the fields a user may change. Nil means leave
// untouched.
type UpdateProfileInput struct {
	Login    *string
	Password *string
	Email    *string
}

// UpdateProfile applies partial changes to the user's own account. A
// password change rehashes; existing refresh sessions stay valid.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*storage.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if in.Login != nil && *in.Login != user.Login {
		if _, err := s.users.GetByLogin(ctx, *in.Login); err == nil {
			return nil, ErrLoginTaken
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("check login: %w", err)
		}
		user.Login = *in.Login
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if in.Email != nil {
		user.Email = in.Email
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("profile updated", "user_id", userID)
	return user, nil
}
