package storage

import (
	"time"

	"github.com/google/uuid"
)

// User is a local account. Email is optional but unique when present.
type User struct {
	ID           uuid.UUID
	Login        string
	PasswordHash string
	Email        *string
	IsSuperuser  bool
	MFASecret    *string
	MFAEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Role groups a set of free-form permission strings under a unique name.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description *string
	Permissions []string
	CreatedAt   time.Time
}

// LoginHistoryEntry is one append-only audit row. The backing table is
// range-partitioned by LoginAt, so (LoginAt, ID) is the primary key.
type LoginHistoryEntry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	LoginAt   time.Time
	IPAddress string
	UserAgent string
}

// SocialAccount links a federated identity to a local user.
type SocialAccount struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}
