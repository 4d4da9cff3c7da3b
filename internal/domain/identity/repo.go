package identity

import "context"

// UserRepository is read-only user lookup. Account management lives in the
// auth service; this side only resolves identities already on file.
type UserRepository interface {
	// GetByID returns the user, or nil when no such user exists.
	GetByID(ctx context.Context, id int64) (*User, error)
	// FindDoctor returns the user when it exists and holds the doctor
	// role, nil otherwise.
	FindDoctor(ctx context.Context, id int64) (*User, error)
}
