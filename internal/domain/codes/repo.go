package codes

import "context"

type Repository interface {
	// ListByType returns all codes of the given type, ordered by key.
	ListByType(ctx context.Context, codeType string) ([]*Code, error)
	// Get returns the code for the key, or nil when absent.
	Get(ctx context.Context, keyMap string) (*Code, error)
}
