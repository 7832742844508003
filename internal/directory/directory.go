// Package directory resolves organizational hierarchy facts (who manages
// whom) from the company profile service.
package directory

import (
	"context"
	"errors"
)

// ErrNoManager is returned when a user's profile has no manager on file.
var ErrNoManager = errors.New("no manager on file")

// Directory answers manager lookups for a login identity.
type Directory interface {
	// GetManager returns the user id of the manager for the given login.
	// ErrNoManager when the profile exists but lists no manager.
	GetManager(ctx context.Context, login string) (int64, error)
}

// Static is a fixed login->manager map, for tests and local development.
type Static map[string]int64

func (s Static) GetManager(ctx context.Context, login string) (int64, error) {
	id, ok := s[login]
	if !ok {
		return 0, ErrNoManager
	}
	return id, nil
}
