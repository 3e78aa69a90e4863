package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the user has no stored session.
var ErrNotFound = errors.New("session: not found")

// Store is the durable mapping from user key to session state. Get and Set
// are atomic at the key granularity; serialization of concurrent writers
// for the same key is the dispatcher's responsibility.
type Store interface {
	Get(ctx context.Context, userKey string) (*Session, error)
	Set(ctx context.Context, userKey string, s *Session) error
	Exists(ctx context.Context, userKey string) (bool, error)
}
