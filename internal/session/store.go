// Package session stores per-client tutorial state and conversation
// history behind a pluggable Store interface: an in-memory store for
// single-node deployments and tests, and a redis store for anything
// that needs to survive a restart.
//
// Concurrent turns for the same session key are last-write-wins.
// Deployment assumes one browser session per user, so the stores do
// not serialize writers per key; this is a documented consistency
// caveat, not an oversight to silently fix.
package session

import (
	"context"

	"github.com/gridlens/outage-insight/internal/domain"
)

// Store persists sessions and their conversation history.
type Store interface {
	// GetOrCreate returns the session for key, creating it when absent.
	// The returned created flag lets the caller seed history exactly once.
	GetOrCreate(ctx context.Context, key string) (sess *domain.Session, created bool, err error)

	// Save writes back a session's stage and ZIP selections.
	Save(ctx context.Context, sess *domain.Session) error

	// History returns the session's messages in append order.
	History(ctx context.Context, key string) ([]domain.Message, error)

	// Append adds one message to the session's history.
	Append(ctx context.Context, key string, msg domain.Message) error
}
