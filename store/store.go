// Package store defines the sorted collection slow-request samples are
// persisted in, with an in-memory and a Redis sorted set implementation.
package store

import (
	"context"
	"errors"
	"math"
)

// ErrStoreUnavailable wraps any transport or connection failure.
var ErrStoreUnavailable = errors.New("store unavailable")

// DefaultKey names the collection used by existing dumpslow deployments.
const DefaultKey = "dumpslow"

var (
	NegativeInfinity = math.Inf(-1)
	PositiveInfinity = math.Inf(1)
)

// Member is one stored (payload, score) pair.
type Member struct {
	Payload string
	Score   float64
}

// Store is a set of members ordered by score. Implementations must be safe for
// concurrent use; callers do no locking of their own.
type Store interface {
	// Add inserts member with the given score. Adding a (member, score) pair
	// which is already stored leaves the store unchanged.
	Add(ctx context.Context, member string, score float64) error
	// RangeByScore returns all members with min <= score <= max in ascending
	// score order. Either bound may be infinite.
	RangeByScore(ctx context.Context, min, max float64) ([]Member, error)
	// RemoveRangeByScore deletes all members with min <= score <= max.
	RemoveRangeByScore(ctx context.Context, min, max float64) error
}
