package ratelimit

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Key names a throttling bucket. The governance client uses one bucket per
// API family of a tenant, e.g. {tenant.example.com, search}.
type Key struct {
	Tenant string
	Bucket string
}

// Normalized lower-cases and trims both parts so lookups ignore spelling.
func (k Key) Normalized() Key {
	return Key{
		Tenant: strings.ToLower(strings.TrimSpace(k.Tenant)),
		Bucket: strings.ToLower(strings.TrimSpace(k.Bucket)),
	}
}

func (k Key) String() string {
	return k.Tenant + "/" + k.Bucket
}

// State is the last known quota of a bucket and any open throttle window.
type State struct {
	Key            Key
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
	Metadata       map[string]any
}

// Clone returns a copy that shares no pointers or metadata with s.
func (s State) Clone() State {
	clone := s
	clone.ResetAt = copyPointer(s.ResetAt)
	clone.RetryAfter = copyPointer(s.RetryAfter)
	clone.ThrottledUntil = copyPointer(s.ThrottledUntil)
	clone.Metadata = cloneMetadata(s.Metadata)
	return clone
}

// blockedFor reports how long calls must wait at now, if at all.
func (s State) blockedFor(now time.Time) (time.Duration, bool) {
	if s.ThrottledUntil != nil && now.Before(*s.ThrottledUntil) {
		return s.ThrottledUntil.Sub(now), true
	}
	if s.Remaining == 0 && s.ResetAt != nil && now.Before(*s.ResetAt) {
		return s.ResetAt.Sub(now), true
	}
	return 0, false
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

// MemoryStateStore keeps bucket state for a single process.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, errors.New("ratelimit: state store is nil")
	}
	s.mu.RLock()
	state, ok := s.states[key.Normalized()]
	s.mu.RUnlock()
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return errors.New("ratelimit: state store is nil")
	}
	state = state.Clone()
	state.Key = state.Key.Normalized()
	s.mu.Lock()
	s.states[state.Key] = state
	s.mu.Unlock()
	return nil
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return maps.Clone(metadata)
}

func copyPointer[T any](in *T) *T {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
