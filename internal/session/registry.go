package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autorename/autorename/internal/logger"
)

const (
	shardBits  = 5
	shardCount = 1 << shardBits
)

// Session is the single pending action of one user.
type Session struct {
	Flow      Flow
	Awaiting  Input
	CreatedAt time.Time

	seq uint64
}

// Same reports whether both values come from the same Begin call.
func (s Session) Same(other Session) bool {
	return s.seq == other.seq && s.Flow == other.Flow
}

type shard struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// Registry holds at most one Session per user. Users hash onto independent
// shards so different users rarely contend on the same mutex.
type Registry struct {
	shards   [shardCount]shard
	ttl      time.Duration
	now      func() time.Time
	seq      atomic.Uint64
	onExpire func(userID int64, s Session)
}

type Option func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithExpireHook is called, outside any lock, for every session dropped by expiry.
func WithExpireHook(fn func(userID int64, s Session)) Option {
	return func(r *Registry) { r.onExpire = fn }
}

// NewRegistry creates a registry. A ttl of zero disables expiry.
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{ttl: ttl, now: time.Now}
	for i := range r.shards {
		r.shards[i].sessions = make(map[int64]Session)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) shardFor(userID int64) *shard {
	h := uint64(userID) * 0x9E3779B97F4A7C15
	return &r.shards[h>>(64-shardBits)]
}

func (r *Registry) expired(s Session) bool {
	return r.ttl > 0 && r.now().Sub(s.CreatedAt) >= r.ttl
}

// Begin starts flow for userID, replacing whatever was pending. The replaced
// session, if any, is returned.
func (r *Registry) Begin(userID int64, flow Flow) (current Session, replaced *Session) {
	s := Session{
		Flow:      flow,
		Awaiting:  flow.Awaits(),
		CreatedAt: r.now(),
		seq:       r.seq.Add(1),
	}

	sh := r.shardFor(userID)
	sh.mu.Lock()
	prev, had := sh.sessions[userID]
	sh.sessions[userID] = s
	sh.mu.Unlock()

	if had && !r.expired(prev) {
		return s, &prev
	}
	return s, nil
}

// Peek returns the pending session without consuming it. Expired sessions
// read as absent and are dropped.
func (r *Registry) Peek(userID int64) (Session, bool) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	s, ok := sh.sessions[userID]
	if ok && r.expired(s) {
		delete(sh.sessions, userID)
		sh.mu.Unlock()
		r.notifyExpired(userID, s)
		return Session{}, false
	}
	sh.mu.Unlock()
	return s, ok
}

// Resolve removes and returns the pending session in one step.
func (r *Registry) Resolve(userID int64) (Session, bool) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	s, ok := sh.sessions[userID]
	if ok {
		delete(sh.sessions, userID)
	}
	sh.mu.Unlock()

	if ok && r.expired(s) {
		r.notifyExpired(userID, s)
		return Session{}, false
	}
	return s, ok
}

// Complete consumes s only if it is still the pending session. A flow
// replaced between Peek and Complete is left alone.
func (r *Registry) Complete(userID int64, s Session) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.sessions[userID]
	if !ok || !cur.Same(s) {
		return false
	}
	delete(sh.sessions, userID)
	return true
}

// Cancel drops any pending session.
func (r *Registry) Cancel(userID int64) (Session, bool) {
	return r.Resolve(userID)
}

// CancelFlow drops the pending session only when it is flow.
func (r *Registry) CancelFlow(userID int64, flow Flow) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	s, ok := sh.sessions[userID]
	if !ok || s.Flow != flow {
		sh.mu.Unlock()
		return false
	}
	delete(sh.sessions, userID)
	sh.mu.Unlock()

	if r.expired(s) {
		r.notifyExpired(userID, s)
		return false
	}
	return true
}

// Len counts pending sessions, including expired ones not yet swept.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// Sweep drops every expired session and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	type dropped struct {
		userID int64
		s      Session
	}
	var gone []dropped

	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if r.expired(s) {
				delete(sh.sessions, id)
				gone = append(gone, dropped{id, s})
			}
		}
		sh.mu.Unlock()
	}

	for _, d := range gone {
		r.notifyExpired(d.userID, d.s)
	}
	return len(gone)
}

// RunJanitor sweeps every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Debug("Swept expired sessions", map[string]interface{}{
					"count": n,
				})
			}
		}
	}
}

func (r *Registry) notifyExpired(userID int64, s Session) {
	logger.Debug("Session expired", map[string]interface{}{
		"user_id": userID,
		"flow":    s.Flow.String(),
	})
	if r.onExpire != nil {
		r.onExpire(userID, s)
	}
}
