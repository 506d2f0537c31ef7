package domain

import (
	"context"
	"sync"
	"time"
)

// TimeoutReason is the reason reported by self-cancelling timeout tokens.
const TimeoutReason = "Operation timed out"

// CancelToken is a one-way flag that tells cooperative operations to stop at
// their next checkpoint. It transitions false -> true exactly once; later
// Cancel calls keep the first reason and timestamp.
type CancelToken struct {
	mu          sync.Mutex
	done        chan struct{}
	cancelled   bool
	reason      string
	cancelledAt time.Time
}

func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Idempotent; the first call wins and
// releases every waiter on Done exactly once.
func (t *CancelToken) Cancel(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.reason = reason
	t.cancelledAt = time.Now().UTC()
	close(t.done)
}

func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *CancelToken) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// CancelledAt returns the zero time while the token is live.
func (t *CancelToken) CancelledAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelledAt
}

// Done is closed when the token cancels.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Err is the synchronous checkpoint: nil while the token is live, a
// *CancelledError carrying the reason once it fired. Operations call it at
// every resumable step.
func (t *CancelToken) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		return nil
	}
	return &CancelledError{Reason: t.reason, CancelledAt: t.cancelledAt}
}

// Context derives a context.Context that is cancelled when either the token
// fires or the parent context ends, so the token can cross network-call
// boundaries that speak context. Callers must call the returned cancel func.
func (t *CancelToken) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// WithTimeout returns a token that cancels itself with TimeoutReason after d,
// independent of any external trigger.
func WithTimeout(d time.Duration) *CancelToken {
	t := NewCancelToken()
	timer := time.AfterFunc(d, func() {
		t.Cancel(TimeoutReason)
	})
	go func() {
		<-t.done
		timer.Stop()
	}()
	return t
}

// AnyToken returns a derived, read-only token that cancels the instant the
// first parent does and adopts that parent's reason. Parents are never
// cancelled through the child. Ties between simultaneously-cancelling parents
// resolve in scheduler order.
func AnyToken(tokens ...*CancelToken) *CancelToken {
	child := NewCancelToken()
	for _, parent := range tokens {
		if parent == nil {
			continue
		}
		if err := parent.Err(); err != nil {
			cancelled := err.(*CancelledError)
			child.Cancel(cancelled.Reason)
			return child
		}
	}
	for _, parent := range tokens {
		if parent == nil {
			continue
		}
		go func(p *CancelToken) {
			select {
			case <-p.Done():
				child.Cancel(p.Reason())
			case <-child.Done():
			}
		}(parent)
	}
	return child
}

// CancelSource exclusively owns one live token at a time.
type CancelSource struct {
	mu    sync.Mutex
	token *CancelToken
}

func NewCancelSource() *CancelSource {
	return &CancelSource{token: NewCancelToken()}
}

func (s *CancelSource) Token() *CancelToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *CancelSource) Cancel(reason string) {
	s.Token().Cancel(reason)
}

// Reset discards the current token (cancelled or not) and installs a fresh,
// live one. Holders of the old token keep observing its final state.
func (s *CancelSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = NewCancelToken()
}

// CancelAndReset cancels the current token and installs a fresh one in a
// single step from the caller's perspective.
func (s *CancelSource) CancelAndReset(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token.Cancel(reason)
	s.token = NewCancelToken()
}
