package scanning

import (
	"context"
	"sync"
	"time"

	"github.com/anstrom/scanwrap/internal/errors"
)

// Limiter bounds how many sessions run at once and refuses to admit two
// live sessions that share an output base.
type Limiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	mutex     sync.RWMutex
	closed    bool
}

// LimiterStats is a point-in-time view of a Limiter.
type LimiterStats struct {
	Capacity       int  `json:"capacity"`
	Active         int  `json:"active"`
	AvailableSlots int  `json:"available_slots"`
	Closed         bool `json:"closed"`
}

// NewLimiter creates a limiter with the given number of slots, at least one.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &Limiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free or ctx is done. It fails with
// CodeBusy if base is already held or the limiter is closed.
func (l *Limiter) Acquire(ctx context.Context, base string) error {
	l.mutex.RLock()
	closed := l.closed
	_, held := l.active[base]
	l.mutex.RUnlock()

	if closed {
		return errors.NewScanError(errors.CodeBusy, "limiter is closed")
	}
	if held {
		return errors.ErrBusy(base)
	}

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Another caller may have claimed base while we waited.
	if _, held := l.active[base]; held || l.closed {
		select {
		case <-l.semaphore:
		default:
		}
		if l.closed {
			return errors.NewScanError(errors.CodeBusy, "limiter is closed")
		}
		return errors.ErrBusy(base)
	}
	l.active[base] = time.Now()
	return nil
}

// Release frees the slot held for base. Unknown bases are ignored.
func (l *Limiter) Release(base string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, exists := l.active[base]; !exists {
		return
	}
	delete(l.active, base)

	select {
	case <-l.semaphore:
	default:
	}
}

// Run starts s while holding a slot for its output base.
func (l *Limiter) Run(ctx context.Context, s *Session) (*Report, error) {
	base := s.Request().OutputBase()
	if err := l.Acquire(ctx, base); err != nil {
		return nil, err
	}
	defer l.Release(base)

	return s.Start(), nil
}

// Active returns the number of held slots.
func (l *Limiter) Active() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.active)
}

// AvailableSlots returns the number of free slots.
func (l *Limiter) AvailableSlots() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.capacity - len(l.active)
}

// Close rejects further acquisitions and forgets active holders.
func (l *Limiter) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.active = make(map[string]time.Time)

	for {
		select {
		case <-l.semaphore:
		default:
			return nil
		}
	}
}

// Stats returns the current counters.
func (l *Limiter) Stats() LimiterStats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return LimiterStats{
		Capacity:       l.capacity,
		Active:         len(l.active),
		AvailableSlots: l.capacity - len(l.active),
		Closed:         l.closed,
	}
}
