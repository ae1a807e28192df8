package realtime

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DoyleJ11/lol-draft-canvas/internal/types"
)

const DefaultEmitInterval = 25 * time.Millisecond

// Throttle lets at most one emission through per interval per channel. The
// leading call fires; calls inside the window are dropped, never queued.
type Throttle struct {
	mu       sync.Mutex
	every    time.Duration
	limiters map[types.EventName]*rate.Limiter
	now      func() time.Time
}

func NewThrottle(every time.Duration) *Throttle {
	if every <= 0 {
		every = DefaultEmitInterval
	}
	return &Throttle{
		every:    every,
		limiters: make(map[types.EventName]*rate.Limiter),
		now:      time.Now,
	}
}

func (t *Throttle) Allow(ch types.EventName) bool { return t.AllowAt(ch, t.now()) }

func (t *Throttle) AllowAt(ch types.EventName, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	lim, ok := t.limiters[ch]
	if !ok {
		lim = rate.NewLimiter(rate.Every(t.every), 1)
		t.limiters[ch] = lim
	}
	return lim.AllowN(now, 1)
}
