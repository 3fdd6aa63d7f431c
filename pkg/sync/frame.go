package sync

import (
	stdsync "sync"
	"time"
)

// DefaultFrameInterval approximates one rendering frame at 60 fps.
const DefaultFrameInterval = 16 * time.Millisecond

// frameLimiter coalesces rapid update requests into at most one flush per
// frame: callers overwrite a pending value elsewhere and call request; the
// flush callback runs once after the frame interval no matter how many
// requests landed in between. This is the "pending value + scheduled once"
// pattern, kept independent of any UI framework's lifecycle.
type frameLimiter struct {
	mu       stdsync.Mutex
	interval time.Duration
	timer    *time.Timer
	stopped  bool
	flush    func()
}

func newFrameLimiter(interval time.Duration, flush func()) *frameLimiter {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &frameLimiter{interval: interval, flush: flush}
}

// request schedules a flush on the next frame boundary. Calls while a flush
// is already scheduled are absorbed.
func (l *frameLimiter) request() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || l.timer != nil {
		return
	}
	l.timer = time.AfterFunc(l.interval, func() {
		l.mu.Lock()
		l.timer = nil
		stopped := l.stopped
		l.mu.Unlock()
		if !stopped {
			l.flush()
		}
	})
}

// stop cancels any scheduled flush and rejects future requests.
func (l *frameLimiter) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
