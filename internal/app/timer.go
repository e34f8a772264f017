package app

import (
	"sync"
	"time"
)

// DefaultSessionBudget is the fixed time allowed for one session.
const DefaultSessionBudget = 2 * time.Hour

// TimerState is the session timer phase. Expired is terminal.
type TimerState int

const (
	TimerRunning TimerState = iota
	TimerExpired
)

func (s TimerState) String() string {
	if s == TimerExpired {
		return "expired"
	}
	return "running"
}

// SessionTimer counts down from a persisted start timestamp. Remaining time is
// always recomputed from start, so a resumed session continues where it was.
type SessionTimer struct {
	start    time.Time
	budget   time.Duration
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	state    TimerState
	started  bool
	onExpire []func()
	ticks    map[chan time.Duration]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionTimer(start time.Time, budget, interval time.Duration, now func() time.Time) *SessionTimer {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &SessionTimer{
		start:    start,
		budget:   budget,
		interval: interval,
		now:      now,
		ticks:    make(map[chan time.Duration]struct{}),
		stop:     make(chan struct{}),
	}
}

// Remaining returns budget minus elapsed time, never negative.
func (t *SessionTimer) Remaining() time.Duration {
	remaining := t.budget - t.now().Sub(t.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *SessionTimer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe registers fn to run once on expiry. If the timer already expired
// fn runs immediately.
func (t *SessionTimer) Subscribe(fn func()) {
	t.mu.Lock()
	if t.state == TimerExpired {
		t.mu.Unlock()
		fn()
		return
	}
	t.onExpire = append(t.onExpire, fn)
	t.mu.Unlock()
}

// SubscribeTicks returns a channel receiving the remaining time on every tick.
// The channel is closed when the timer stops or cancel is called.
func (t *SessionTimer) SubscribeTicks() (<-chan time.Duration, func()) {
	ch := make(chan time.Duration, 1)

	t.mu.Lock()
	select {
	case <-t.stop:
		close(ch)
		t.mu.Unlock()
		return ch, func() {}
	default:
	}
	t.ticks[ch] = struct{}{}
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.ticks[ch]; ok {
			delete(t.ticks, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// Start launches the repeating tick task and evaluates the timer once
// immediately, so an already elapsed budget expires without waiting a tick.
func (t *SessionTimer) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go t.run()
	t.Tick()
}

func (t *SessionTimer) run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if t.Tick() == TimerExpired {
				return
			}
		case <-t.stop:
			return
		}
	}
}

// Tick recomputes the remaining time, publishes it and fires expiry callbacks
// on the Running to Expired transition.
func (t *SessionTimer) Tick() TimerState {
	remaining := t.Remaining()

	t.mu.Lock()
	if t.state == TimerExpired {
		t.mu.Unlock()
		return TimerExpired
	}
	for ch := range t.ticks {
		select {
		case ch <- remaining:
		default:
			// drop the stale value so slow readers see the latest one
			select {
			case <-ch:
			default:
			}
			ch <- remaining
		}
	}
	if remaining > 0 {
		t.mu.Unlock()
		return TimerRunning
	}
	t.state = TimerExpired
	callbacks := t.onExpire
	t.onExpire = nil
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	t.Stop()
	return TimerExpired
}

// Stop cancels the tick task and closes tick subscriptions. Safe to call repeatedly.
func (t *SessionTimer) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		close(t.stop)
		for ch := range t.ticks {
			delete(t.ticks, ch)
			close(ch)
		}
		t.mu.Unlock()
	})
}
