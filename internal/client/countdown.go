package client

import "sync"

// DefaultQuizMinutes seeds the countdown when the quiz has no estimate.
const DefaultQuizMinutes = 20

// SubmitLatch lets exactly one submission run at a time and stays closed
// once a submission succeeded. Manual and automatic submission share it.
type SubmitLatch struct {
	mu   sync.Mutex
	busy bool
	done bool
}

// TryAcquire claims the latch. It fails while a submission is in flight or
// after one succeeded.
func (l *SubmitLatch) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy || l.done {
		return false
	}
	l.busy = true
	return true
}

// Release reopens the latch after a failed submission.
func (l *SubmitLatch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = false
}

// Complete closes the latch for good after a successful submission.
func (l *SubmitLatch) Complete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy = false
	l.done = true
}

// Countdown counts seconds down to zero and then requests an automatic
// submission through the latch, at most once.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	expired   bool

	latch    *SubmitLatch
	onExpire func()
}

// NewCountdown seeds the countdown from the quiz estimate in minutes. A
// non-positive estimate uses DefaultQuizMinutes. onExpire runs when zero is
// reached and the latch could be acquired; it must submit and then call
// Release or Complete on the latch.
func NewCountdown(minutes int, latch *SubmitLatch, onExpire func()) *Countdown {
	if minutes <= 0 {
		minutes = DefaultQuizMinutes
	}
	return &Countdown{remaining: minutes * 60, latch: latch, onExpire: onExpire}
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired reports whether zero was reached.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Tick advances the countdown by one second and returns the seconds left.
// The tick that reaches zero fires the automatic submission.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return 0
	}
	if c.remaining > 0 {
		c.remaining--
	}
	left := c.remaining
	fire := left == 0
	if fire {
		c.expired = true
	}
	c.mu.Unlock()

	if fire && c.latch.TryAcquire() && c.onExpire != nil {
		c.onExpire()
	}
	return left
}
