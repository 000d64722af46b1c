package session

import (
	"sync"
	"time"

	"github.com/sadopc/punchclock/internal/clock"
)

// source is one periodic event source that can be started and stopped on
// its own. Stopping does not wait for a callback already in flight.
type source struct {
	clk      clock.Clock
	interval time.Duration
	fn       func(time.Time)

	mu     sync.Mutex
	ticker clock.Ticker
}

func newSource(clk clock.Clock, interval time.Duration, fn func(time.Time)) *source {
	return &source{clk: clk, interval: interval, fn: fn}
}

// start is a no-op when the source is already running.
func (s *source) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}
	s.ticker = s.clk.Every(s.interval, s.fn)
}

func (s *source) stop() {
	s.mu.Lock()
	t := s.ticker
	s.ticker = nil
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (s *source) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// sessionClock pairs the elapsed-time source with the notification source.
type sessionClock struct {
	elapsed *source
	notify  *source
}

func (c *sessionClock) start() {
	c.elapsed.start()
	c.notify.start()
}

func (c *sessionClock) stop() {
	c.elapsed.stop()
	c.notify.stop()
}
