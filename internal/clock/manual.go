package clock

import (
	"sync"
	"time"
)

// Manual is a clock that only moves when told to. Advance fires due tickers
// synchronously, in time order, on the caller's goroutine.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

type manualTicker struct {
	m     *Manual
	every time.Duration
	next  time.Time
	fn    func(time.Time)
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(d time.Duration, fn func(time.Time)) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{m: m, every: d, next: m.now.Add(d), fn: fn}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every tick that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due *manualTicker
		for _, t := range m.tickers {
			if t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next = due.next.Add(due.every)
		fn, at := due.fn, m.now
		m.mu.Unlock()

		fn(at)
	}
}

// Active reports how many tickers are still registered.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

func (t *manualTicker) Stop() {
	m := t.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, other := range m.tickers {
		if other == t {
			m.tickers = append(m.tickers[:i], m.tickers[i+1:]...)
			return
		}
	}
}
