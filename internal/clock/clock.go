package clock

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Clock abstracts time so session logic stays deterministic in tests.
type Clock interface {
	Now() time.Time
	// Every calls fn once per d until the returned Ticker is stopped.
	Every(d time.Duration, fn func(time.Time)) Ticker
}

// Ticker is a running periodic source.
type Ticker interface {
	Stop()
}

// System is the wall clock. Each Every call runs its own goroutine.
type System struct {
	Logger *slog.Logger
}

func (System) Now() time.Time {
	return time.Now().UTC()
}

func (s System) Every(d time.Duration, fn func(time.Time)) Ticker {
	t := &systemTicker{done: make(chan struct{})}
	tk := time.NewTicker(d)
	go func() {
		defer tk.Stop()
		for {
			select {
			case now := <-tk.C:
				s.fire(fn, now.UTC())
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (s System) fire(fn func(time.Time), now time.Time) {
	defer func() {
		if r := recover(); r != nil && s.Logger != nil {
			s.Logger.Error("tick callback panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	fn(now)
}

type systemTicker struct {
	once sync.Once
	done chan struct{}
}

func (t *systemTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}
