// Package notify delivers elapsed-time notifications.
package notify

import (
	"log/slog"
	"time"
)

// Func adapts a plain function.
type Func func(elapsed time.Duration)

func (f Func) Push(elapsed time.Duration) {
	if f != nil {
		f(elapsed)
	}
}

// Log writes each notification to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Push(elapsed time.Duration) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("elapsed time notification",
		"elapsed", elapsed.Truncate(time.Second).String(),
		"elapsed_seconds", int64(elapsed/time.Second))
}

type Pusher interface {
	Push(elapsed time.Duration)
}

// Multi fans a notification out to every non-nil pusher in order.
type Multi []Pusher

func (m Multi) Push(elapsed time.Duration) {
	for _, p := range m {
		if p != nil {
			p.Push(elapsed)
		}
	}
}
