package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestFunc(t *testing.T) {
	var got time.Duration
	Func(func(d time.Duration) { got = d }).Push(time.Minute)
	if got != time.Minute {
		t.Fatalf("expected 1m, got %v", got)
	}
	var nilFunc Func
	nilFunc.Push(time.Second)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}.Push(90*time.Second + 300*time.Millisecond)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["elapsed"] != "1m30s" {
		t.Fatalf("unexpected elapsed %v", rec["elapsed"])
	}
	if rec["elapsed_seconds"] != float64(90) {
		t.Fatalf("unexpected elapsed_seconds %v", rec["elapsed_seconds"])
	}
	Log{}.Push(time.Second)
}

func TestMulti(t *testing.T) {
	var order []string
	m := Multi{
		Func(func(time.Duration) { order = append(order, "a") }),
		nil,
		Func(func(time.Duration) { order = append(order, "b") }),
	}
	m.Push(time.Minute)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected fan-out %v", order)
	}
}
