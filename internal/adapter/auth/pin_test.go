package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

var ctx = context.Background()

// testN keeps scrypt cheap in tests.
const testN = 1024

func mustHash(t *testing.T, pin string) string {
	t.Helper()
	h, err := hashPIN(pin, testN)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func staticPrompt(pin string, err error) Prompter {
	return func(context.Context, string) (string, error) { return pin, err }
}

// ============================================================
// Hashing
// ============================================================

func TestHashAndVerify(t *testing.T) {
	h := mustHash(t, "4321")
	if !strings.HasPrefix(h, "scrypt$1024$8$1$") {
		t.Fatalf("unexpected hash format %q", h)
	}

	ok, err := VerifyPIN(h, "4321")
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	ok, err = VerifyPIN(h, "1234")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v %v", ok, err)
	}
}

func TestHashIsSalted(t *testing.T) {
	if mustHash(t, "0000") == mustHash(t, "0000") {
		t.Fatal("expected different salts")
	}
}

func TestHashEmptyPIN(t *testing.T) {
	if _, err := HashPIN(""); !errors.Is(err, ErrEmptyPIN) {
		t.Fatalf("expected ErrEmptyPIN, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	for _, h := range []string{"", "plain", "scrypt$x$8$1$c2FsdA$a2V5", "scrypt$1024$8$1$!!$a2V5", "bcrypt$1$2$3$4$5"} {
		if _, err := VerifyPIN(h, "1"); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", h, err)
		}
	}
}

// ============================================================
// Gate
// ============================================================

func TestPINAvailable(t *testing.T) {
	h := mustHash(t, "1")
	on := func(context.Context) bool { return true }
	off := func(context.Context) bool { return false }

	cases := []struct {
		name string
		gate *PIN
		want bool
	}{
		{"no hash", NewPIN("", staticPrompt("1", nil), on), false},
		{"no prompter", NewPIN(h, nil, on), false},
		{"disabled", NewPIN(h, staticPrompt("1", nil), off), false},
		{"enabled", NewPIN(h, staticPrompt("1", nil), on), true},
		{"nil enabled", NewPIN(h, staticPrompt("1", nil), nil), true},
	}
	for _, tc := range cases {
		if got := tc.gate.Available(ctx); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPINAuthenticate(t *testing.T) {
	h := mustHash(t, "2468")

	ok, err := NewPIN(h, staticPrompt("2468", nil), nil).Authenticate(ctx, "pin")
	if err != nil || !ok {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	ok, err = NewPIN(h, staticPrompt("1111", nil), nil).Authenticate(ctx, "pin")
	if err != nil || ok {
		t.Fatalf("expected denial, got %v %v", ok, err)
	}
	ok, err = NewPIN(h, staticPrompt("", ErrCancelled), nil).Authenticate(ctx, "pin")
	if err != nil || ok {
		t.Fatalf("cancel should deny without error, got %v %v", ok, err)
	}
	if _, err := NewPIN(h, staticPrompt("", errors.New("tty gone")), nil).Authenticate(ctx, "pin"); err == nil {
		t.Fatal("expected prompt error")
	}
}

func TestPINPassesPrompt(t *testing.T) {
	var seen string
	gate := NewPIN(mustHash(t, "1"), func(_ context.Context, prompt string) (string, error) {
		seen = prompt
		return "1", nil
	}, nil)
	gate.Authenticate(ctx, "Stop the timer?")
	if seen != "Stop the timer?" {
		t.Fatalf("prompt not forwarded: %q", seen)
	}
}

func TestPendingIsConsumedOnce(t *testing.T) {
	var p Pending
	if _, err := p.Prompt(ctx, ""); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled before Put, got %v", err)
	}
	p.Put("9999")
	pin, err := p.Prompt(ctx, "")
	if err != nil || pin != "9999" {
		t.Fatalf("expected 9999, got %q %v", pin, err)
	}
	if _, err := p.Prompt(ctx, ""); !errors.Is(err, ErrCancelled) {
		t.Fatal("pending pin must be consumed")
	}

	gate := NewPIN(mustHash(t, "9999"), p.Prompt, nil)
	p.Put("9999")
	if ok, _ := gate.Authenticate(ctx, ""); !ok {
		t.Fatal("expected pending pin to authenticate")
	}
}
