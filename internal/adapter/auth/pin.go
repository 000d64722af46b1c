// Package auth gates stopping a session behind a PIN.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keyLen  = 32
	saltLen = 16
)

var (
	ErrEmptyPIN      = errors.New("empty pin")
	ErrMalformedHash = errors.New("malformed pin hash")
	ErrCancelled     = errors.New("pin entry cancelled")
)

// HashPIN derives a storable hash of the form scrypt$N$r$p$salt$key.
func HashPIN(pin string) (string, error) {
	return hashPIN(pin, scryptN)
}

func hashPIN(pin string, n int) (string, error) {
	if pin == "" {
		return "", ErrEmptyPIN
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key, err := scrypt.Key([]byte(pin), salt, n, scryptR, scryptP, keyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	enc := base64.RawStdEncoding
	return fmt.Sprintf("scrypt$%d$%d$%d$%s$%s", n, scryptR, scryptP, enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// VerifyPIN reports whether pin matches a hash produced by HashPIN.
func VerifyPIN(hash, pin string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "scrypt" {
		return false, ErrMalformedHash
	}
	var params [3]int
	for i := range params {
		v, err := strconv.Atoi(parts[i+1])
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		params[i] = v
	}
	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := enc.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	got, err := scrypt.Key([]byte(pin), salt, params[0], params[1], params[2], len(want))
	if err != nil {
		return false, fmt.Errorf("derive key: %w", err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Prompter obtains a PIN from the user. It returns ErrCancelled when the
// user backs out.
type Prompter func(ctx context.Context, prompt string) (string, error)

// PIN implements the session's auth port.
type PIN struct {
	hash    string
	prompt  Prompter
	enabled func(context.Context) bool
}

// NewPIN builds a gate. enabled may be nil; it lets a stored preference
// switch the gate off without forgetting the hash.
func NewPIN(hash string, prompt Prompter, enabled func(context.Context) bool) *PIN {
	return &PIN{hash: hash, prompt: prompt, enabled: enabled}
}

func (p *PIN) Available(ctx context.Context) bool {
	if p.hash == "" || p.prompt == nil {
		return false
	}
	return p.enabled == nil || p.enabled(ctx)
}

// Authenticate prompts once. A cancelled or wrong PIN is a denial, not an error.
func (p *PIN) Authenticate(ctx context.Context, prompt string) (bool, error) {
	pin, err := p.prompt(ctx, prompt)
	if errors.Is(err, ErrCancelled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pin == "" {
		return false, nil
	}
	return VerifyPIN(p.hash, pin)
}

// Pending holds a PIN collected ahead of time, for hosts that cannot
// prompt from inside Authenticate. Each PIN is consumed by one prompt.
type Pending struct {
	mu  sync.Mutex
	pin string
	set bool
}

func (p *Pending) Put(pin string) {
	p.mu.Lock()
	p.pin, p.set = pin, true
	p.mu.Unlock()
}

func (p *Pending) Prompt(context.Context, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.set {
		return "", ErrCancelled
	}
	pin := p.pin
	p.pin, p.set = "", false
	return pin, nil
}
