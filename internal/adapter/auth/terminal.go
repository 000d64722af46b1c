package auth

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// TerminalPrompt asks for the PIN with a masked huh input.
func TerminalPrompt(ctx context.Context, prompt string) (string, error) {
	var pin string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(prompt).
				EchoMode(huh.EchoModePassword).
				Value(&pin),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", err
	}
	return pin, nil
}
