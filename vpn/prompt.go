package vpn

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Prompter asks the user for the administrator credential.
type Prompter interface {
	PromptCredential(ctx context.Context, message string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, message string) (string, error)

// PromptCredential implements Prompter.
func (f PrompterFunc) PromptCredential(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// TerminalPrompter reads the credential from the controlling terminal
// without echo.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads from stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// PromptCredential implements Prompter.
func (p *TerminalPrompter) PromptCredential(ctx context.Context, message string) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}

	fmt.Fprint(p.Out, message)
	type result struct {
		value []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := term.ReadPassword(fd)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		fmt.Fprintln(p.Out)
		if r.err != nil {
			return "", fmt.Errorf("failed to read password: %w", r.err)
		}
		return string(r.value), nil
	}
}
