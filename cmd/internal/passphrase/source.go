package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when a confirmed prompt receives two different
// values.
var ErrMismatch = errors.New("entries do not match")

// Prompter reads one secret for the given prompt text.
type Prompter func(prompt string) (string, error)

// Source resolves a secret from an environment variable, falling back to an
// interactive prompt. The first result, value or error, is cached.
type Source struct {
	envVar  string
	label   string
	confirm bool
	prompt  Prompter

	once  sync.Once
	value string
	err   error
}

// Option customises a Source.
type Option func(*Source)

// WithConfirmation asks for the secret twice when prompting.
func WithConfirmation() Option {
	return func(s *Source) { s.confirm = true }
}

// WithPrompter replaces the terminal prompt.
func WithPrompter(p Prompter) Option {
	return func(s *Source) { s.prompt = p }
}

// NewSource returns a source for the secret named label.
func NewSource(envVar, label string, opts ...Option) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "passphrase"
	}
	s := &Source{envVar: strings.TrimSpace(envVar), label: label}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompt == nil {
		s.prompt = s.terminalPrompt
	}
	return s
}

// Get returns the secret. Whitespace-only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	value, err := s.prompt("Enter " + s.label + ": ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New(s.label + " cannot be empty")
	}
	if s.confirm {
		again, err := s.prompt("Repeat " + s.label + ": ")
		if err != nil {
			return "", err
		}
		if again != value {
			return "", fmt.Errorf("%s: %w", s.label, ErrMismatch)
		}
	}
	return value, nil
}

func (s *Source) terminalPrompt(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
		}
		return "", errors.New(s.label + " required and no terminal available")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.label, err)
	}
	return string(raw), nil
}
