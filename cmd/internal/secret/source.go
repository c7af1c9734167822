package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a secret from an environment variable, a configured value
// or an interactive prompt, in that order. The first result is cached.
type Source struct {
	label      string
	envVar     string
	configured string

	// prompt reads a line without echo. Tests replace it.
	prompt func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource returns a source for label. configured is the value from the
// configuration file, possibly empty.
func NewSource(label, envVar, configured string) *Source {
	return &Source{
		label:      label,
		envVar:     strings.TrimSpace(envVar),
		configured: configured,
		prompt:     terminalPrompt(os.Stdin, os.Stderr),
	}
}

// Get returns the secret. Whitespace-only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if strings.TrimSpace(s.configured) != "" {
			s.value = s.configured
			return
		}
		value, err := s.prompt(s.label)
		if err != nil {
			s.err = err
			return
		}
		if strings.TrimSpace(value) == "" {
			s.err = fmt.Errorf("%s cannot be empty", s.label)
			return
		}
		s.value = value
	})
	return s.value, s.err
}

// Lookup returns the secret from the environment or configuration without
// prompting. ok is false when neither is set.
func (s *Source) Lookup() (value string, ok bool, err error) {
	if s.envVar != "" {
		if value, set := os.LookupEnv(s.envVar); set {
			if strings.TrimSpace(value) == "" {
				return "", false, fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, true, nil
		}
	}
	if strings.TrimSpace(s.configured) != "" {
		return s.configured, true, nil
	}
	return "", false, nil
}

func terminalPrompt(in *os.File, out io.Writer) func(string) (string, error) {
	return func(label string) (string, error) {
		if !term.IsTerminal(int(in.Fd())) {
			return "", errors.New(label + " required and no terminal available")
		}
		fmt.Fprintf(out, "Enter %s: ", label)
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return string(raw), nil
	}
}
