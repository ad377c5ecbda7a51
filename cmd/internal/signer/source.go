package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"nftminter/sdk/wallet"
)

// ErrNoKey is returned when no signer key is configured and no terminal is
// available to prompt for one.
var ErrNoKey = errors.New("signer: key required")

// Source resolves the hex signer key once, from the configured value or by
// prompting on the terminal.
type Source struct {
	envVar     string
	configured string
	prompt     func() (string, error)

	once sync.Once
	key  *ecdsa.PrivateKey
	err  error
}

// NewSource returns a source preferring configured. envVar is only used in
// error messages.
func NewSource(envVar, configured string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), configured: strings.TrimSpace(configured), prompt: promptTerminal}
}

// Key returns the parsed signing key.
func (s *Source) Key() (*ecdsa.PrivateKey, error) {
	s.once.Do(func() {
		raw := s.configured
		if raw == "" {
			prompted, err := s.prompt()
			if err != nil {
				if errors.Is(err, ErrNoKey) && s.envVar != "" {
					err = fmt.Errorf("%w: set %s or run interactively", ErrNoKey, s.envVar)
				}
				s.err = err
				return
			}
			raw = strings.TrimSpace(prompted)
		}
		if raw == "" {
			s.err = ErrNoKey
			return
		}
		s.key, s.err = wallet.ParseKey(raw)
	})
	return s.key, s.err
}

func promptTerminal() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoKey
	}
	fmt.Fprint(os.Stderr, "Enter signer key (hex): ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("signer: read key: %w", err)
	}
	return string(raw), nil
}
