package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// resolvePassword reads a credential from the environment, falling back to an
// interactive prompt. Fails outright when the env var is unset and stdin is
// not a terminal (CI without credentials should fail fast, not hang).
func resolvePassword(envVar, prompt string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not set and stdin is not a terminal", envVar)
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(pw), nil
}
