package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecret reads a CAN or PIN from the controlling terminal without
// echoing it back.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(string(b)), nil
}
