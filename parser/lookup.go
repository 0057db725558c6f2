package parser

import (
	"fmt"
	"os/exec"
)

// Lookup resolves an external-binary backend's executable via PATH
// (spec §6 "invoked by absolute path discovered via PATH"), wrapping
// exec.LookPath's error as ErrNotFound so callers can raise a
// ConfigError at construction (spec §7).
func Lookup(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	return path, nil
}
