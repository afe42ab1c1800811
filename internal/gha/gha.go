// Package gha writes step outputs and state through the GitHub Actions
// command files. Outside of Actions (no GITHUB_OUTPUT in the environment)
// the writes are quietly skipped so the tool stays usable in other CI.
package gha

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// SetOutput exposes a named output to later steps in the job.
func SetOutput(name, value string) error {
	return appendCommand("GITHUB_OUTPUT", name, value)
}

// SaveState persists a named value for the post step of the same action.
func SaveState(name, value string) error {
	return appendCommand("GITHUB_STATE", name, value)
}

// appendCommand appends a key=value entry to the command file named by
// envVar. Multiline values (certificates, keys) use the heredoc form with
// a random delimiter, per the Actions file-command format.
func appendCommand(envVar, name, value string) error {
	path := os.Getenv(envVar)
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s file: %w", envVar, err)
	}
	defer f.Close()

	var entry string
	if strings.ContainsAny(value, "\r\n") {
		delim := "ghadelim_" + uuid.NewString()
		entry = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delim, value, delim)
	} else {
		entry = fmt.Sprintf("%s=%s\n", name, value)
	}

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append to %s file: %w", envVar, err)
	}
	return nil
}
