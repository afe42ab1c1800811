// Package state persists the builder group record across process
// invocations. The configure step writes it; the cleanup step, which runs
// as a separate process at the end of the job, reads it back to know which
// builders to release.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Machine is one acquired builder in the group.
type Machine struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// Record is the handoff record for a builder group.
type Record struct {
	GroupName string    `json:"group_name"`
	Machines  []Machine `json:"machines"`
	CertDir   string    `json:"cert_dir,omitempty"`
}

// DefaultPath returns the state file location, under the runner's temp
// directory when running in CI.
func DefaultPath() string {
	base := os.Getenv("RUNNER_TEMP")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "docker-configure", "state.json")
}

// Save writes the record, creating parent directories as needed.
func Save(path string, rec *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Load reads the record. A missing file returns (nil, nil): nothing was
// acquired, so there is nothing to clean up.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return &rec, nil
}

// Remove deletes the state file, ignoring a file that is already gone.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
