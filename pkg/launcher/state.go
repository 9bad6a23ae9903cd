package launcher

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
)

// ServerState is the record a running server advertises through the state file.
// The file's presence means "ready"; its baseURL is authoritative until a health
// probe against it fails.
type ServerState struct {
	Ready     bool   `json:"ready"`
	PID       int    `json:"pid"`
	Port      int    `json:"port"`
	BaseURL   string `json:"baseURL"`
	Token     string `json:"token,omitempty"`
	Version   string `json:"version"`
	StartedAt int64  `json:"startedAt"`
}

// Valid reports whether the record carries everything a client needs to connect.
func (s *ServerState) Valid() bool {
	if s == nil || !s.Ready || s.Port <= 0 || s.BaseURL == "" {
		return false
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// StateStore reads, writes and deletes the single state file at path.
type StateStore struct {
	path string
}

// NewStateStore returns a store for the state file at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Read returns the current state, or nil when the file is absent, unreadable,
// malformed, or missing required fields. It never fails: every problem means
// "no active server".
func (s *StateStore) Read() *ServerState {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var st ServerState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil
	}
	if !st.Valid() {
		return nil
	}
	return &st
}

// Delete removes the state file. A missing file is not an error.
func (s *StateStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Write persists st atomically with 0600 permissions. Only the server calls this;
// readers see either the old file, no file, or the complete new one.
func (s *StateStore) Write(st ServerState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	enc, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(enc); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// best-effort fsync on directory
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}

// DeleteIfOwned removes the state file only when it still belongs to pid, so a
// server exiting late never deletes the record of a newer server.
func (s *StateStore) DeleteIfOwned(pid int) error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var st ServerState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil
	}
	if st.PID != pid {
		return nil
	}
	return s.Delete()
}
