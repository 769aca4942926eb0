// Package modestate persists which role this container is currently running.
// The record deliberately outlives the process that writes it: server and
// worker replace themselves via exec, and later healthcheck invocations are
// separate short-lived processes that need to discover the active role. The
// record's lifetime is the container's, so it lives in a file under tmp
// rather than in any process's memory.
package modestate

import (
	"os"
	"strings"

	"github.com/castellan-io/castellan/pkg/consts"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/logger"
)

// Store reads and writes the mode record at a fixed path. At most one writer
// exists per container lifetime; readers never overlap it.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Record overwrites the mode record with the literal role token.
func (s *Store) Record(role consts.Role) error {
	if err := os.WriteFile(s.path, []byte(role), 0644); err != nil {
		return cerrors.New(cerrors.ErrCodeUnknown, "RecordMode",
			"writing mode record "+s.path, err)
	}
	logger.Log.Info("recorded active role", "role", string(role), "path", s.path)
	return nil
}

// Current returns the last recorded role. ok is false when no record exists
// in this container instance; a missing file is "unknown", not an error.
func (s *Store) Current() (consts.Role, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Log.Warn("mode record unreadable, treating as unknown", "path", s.path, "err", err)
		}
		return "", false
	}
	role := consts.Role(strings.TrimSpace(string(data)))
	if role == "" {
		return "", false
	}
	return role, true
}

// Cleanup removes the record, best-effort. Callers register it to run only
// when the process returns without being replaced; for the long-running
// roles the exec happens first, so the record survives the recorder — by
// design, not by leak.
func (s *Store) Cleanup() {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn("could not remove mode record", "path", s.path, "err", err)
	}
}
