// Package persist implements the opaque-snapshot save callback: writes
// are atomic (temp file + os.Rename), including a fail-fast check
// that the state path lives on a real mounted volume before allowing
// live (non-dry-run) trading without durable persistence.
package persist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists an opaque JSON snapshot to a single file path,
// atomically.
type Store struct {
	path string
}

// NewStore builds a Store writing to path.
func NewStore(path string) *Store { return &Store{path: path} }

// Save marshals v to JSON and atomically replaces the target file: it
// writes to a ".tmp" sibling first, then os.Rename, so a crash mid-
// write never leaves a corrupt snapshot behind.
func (s *Store) Save(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("persist: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("persist: write tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}

// Load unmarshals the stored snapshot into v. It returns ok=false (no
// error) when no snapshot exists yet — the caller should treat that as
// "fresh start", not a failure.
func (s *Store) Load(v any) (ok bool, err error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("persist: read: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("persist: unmarshal: %w", err)
	}
	return true, nil
}

// EnsureMounted fails fast if the directory containing path does not
// lie on a mount point other than the root filesystem (the directory
// itself or one of its ancestors): an operator who forgot to mount a
// persistent volume should not discover it after an outage with no
// durable state. dryRun callers are exempt.
func EnsureMounted(path string, dryRun bool) error {
	if dryRun {
		return nil
	}
	dir := filepath.Dir(path)
	mounted, err := isMounted(dir)
	if err != nil {
		// Can't determine mount status (e.g. non-Linux); do not block
		// startup on a best-effort check.
		return nil
	}
	if !mounted {
		return fmt.Errorf("persist: %s is not on a mounted volume; refusing to run live without durable state (set dry_run to bypass)", dir)
	}
	return nil
}

// isMounted reports whether dir (or an ancestor) appears as a mount
// point in /proc/self/mountinfo.
func isMounted(dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		mountPoint := fields[4]
		if mountPoint == abs || strings.HasPrefix(abs, strings.TrimSuffix(mountPoint, "/")+"/") {
			if mountPoint != "/" {
				return true, nil
			}
		}
	}
	return false, sc.Err()
}
