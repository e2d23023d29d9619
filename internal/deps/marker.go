// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	markerPrefix = ".deps_"
	markerSuffix = ".ok"

	bom = "\uFEFF"
)

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(source string) string {
	return strings.TrimPrefix(source, bom)
}

// ContentHash is the lowercase hex SHA-256 of source after BOM stripping.
func ContentHash(source string) string {
	sum := sha256.Sum256([]byte(StripBOM(source)))
	return hex.EncodeToString(sum[:])
}

// MarkerPath returns the marker file for source placed next to scriptPath.
func MarkerPath(scriptPath, source string) string {
	return filepath.Join(filepath.Dir(scriptPath), markerPrefix+ContentHash(source)+markerSuffix)
}

// Satisfied reports whether the marker for source exists.
func Satisfied(scriptPath, source string) bool {
	return fileExists(MarkerPath(scriptPath, source))
}

func writeMarker(path string, now time.Time) error {
	return os.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)), 0o644)
}

// Orphans lists the markers in dir that match no *.py file currently in dir.
func Orphans(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	live := make(map[string]bool)
	var markers []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, markerPrefix) && strings.HasSuffix(name, markerSuffix):
			markers = append(markers, name)
		case strings.HasSuffix(name, ".py"):
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			live[markerPrefix+ContentHash(string(data))+markerSuffix] = true
		}
	}

	var orphans []string
	for _, m := range markers {
		if !live[m] {
			orphans = append(orphans, filepath.Join(dir, m))
		}
	}
	slices.Sort(orphans)
	return orphans, nil
}

// Prune deletes the given marker files. Files that are already gone are
// ignored.
func Prune(markers []string) error {
	var errs []error
	for _, m := range markers {
		base := filepath.Base(m)
		if !strings.HasPrefix(base, markerPrefix) || !strings.HasSuffix(base, markerSuffix) {
			errs = append(errs, &fs.PathError{Op: "prune", Path: m, Err: fs.ErrInvalid})
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
