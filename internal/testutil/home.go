// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetUserDirs points the platform's home, config and cache locations at
// subdirectories of root, so os.UserConfigDir and os.UserCacheDir resolve
// inside the test's sandbox. It uses t.Setenv, so callers must not be
// parallel.
//
// It returns the config and cache directories os.UserConfigDir and
// os.UserCacheDir will report.
func SetUserDirs(t *testing.T, root string) (configDir, cacheDir string) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		configDir = filepath.Join(root, "AppData", "Roaming")
		cacheDir = filepath.Join(root, "AppData", "Local")
		t.Setenv("USERPROFILE", root)
		t.Setenv("APPDATA", configDir)
		t.Setenv("LOCALAPPDATA", cacheDir)
	case "darwin":
		configDir = filepath.Join(root, "Library", "Application Support")
		cacheDir = filepath.Join(root, "Library", "Caches")
		t.Setenv("HOME", root)
	default:
		configDir = filepath.Join(root, ".config")
		cacheDir = filepath.Join(root, ".cache")
		t.Setenv("HOME", root)
		t.Setenv("XDG_CONFIG_HOME", configDir)
		t.Setenv("XDG_CACHE_HOME", cacheDir)
	}
	return configDir, cacheDir
}
