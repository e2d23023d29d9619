// SPDX-License-Identifier: MPL-2.0

//go:build darwin

package interpreter

import (
	"context"
	"os"
	"path/filepath"
)

const frameworkVersions = "/Library/Frameworks/Python.framework/Versions"

// registryCandidates lists python.org framework installs, newest first.
func registryCandidates(_ context.Context) []string {
	entries, err := os.ReadDir(frameworkVersions)
	if err != nil {
		return nil
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != "Current" {
			versions = append(versions, e.Name())
		}
	}
	var out []string
	for _, v := range sortVersionsDesc(versions) {
		out = append(out, filepath.Join(frameworkVersions, v, "bin", "python3"))
	}
	return out
}
