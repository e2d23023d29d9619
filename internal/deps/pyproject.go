// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

// parsePyproject returns the PEP 621 [project].dependencies of a pyproject.toml.
func parsePyproject(data []byte) ([]string, error) {
	var pp pyproject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pp.Project.Dependencies))
	for _, d := range pp.Project.Dependencies {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

// requirementsFromPyproject writes the dependencies of path into a temporary
// requirements.txt. It returns "" when the project declares none.
func requirementsFromPyproject(path string) (string, func(), error) {
	noop := func() {}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", noop, &Error{Stage: StageDiscover, Tool: "read " + pyprojectFile, Output: err.Error()}
	}
	reqs, err := parsePyproject(data)
	if err != nil {
		return "", noop, &Error{Stage: StageDiscover, Tool: "parse " + pyprojectFile, Output: err.Error()}
	}
	if len(reqs) == 0 {
		return "", noop, nil
	}

	tmp, err := os.MkdirTemp("", "pyreqs-")
	if err != nil {
		return "", noop, &Error{Stage: StageDiscover, Tool: "write requirements", Output: err.Error()}
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	req := filepath.Join(tmp, requirementsFile)
	if err := os.WriteFile(req, []byte(strings.Join(reqs, "\n")+"\n"), 0o644); err != nil {
		return "", cleanup, &Error{Stage: StageDiscover, Tool: "write requirements", Output: err.Error()}
	}
	return req, cleanup, nil
}
