// SPDX-License-Identifier: MPL-2.0

package scripts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/scriptrun/pkg/cueutil"
)

const metadataExt = ".meta.cue"

//go:embed metadata_schema.cue
var metadataSchema []byte

type (
	// Parameter describes one key of a script's argument object.
	Parameter struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}

	// Metadata is the optional sidecar description of a named script.
	Metadata struct {
		Name        string      `json:"name,omitempty"`
		Description string      `json:"description,omitempty"`
		OutputType  string      `json:"output_type"`
		Parameters  []Parameter `json:"parameters,omitempty"`
	}

	// Info is one entry of ListScripts.
	Info struct {
		Name     string    `json:"name"`
		Path     string    `json:"path"`
		Metadata *Metadata `json:"metadata,omitempty"`
		// MetadataError is set when a sidecar exists but does not validate.
		MetadataError string `json:"metadata_error,omitempty"`
	}
)

// ListScripts returns the named scripts in the folder sorted by name.
// Inline scripts are left out. A folder that does not exist yet is empty.
func (r *Runner) ListScripts() ([]Info, error) {
	entries, err := os.ReadDir(r.folder)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, scriptExt) || strings.HasPrefix(name, inlinePrefix) {
			continue
		}
		stem := strings.TrimSuffix(name, scriptExt)
		if !validName(stem) {
			continue
		}
		info := Info{Name: stem, Path: filepath.Join(r.folder, name)}

		meta, err := r.Metadata(stem)
		switch {
		case err != nil:
			info.MetadataError = err.Error()
			r.logger.Warn("ignoring invalid script metadata", "script", stem, "err", err)
		default:
			info.Metadata = meta
		}
		out = append(out, info)
	}

	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Metadata reads {name}.meta.cue. It returns nil, nil when there is none.
func (r *Runner) Metadata(name string) (*Metadata, error) {
	path := filepath.Join(r.folder, name+metadataExt)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseMetadata(data, filepath.Base(path))
}

// ParseMetadata validates a metadata document, CUE or JSON.
func ParseMetadata(data []byte, filename string) (*Metadata, error) {
	res, err := cueutil.ParseAndDecode[Metadata](metadataSchema, data, "#Metadata", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// InlineScripts lists the persisted inline scripts, sorted.
func (r *Runner) InlineScripts() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.folder, inlinePrefix+"*"+scriptExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// CleanInline deletes every persisted inline script after n confirms.
// It returns the files it removed. Dependency markers are left alone.
func (r *Runner) CleanInline(ctx context.Context, n Notifier) ([]string, error) {
	files, err := r.InlineScripts()
	if err != nil || len(files) == 0 {
		return nil, err
	}

	ok, err := n.Confirm(ctx, fmt.Sprintf("Delete %d inline script(s) from %s?", len(files), r.folder))
	if err != nil || !ok {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, f)
	}
	n.Notify(ctx, fmt.Sprintf("Removed %d inline script(s).", len(removed)))
	return removed, errors.Join(errs...)
}
