// Package preset implements the preset pipeline (C6): acquiring preset
// sources (local, zip, tar.gz, or git; any other HTTP URL is rejected), discovering
// and strictly parsing their TOML documents, aggregating package sets, and
// running their scripts inside the chroot in lexicographic order.
package preset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/schema"
	"github.com/pelletier/go-toml/v2"
)

// ParseFile strictly decodes one preset TOML file, rejecting unknown keys
// to catch typos, and stamps its SourcePath.
func ParseFile(path string) (schema.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Preset{}, &alma.PresetParse{Path: path, Err: err}
	}

	var p schema.Preset
	dec := toml.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return schema.Preset{}, &alma.PresetParse{Path: path, Err: err}
	}
	p.SourcePath = path

	if err := validateSharedDirectories(p, filepath.Dir(path)); err != nil {
		return schema.Preset{}, err
	}

	return p, nil
}

// validateSharedDirectories enforces that shared_directories entries are
// relative, never traverse upward, and name a directory existing next to
// the preset file.
func validateSharedDirectories(p schema.Preset, presetDir string) error {
	for _, rel := range p.SharedDirectories {
		if filepath.IsAbs(rel) {
			return &alma.PresetParse{Path: p.SourcePath, Err: &pathError{rel, "must be relative"}}
		}
		clean := filepath.Clean(rel)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return &alma.PresetParse{Path: p.SourcePath, Err: &pathError{rel, "must not traverse upward"}}
		}
		full := filepath.Join(presetDir, clean)
		info, err := os.Stat(full)
		if err != nil || !info.IsDir() {
			return &alma.PresetParse{Path: p.SourcePath, Err: &pathError{rel, "must name a directory that exists next to the preset file"}}
		}
	}
	return nil
}

type pathError struct {
	path   string
	reason string
}

func (e *pathError) Error() string {
	return "shared_directories entry " + e.path + " " + e.reason
}

// Discover resolves a preset source path into an ordered, case-sensitive
// lexicographically sorted list of preset file paths: a single file if the
// path is a file, or every *.toml found by a recursive walk if it's a
// directory.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &alma.PresetFetch{Source: root, Err: err}
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".toml") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, &alma.PresetFetch{Source: root, Err: err}
	}

	// Byte-wise (U+0000-ordered) lexicographic sort of the joined path,
	// which sort.Strings already performs for Go's UTF-8 string type.
	sort.Strings(found)
	return found, nil
}
