package preset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/utils"
	"github.com/almatool/alma/pkg/mount"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Resolve acquires every source, discovers and parses its presets, and
// returns the aggregated PresetSet. Presets across all sources are pooled
// and re-sorted together so that script execution order (§4.6) is a single
// global lexicographic order, not per-source.
func Resolve(ctx context.Context, stack *resource.Stack, sources []string, extraPackages []string) (schema.PresetSet, error) {
	var allPaths []string
	baseDir := ""

	for _, src := range sources {
		resolved, err := Acquire(ctx, stack, src)
		if err != nil {
			return schema.PresetSet{}, err
		}
		if baseDir == "" {
			baseDir = resolved
		}
		paths, err := Discover(resolved)
		if err != nil {
			return schema.PresetSet{}, err
		}
		allPaths = append(allPaths, paths...)
	}
	sort.Strings(allPaths)

	var parseErrs error
	var presets []schema.Preset
	for _, p := range allPaths {
		preset, err := ParseFile(p)
		if err != nil {
			parseErrs = multierror.Append(parseErrs, err)
			continue
		}
		presets = append(presets, preset)
	}
	if parseErrs != nil {
		return schema.PresetSet{}, parseErrs
	}

	set := schema.PresetSet{Presets: presets, BaseDirectory: baseDir}
	set.AggregatedPackages = dedupAppend(nil, extraPackages)
	for _, p := range presets {
		set.AggregatedPackages = dedupAppend(set.AggregatedPackages, p.Packages)
		set.AggregatedAUR = dedupAppend(set.AggregatedAUR, p.AURPackages)
		set.RequiredEnvironment = dedupAppend(set.RequiredEnvironment, p.EnvironmentVariables)
	}

	return set, nil
}

func dedupAppend(existing []string, add []string) []string {
	seen := map[string]bool{}
	for _, e := range existing {
		seen[e] = true
	}
	out := append([]string(nil), existing...)
	for _, a := range add {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// CheckEnvironment verifies required_environment ⊆ process environment.
// This runs before C4, so a missing variable aborts before any destructive
// action. A local .env file, if present in the working directory, is
// loaded first so a preset's required_environment can be satisfied from it
// during local iteration without exporting variables by hand; godotenv
// never overrides a variable already present in the process environment.
func CheckEnvironment(set schema.PresetSet) error {
	_ = godotenv.Load()
	for _, v := range set.RequiredEnvironment {
		if _, ok := os.LookupEnv(v); !ok {
			return &alma.MissingEnvironment{Var: v}
		}
	}
	return nil
}

// MountSharedDirectories bind-mounts every preset's shared_directories
// entries read-only into the chroot at /shared/<name>.
func MountSharedDirectories(ctx context.Context, mgr *mount.Manager, set schema.PresetSet, rootDir string) error {
	for _, p := range set.Presets {
		presetDir := filepath.Dir(p.SourcePath)
		for _, rel := range p.SharedDirectories {
			name := filepath.Base(rel)
			hostPath := filepath.Join(presetDir, rel)
			if err := mgr.MountSharedDirectory(ctx, hostPath, rootDir, name); err != nil {
				return alma.Step("mounting shared directory "+rel, err)
			}
		}
	}
	return nil
}

// RunScripts materializes and runs each preset's script inside the chroot,
// in the same order presets were discovered (lexicographic by path). A
// non-zero exit aborts the pipeline immediately; the failing preset's name
// surfaces in the error so the root cause is never masked.
func RunScripts(ctx context.Context, chroot *utils.Chroot, set schema.PresetSet, forwardedEnv []string) error {
	for _, p := range set.Presets {
		if p.Script == "" {
			continue
		}
		name := scriptName(p.SourcePath)
		scriptPath := filepath.Join("/tmp", name+".sh")

		if err := writeScriptIntoRoot(set.BaseDirectory, scriptPath, p.Script); err != nil {
			return alma.Step("materializing script for preset "+name, err)
		}

		cmd := fmt.Sprintf("/bin/bash -e %s", scriptPath)
		if _, err := chroot.Run(ctx, cmd, forwardedEnv); err != nil {
			return alma.Step("running preset script "+name, err)
		}
	}
	return nil
}

func scriptName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// writeScriptIntoRoot writes the script body to rootDir+scriptPath; callers
// pass the mounted target root as rootDir (the chroot's host-visible path).
func writeScriptIntoRoot(rootDir, scriptPath, body string) error {
	full := filepath.Join(rootDir, scriptPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(body), 0755)
}
