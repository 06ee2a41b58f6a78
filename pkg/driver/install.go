package driver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/bootstrap"
)

// InstallOptions carries the new target and any overrides to apply on top
// of the replayed manifest.
type InstallOptions struct {
	CreateOptions
	CopyHome    bool
	CopyNetwork bool
}

// Install reads /etc/alma/manifest.toml from the currently running root
// and replays an equivalent create invocation against a new target,
// optionally copying /home and NetworkManager state from the live system —
// a feature the distilled core spec drops but the original install.rs
// performs as a best-effort, non-fatal step.
func Install(ctx context.Context, rt *Runtime, opts InstallOptions) (err error) {
	manifest, merr := bootstrap.ReadManifest("/")
	if merr != nil {
		return merr
	}

	createOpts := opts.CreateOptions
	createOpts.System = manifest.System
	createOpts.Filesystem = manifest.Filesystem
	createOpts.Encrypted = manifest.Encrypted
	createOpts.ExtraPackages = manifest.ExtraPackages
	createOpts.AURHelper = manifest.AURHelper
	createOpts.PresetSources = manifest.Presets
	createOpts.BootSizeMiB = manifest.BootSizeMiB

	if err := Create(ctx, rt, createOpts); err != nil {
		return err
	}

	if opts.CopyHome || opts.CopyNetwork {
		rt.Log.Info().Msg("create succeeded; copying live system state is best-effort and does not fail the install")
		copyLiveState(rt, opts)
	}

	return nil
}

// copyLiveState copies /home and NetworkManager connection state from the
// running system into the newly mounted target, matching install.rs's
// best-effort post-install copy. Failures are logged, never fatal — the
// new system is already bootable without them.
func copyLiveState(rt *Runtime, opts InstallOptions) {
	entries := rt.Mount.Entries()
	if len(entries) == 0 {
		return
	}
	rootDir := entries[0].Target

	if opts.CopyHome {
		if err := copyTree("/home", filepath.Join(rootDir, "home")); err != nil {
			rt.Log.Warn().Err(alma.Step("copying /home", err)).Msg("best-effort copy failed")
		}
	}
	if opts.CopyNetwork {
		src := "/etc/NetworkManager/system-connections"
		if _, err := os.Stat(src); err == nil {
			dst := filepath.Join(rootDir, "etc", "NetworkManager", "system-connections")
			if err := copyTree(src, dst); err != nil {
				rt.Log.Warn().Err(alma.Step("copying NetworkManager state", err)).Msg("best-effort copy failed")
			}
		}
	}
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
