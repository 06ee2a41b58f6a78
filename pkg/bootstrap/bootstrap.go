// Package bootstrap implements the system bootstrapper (C7): it drives
// pacstrap, configures the target's locale/hostname/hosts, regenerates the
// initramfs, builds and installs an AUR helper, runs preset scripts,
// installs GRUB, and persists the manifest. It orchestrates external tools
// exactly as the teacher's internal/utils wraps arch-chroot and mkinitcpio
// invocations — no step reimplements what the host tool already does.
package bootstrap

import (
	"context"
	"os"
	"path/filepath"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/internal/utils"
	"github.com/almatool/alma/pkg/mount"
	"github.com/almatool/alma/pkg/preset"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
	"github.com/rs/zerolog"
)

// Options carries everything the bootstrapper needs beyond the mounted
// storage layout: user-selected packages, AUR helper, pacman config path,
// interactive flags.
type Options struct {
	System        string
	PacmanConf    string
	ExtraPackages []string
	AURHelper     string
	Interactive   bool
	Hostname      string
	Locales       []string
	PresetSources []string
	WholeDiskPath string // the disk for a whole-disk target, the loop device for an Image target; empty for Partitions
}

// Bootstrapper drives C7 against an already-mounted target root.
type Bootstrapper struct {
	Runner *runner.Runner
	Mount  *mount.Manager
	Log    zerolog.Logger
	Chroot *utils.Chroot

	RootDir string
}

func New(run *runner.Runner, mgr *mount.Manager, log zerolog.Logger, rootDir string) *Bootstrapper {
	return &Bootstrapper{
		Runner:  run,
		Mount:   mgr,
		Log:     log,
		Chroot:  utils.NewChroot(rootDir, run),
		RootDir: rootDir,
	}
}

// Run executes the full C7 sequence against layout, in strict order, using
// the already resolved PresetSet set, and returns the first step's error.
func (b *Bootstrapper) Run(ctx context.Context, layout schema.StorageLayout, opts Options, set schema.PresetSet) error {
	if err := b.pacstrap(ctx, set, opts); err != nil {
		return alma.Step("running pacstrap", err)
	}
	if err := b.genFstabAndCrypttab(ctx, layout); err != nil {
		return err
	}
	if err := b.configureSystem(ctx, opts); err != nil {
		return err
	}
	if err := b.regenerateInitramfs(ctx, layout); err != nil {
		return err
	}
	if len(set.AggregatedAUR) > 0 {
		if err := b.installAURPackages(ctx, opts, set.AggregatedAUR); err != nil {
			return err
		}
	}
	if err := preset.MountSharedDirectories(ctx, b.Mount, set, b.RootDir); err != nil {
		return err
	}
	if err := preset.RunScripts(ctx, b.Chroot, set, set.RequiredEnvironment); err != nil {
		return err
	}
	if err := b.installBootloader(ctx, layout, opts); err != nil {
		return err
	}
	if err := b.persistManifest(opts, set, layout); err != nil {
		return alma.Step("persisting manifest", err)
	}
	if opts.Interactive {
		if err := b.Chroot.Interactive(ctx, nil); err != nil {
			return alma.Step("running interactive post-install shell", err)
		}
	}
	return nil
}

func (b *Bootstrapper) pacstrap(ctx context.Context, set schema.PresetSet, opts Options) error {
	if opts.PacmanConf != "" {
		if err := copyFile(opts.PacmanConf, filepath.Join(b.RootDir, "etc", "pacman.conf")); err != nil {
			return alma.Step("copying pacman.conf into target", err)
		}
	}

	argv := []string{"pacstrap"}
	if opts.PacmanConf != "" {
		argv = append(argv, "-C", opts.PacmanConf)
	}
	argv = append(argv, b.RootDir)
	argv = append(argv, set.AggregatedPackages...)

	_, err := b.Runner.RunChecked(ctx, argv, nil, "")
	return err
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (b *Bootstrapper) genFstabAndCrypttab(ctx context.Context, layout schema.StorageLayout) error {
	if err := mount.GenFstab(ctx, b.Runner, b.RootDir); err != nil {
		return err
	}
	if layout.Encrypted {
		if err := mount.WriteCrypttab(b.RootDir, layout.LuksUUID, layout.LuksName); err != nil {
			return alma.Step("writing crypttab", err)
		}
	}
	return nil
}

func (b *Bootstrapper) persistManifest(opts Options, set schema.PresetSet, layout schema.StorageLayout) error {
	m := schema.Manifest{
		Schema:        constants.ManifestSchema,
		System:        opts.System,
		Filesystem:    layout.RootFS,
		Encrypted:     layout.Encrypted,
		ExtraPackages: opts.ExtraPackages,
		AURPackages:   set.AggregatedAUR,
		AURHelper:     opts.AURHelper,
		Presets:       opts.PresetSources,
		BootSizeMiB:   constants.DefaultBootSizeMiB,
	}
	return WriteManifest(b.RootDir, m)
}
