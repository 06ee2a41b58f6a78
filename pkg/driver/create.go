package driver

import (
	"context"
	"os/exec"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/bootstrap"
	"github.com/almatool/alma/pkg/preset"
	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/schema"
	"github.com/almatool/alma/pkg/storage"
)

// CreateOptions collects every flag `alma create` accepts.
type CreateOptions struct {
	// Target selection (exactly one group is populated).
	DiskPath          string
	AllowNonRemovable bool
	RootPartition     string
	BootPartition     string
	ImagePath         string
	ImageSize         string
	Overwrite         bool

	Filesystem    string
	Encrypted     bool
	BootSizeMiB   int
	PacmanConf    string
	ExtraPackages []string
	AURHelper     string
	PresetSources []string
	Interactive   bool
	Hostname      string
	Locales       []string
	System        string
}

// Create runs the full C2→C7 pipeline against a newly resolved target.
func Create(ctx context.Context, rt *Runtime, opts CreateOptions) (err error) {
	defer rt.finish(&err)

	if err := CheckHostTools(exec.LookPath); err != nil {
		return err
	}

	target, err := resolveTarget(ctx, rt.Probe, opts)
	if err != nil {
		return err
	}

	// The environment-variable contract must be checked before any
	// destructive action, so presets are resolved before C4 runs.
	set, err := preset.Resolve(ctx, rt.Stack, opts.PresetSources, opts.ExtraPackages)
	if err != nil {
		return err
	}
	if err := preset.CheckEnvironment(set); err != nil {
		return err
	}

	passphrase := ""
	if opts.Encrypted {
		passphrase, err = storage.PromptPassphrase()
		if err != nil {
			return err
		}
	}

	builder := storage.New(rt.Run, rt.Probe, rt.Stack)
	layout, err := builder.Build(ctx, target, storage.Options{
		Filesystem:  opts.Filesystem,
		Encrypted:   opts.Encrypted,
		BootSizeMiB: opts.BootSizeMiB,
		Passphrase:  passphrase,
		Overwrite:   opts.Overwrite,
	})
	if err != nil {
		return err
	}

	rootDir, err := scratchMountRoot()
	if err != nil {
		return alma.Step("allocating temporary mount root", err)
	}

	if err := mountLayout(ctx, rt, layout, rootDir); err != nil {
		return err
	}
	if err := rt.Mount.MountAPIBinds(ctx, rootDir); err != nil {
		return err
	}

	bs := bootstrap.New(rt.Run, rt.Mount, rt.Log, rootDir)
	wholeDiskPath := ""
	if target.Kind == schema.TargetWholeDisk {
		wholeDiskPath = target.DiskPath
	} else if target.Kind == schema.TargetImage {
		wholeDiskPath = layout.LoopDevice
	}

	return bs.Run(ctx, layout, bootstrap.Options{
		System:        opts.System,
		PacmanConf:    opts.PacmanConf,
		ExtraPackages: opts.ExtraPackages,
		AURHelper:     opts.AURHelper,
		Interactive:   opts.Interactive,
		Hostname:      opts.Hostname,
		Locales:       opts.Locales,
		PresetSources: opts.PresetSources,
		WholeDiskPath: wholeDiskPath,
	}, set)
}

// resolveTarget turns CreateOptions into the tagged Target variant,
// validating whole-disk and partition paths through C2.
func resolveTarget(ctx context.Context, prb *probe.Probe, opts CreateOptions) (schema.Target, error) {
	switch {
	case opts.ImagePath != "":
		size, err := storage.ParseSize(opts.ImageSize)
		if err != nil {
			return schema.Target{}, &alma.BadTarget{Path: opts.ImagePath, Reason: err.Error()}
		}
		return schema.Target{Kind: schema.TargetImage, ImagePath: opts.ImagePath, ImageBytes: size}, nil

	case opts.RootPartition != "":
		return schema.Target{
			Kind:          schema.TargetPartitions,
			RootPartition: opts.RootPartition,
			BootPartition: opts.BootPartition,
		}, nil

	case opts.DiskPath != "":
		dev, err := prb.ValidateTarget(ctx, opts.DiskPath, true, opts.AllowNonRemovable)
		if err != nil {
			return schema.Target{}, err
		}
		return schema.Target{Kind: schema.TargetWholeDisk, DiskPath: dev.Path, Removable: dev.Removable}, nil

	default:
		return schema.Target{}, &alma.BadTarget{Path: "", Reason: "no target specified: pass a disk, --root-partition, or --image"}
	}
}

// mountLayout builds the ordered mount stack: root (plus btrfs subvolumes),
// then boot, per §4.5's dependency order.
func mountLayout(ctx context.Context, rt *Runtime, layout schema.StorageLayout, rootDir string) error {
	if layout.RootFS == constants.FSBtrfs {
		if err := rt.Mount.CreateBtrfsSubvolumes(ctx, layout.RootDevice, rootDir+"-scratch"); err != nil {
			return err
		}
	}

	if err := rt.Mount.MountRoot(ctx, layout.RootDevice, layout.RootFS, rootDir, nil); err != nil {
		return err
	}
	if layout.RootFS == constants.FSBtrfs {
		if err := rt.Mount.MountBtrfsSubvolumes(ctx, layout.RootDevice, rootDir); err != nil {
			return err
		}
	}

	if layout.BootDevice != "" {
		if err := rt.Mount.MountBoot(ctx, layout.BootDevice, rootDir); err != nil {
			return err
		}
	}

	return nil
}
