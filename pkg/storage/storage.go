// Package storage implements the storage layout component (C4):
// partitioning, formatting, and optional LUKS mapping (BTRFS subvolumes are
// created later by pkg/mount), dispatched once over the tagged Target variant per
// the design notes rather than per-operation. It orchestrates sgdisk,
// mkfs.*, losetup, and cryptsetup through the command runner (C1) — the
// non-goal that ALMA does not reimplement these tools is load-bearing
// here: every mutation below is a real invocation, never a native
// partition-table or filesystem writer.
package storage

import (
	"context"
	"fmt"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
)

// Options configures how Build formats storage.
type Options struct {
	Filesystem  string // constants.FSExt4 or constants.FSBtrfs
	Encrypted   bool
	BootSizeMiB int
	Passphrase  string // pre-collected; empty means non-interactive path (already validated upstream)
	Overwrite   bool   // for Image targets
}

// Builder drives C4 over a resolved Target.
type Builder struct {
	Run   *runner.Runner
	Probe *probe.Probe
	Stack *resource.Stack
}

func New(run *runner.Runner, prb *probe.Probe, stack *resource.Stack) *Builder {
	return &Builder{Run: run, Probe: prb, Stack: stack}
}

// Build dispatches on target.Kind once, as the design notes prescribe, and
// returns the resulting StorageLayout.
func (b *Builder) Build(ctx context.Context, target schema.Target, opts Options) (schema.StorageLayout, error) {
	switch target.Kind {
	case schema.TargetWholeDisk:
		return b.buildWholeDisk(ctx, target.DiskPath, opts)
	case schema.TargetPartitions:
		return b.buildPartitions(ctx, target.RootPartition, target.BootPartition, opts)
	case schema.TargetImage:
		return b.buildImage(ctx, target, opts)
	default:
		return schema.StorageLayout{}, &alma.Internal{Msg: "unknown target kind"}
	}
}

func (b *Builder) buildImage(ctx context.Context, target schema.Target, opts Options) (schema.StorageLayout, error) {
	if err := CreateSparseImage(target.ImagePath, target.ImageBytes, opts.Overwrite); err != nil {
		return schema.StorageLayout{}, alma.Step("creating sparse image", err)
	}
	loopDev, err := AttachLoop(ctx, b.Run, b.Stack, target.ImagePath)
	if err != nil {
		return schema.StorageLayout{}, err
	}
	layout, err := b.buildWholeDisk(ctx, loopDev, opts)
	if err != nil {
		return layout, err
	}
	layout.LoopDevice = loopDev
	return layout, nil
}

func (b *Builder) buildWholeDisk(ctx context.Context, diskPath string, opts Options) (schema.StorageLayout, error) {
	bootSize := opts.BootSizeMiB
	if bootSize == 0 {
		bootSize = constants.DefaultBootSizeMiB
	}

	if _, err := b.Run.RunChecked(ctx, []string{"sgdisk", "--zap-all", diskPath}, nil, ""); err != nil {
		return schema.StorageLayout{}, alma.Step("wiping existing signatures", err)
	}

	// p1: ESP of bootSize MiB, 1 MiB aligned. p2: remainder, Linux filesystem.
	espSpec := fmt.Sprintf("1:%dMiB:+%dMiB", constants.PartitionAlignMiB, bootSize)
	rootSpec := fmt.Sprintf("2:0:0")
	argv := []string{
		"sgdisk",
		"--new=" + espSpec, "--typecode=1:ef00", "--change-name=1:ALMA_ESP",
		"--new=" + rootSpec, "--typecode=2:8300", "--change-name=2:ALMA_ROOT",
		"--attributes=1:set:2", // legacy BIOS bootable attribute for hybrid MBR fallback
		diskPath,
	}
	if _, err := b.Run.RunChecked(ctx, argv, nil, ""); err != nil {
		return schema.StorageLayout{}, alma.Step("partitioning disk", err)
	}

	if _, err := b.Run.RunChecked(ctx, []string{"sfdisk", "--part-attrs", diskPath, "1", "LegacyBIOSBootable"}, nil, ""); err != nil {
		return schema.StorageLayout{}, alma.Step("setting MBR boot flag", err)
	}

	bootPart, rootPart, err := b.Probe.ResolvePartitions(ctx, diskPath)
	if err != nil {
		return schema.StorageLayout{}, alma.Step("waiting for partition nodes to settle", err)
	}

	return b.formatAndAssemble(ctx, bootPart, rootPart, opts)
}

func (b *Builder) buildPartitions(ctx context.Context, rootPart, bootPart string, opts Options) (schema.StorageLayout, error) {
	return b.formatAndAssemble(ctx, bootPart, rootPart, opts)
}

// formatAndAssemble formats the boot partition (if any) as FAT32, formats
// the root partition (through LUKS if requested) as ext4 or btrfs, and
// returns the resulting layout. Shared by the whole-disk and partition
// paths, which differ only in how boot/root partitions were obtained.
func (b *Builder) formatAndAssemble(ctx context.Context, bootPart, rootPart string, opts Options) (schema.StorageLayout, error) {
	layout := schema.StorageLayout{RootFS: opts.Filesystem}

	if bootPart != "" {
		if _, err := b.Run.RunChecked(ctx, []string{"mkfs.fat", "-F32", "-n", constants.LabelBoot, bootPart}, nil, ""); err != nil {
			return schema.StorageLayout{}, alma.Step("formatting boot partition", err)
		}
		layout.BootDevice = bootPart
	}

	rootDevice := rootPart
	if opts.Encrypted {
		mapperDev, uuid, err := LuksFormat(ctx, b.Run, b.Probe, b.Stack, rootPart, opts.Passphrase, constants.LuksMapperName)
		if err != nil {
			return schema.StorageLayout{}, err
		}
		rootDevice = mapperDev
		layout.Encrypted = true
		layout.LuksName = constants.LuksMapperName
		layout.LuksUUID = uuid
	}

	switch opts.Filesystem {
	case constants.FSBtrfs:
		if _, err := b.Run.RunChecked(ctx, []string{"mkfs.btrfs", "-f", "-L", constants.LabelRoot, rootDevice}, nil, ""); err != nil {
			return schema.StorageLayout{}, alma.Step("formatting root partition as btrfs", err)
		}
	default:
		if _, err := b.Run.RunChecked(ctx, []string{"mkfs.ext4", "-F", "-L", constants.LabelRoot, rootDevice}, nil, ""); err != nil {
			return schema.StorageLayout{}, alma.Step("formatting root partition as ext4", err)
		}
	}

	layout.RootDevice = rootDevice
	return layout, nil
}
