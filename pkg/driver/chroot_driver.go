package driver

import (
	"context"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/storage"
)

// ChrootOptions identifies the existing medium to re-enter.
type ChrootOptions struct {
	DiskPath      string
	RootPartition string
	BootPartition string
}

// Chroot probes an existing medium, auto-detects LUKS and the root
// filesystem type via blkid, builds C4's read-write state without running
// C7, and hands the caller an interactive shell before unwinding.
func Chroot(ctx context.Context, rt *Runtime, opts ChrootOptions) (err error) {
	defer rt.finish(&err)

	rootPart := opts.RootPartition
	bootPart := opts.BootPartition
	if rootPart == "" {
		if opts.DiskPath == "" {
			return &alma.BadTarget{Path: "", Reason: "chroot needs a disk or --root-partition"}
		}
		bootPart, rootPart, err = rt.Probe.ResolvePartitions(ctx, opts.DiskPath)
		if err != nil {
			return err
		}
	}

	fsType, err := rt.Probe.BlkidType(ctx, rootPart)
	if err != nil {
		return alma.Step("detecting root filesystem type", err)
	}

	device := rootPart
	if fsType == "crypto_LUKS" {
		passphrase, perr := storage.PromptExistingPassphrase()
		if perr != nil {
			return perr
		}
		mapperDev, uerr := storage.LuksOpen(ctx, rt.Run, rt.Stack, rootPart, passphrase, constants.LuksMapperName)
		if uerr != nil {
			return uerr
		}
		device = mapperDev
		fsType, err = rt.Probe.BlkidType(ctx, device)
		if err != nil {
			return alma.Step("detecting root filesystem type on unlocked mapper", err)
		}
	}

	rootFS := constants.FSExt4
	if strings.Contains(fsType, "btrfs") {
		rootFS = constants.FSBtrfs
	}

	rootDir, err := scratchMountRoot()
	if err != nil {
		return alma.Step("allocating temporary mount root", err)
	}

	if err := rt.Mount.MountRoot(ctx, device, rootFS, rootDir, nil); err != nil {
		return err
	}
	if rootFS == constants.FSBtrfs {
		if err := rt.Mount.MountBtrfsSubvolumes(ctx, device, rootDir); err != nil {
			return err
		}
	}
	if bootPart != "" {
		if err := rt.Mount.MountBoot(ctx, bootPart, rootDir); err != nil {
			return err
		}
	}
	if err := rt.Mount.MountAPIBinds(ctx, rootDir); err != nil {
		return err
	}

	return rt.chrootFor(rootDir).Interactive(ctx, nil)
}
