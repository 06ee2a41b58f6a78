package constants

import (
	"errors"
	"time"
)

// ErrAlreadyMounted signals that a mount step found its target already
// mounted and treated that as success rather than failure.
var ErrAlreadyMounted = errors.New("already mounted")

// Filesystem kinds accepted for the root filesystem.
const (
	FSExt4  = "ext4"
	FSBtrfs = "btrfs"
)

// Default sizes and labels, lifted from the source implementation's
// constants module.
const (
	DefaultBootSizeMiB = 300
	MinDiskSizeBytes   = 2 << 30 // 2 GiB

	LabelBoot = "ALMABOOT"
	LabelRoot = "ALMAROOT"

	LuksMapperName = "alma_root"

	PartitionAlignMiB = 1
)

// BTRFS subvolume layout, mounted by the mount manager with
// compress=zstd,noatime.
var BtrfsSubvolumes = []string{"@", "@home", "@log", "@pkg", "@snapshots"}

// BtrfsSubvolumeMountpoint maps a subvolume name to its mountpoint relative
// to the target root.
var BtrfsSubvolumeMountpoint = map[string]string{
	"@":          "/",
	"@home":      "/home",
	"@log":       "/var/log",
	"@pkg":       "/var/cache/pacman/pkg",
	"@snapshots": "/.snapshots",
}

// AUR helpers the bootstrapper knows how to build and install.
const (
	AURHelperParu = "paru"
	AURHelperYay  = "yay"
)

// AUR builder user, created inside the chroot for AUR builds; it is not
// removed afterwards.
const AURBuilderUser = "almabuilder"

// ManifestPath is where a running ALMA system records the invocation that
// produced it, consumed later by `alma install`.
const ManifestPath = "/etc/alma/manifest.toml"

// ManifestSchema is the manifest format version.
const ManifestSchema = 1

// API bind mounts installed immediately before entering a chroot and torn
// down immediately after, in this order.
var APIBinds = []string{"/proc", "/sys", "/dev", "/dev/pts", "/run"}

// RequiredHostTools are probed for at startup; a missing tool is a fatal
// MissingHostTool error before any destructive action runs.
var RequiredHostTools = []string{
	"pacstrap", "arch-chroot", "genfstab", "sgdisk", "mkfs.fat", "mkfs.ext4",
	"mkfs.btrfs", "losetup", "blkid", "lsblk", "findmnt", "cryptsetup", "git", "sfdisk",
}

// PartitionSettleTimeout bounds the wait for device nodes to appear after
// partitioning. PartitionSettleBaseDelay is the first backoff step.
const (
	PartitionSettleTimeout   = 3 * time.Second
	PartitionSettleBaseDelay = 100 * time.Millisecond
)

// KillGracePeriod is how long a child is given to exit after SIGTERM before
// SIGKILL follows, during cancellation.
const KillGracePeriod = 10 * time.Second

// DefaultLocale is always enabled in /etc/locale.gen alongside any
// interactively selected locales.
const DefaultLocale = "en_US.UTF-8 UTF-8"

// TempMountRootPattern is the mkdtemp template for the temporary mount root
// when the caller doesn't request a specific one.
const TempMountRootPattern = "alma-*"
