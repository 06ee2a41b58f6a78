// Package mount implements the mount manager (C5): it builds the ordered
// mount stack — root, btrfs subvolumes, boot, then API binds — generates
// /etc/fstab with genfstab, and writes /etc/crypttab for encrypted roots.
// Mount/unmount primitives are issued through
// github.com/containerd/containerd/mount, the same typed Mount{Type,
// Source, Options} plus mount.All idiom the teacher's pkg/mount/mount.go
// and pkg/op/operation.go use, instead of raw syscall.Mount calls.
package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/moby/sys/mountinfo"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Manager builds and tears down the mount stack for a single target root.
type Manager struct {
	Run   *runner.Runner
	Stack *resource.Stack
	Log   zerolog.Logger

	entries []schema.MountEntry
}

func New(run *runner.Runner, stack *resource.Stack, log zerolog.Logger) *Manager {
	return &Manager{Run: run, Stack: stack, Log: log}
}

// Entries returns the mount stack built so far, in the order mounted.
func (m *Manager) Entries() []schema.MountEntry {
	return append([]schema.MountEntry(nil), m.entries...)
}

// mountFS performs one filesystem mount, idempotently (already-mounted is
// treated as success), and pushes its unmount onto the resource stack.
func (m *Manager) mountFS(ctx context.Context, source, target, fstype string, options []string, kind schema.MountKind) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return alma.Step("creating mountpoint "+target, err)
	}

	mounted, err := mountinfo.Mounted(target)
	if err != nil {
		return alma.Step("checking mount status of "+target, err)
	}
	if mounted {
		m.Log.Debug().Str("target", target).Msg("already mounted")
	} else if m.Run.DryRun {
		m.Log.Info().Str("source", source).Str("target", target).Msg("dry-run: skipping mount")
	} else {
		mnt := mount.Mount{Type: fstype, Source: source, Options: options}
		if err := mount.All([]mount.Mount{mnt}, target); err != nil {
			return &alma.MountFailed{Target: target, Err: err}
		}
	}

	m.Stack.Push("mount:"+target, func() error {
		return m.unmount(target)
	})

	entry := schema.MountEntry{Source: source, Target: target, Kind: kind, FilesystemType: fstype, Options: options}
	if kind != schema.MountAPI {
		entry.FstabEntry = toFstab(source, target, fstype, options)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Manager) unmount(target string) error {
	if m.Run.DryRun {
		m.Log.Info().Str("target", target).Msg("dry-run: skipping unmount")
		return nil
	}
	mounted, err := mountinfo.Mounted(target)
	if err != nil || !mounted {
		return nil
	}
	if err := mount.UnmountAll(target, 0); err != nil {
		// A busy API-bind mount (e.g. a process still holding /proc open)
		// can refuse an ordinary unmount during unwind; fall back to a
		// lazy detach so the rest of the stack still tears down.
		m.Log.Warn().Err(err).Str("target", target).Msg("unmount failed, retrying with a lazy detach")
		if uerr := unix.Unmount(target, unix.MNT_DETACH); uerr != nil {
			return uerr
		}
	}
	return nil
}

// MountRoot mounts the root filesystem at rootDir.
func (m *Manager) MountRoot(ctx context.Context, device, fstype, rootDir string, options []string) error {
	opts := options
	if fstype == constants.FSBtrfs {
		opts = append(append([]string{}, options...), "subvol=@")
	}
	return m.mountFS(ctx, device, rootDir, fstype, opts, schema.MountFS)
}

// MountBtrfsSubvolumes mounts the @home/@log/@pkg/@snapshots subvolumes,
// each with compress=zstd,noatime. It does not create them: they must
// already exist (CreateBtrfsSubvolumes makes them after mkfs.btrfs).
func (m *Manager) MountBtrfsSubvolumes(ctx context.Context, device, rootDir string) error {
	for _, subvol := range constants.BtrfsSubvolumes {
		if subvol == "@" {
			continue // mounted as the root filesystem itself
		}
		mountpoint := filepath.Join(rootDir, constants.BtrfsSubvolumeMountpoint[subvol])
		opts := []string{"compress=zstd", "noatime", "subvol=" + subvol}
		if err := m.mountFS(ctx, device, mountpoint, constants.FSBtrfs, opts, schema.MountFS); err != nil {
			return alma.Step("mounting btrfs subvolume "+subvol, err)
		}
	}
	return nil
}

// CreateBtrfsSubvolumes mounts the top-level btrfs volume at a scratch
// mountpoint, creates the @, @home, @log, @pkg, @snapshots subvolumes via
// btrfs subvolume create, and unmounts the scratch mount — done once,
// before the ordered mount stack is built.
func (m *Manager) CreateBtrfsSubvolumes(ctx context.Context, device, scratchDir string) error {
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return alma.Step("creating btrfs scratch mountpoint", err)
	}
	if !m.Run.DryRun {
		if err := mount.All([]mount.Mount{{Type: constants.FSBtrfs, Source: device}}, scratchDir); err != nil {
			return &alma.MountFailed{Target: scratchDir, Err: err}
		}
		defer mount.UnmountAll(scratchDir, 0)
	}
	for _, subvol := range constants.BtrfsSubvolumes {
		argv := []string{"btrfs", "subvolume", "create", filepath.Join(scratchDir, subvol)}
		if _, err := m.Run.RunChecked(ctx, argv, nil, ""); err != nil {
			return alma.Step("creating btrfs subvolume "+subvol, err)
		}
	}
	return nil
}

// MountBoot mounts the ESP at rootDir/boot. ALMA uses /boot (not
// /boot/efi) as the ESP mountpoint to keep GRUB's config collocated with
// the ESP.
func (m *Manager) MountBoot(ctx context.Context, device, rootDir string) error {
	return m.mountFS(ctx, device, filepath.Join(rootDir, "boot"), "vfat", []string{"rw"}, schema.MountFS)
}

// MountAPIBinds installs the /proc, /sys, /dev, /dev/pts, /run bind mounts
// immediately before entering a chroot. They are never written to fstab.
func (m *Manager) MountAPIBinds(ctx context.Context, rootDir string) error {
	for _, p := range constants.APIBinds {
		target := filepath.Join(rootDir, p)
		if err := m.mountFS(ctx, p, target, "", []string{"bind", "rec"}, schema.MountAPI); err != nil {
			return alma.Step("bind-mounting "+p, err)
		}
	}
	return nil
}

// MountSharedDirectory bind-mounts a preset's shared directory read-only
// into the chroot at /shared/<name>.
func (m *Manager) MountSharedDirectory(ctx context.Context, hostPath, rootDir, name string) error {
	target := filepath.Join(rootDir, "shared", name)
	return m.mountFS(ctx, hostPath, target, "", []string{"bind", "ro"}, schema.MountBind)
}

func toFstab(source, target, fstype string, options []string) *fstab.Mount {
	opts := map[string]string{}
	for _, o := range options {
		if strings.Contains(o, "=") {
			kv := strings.SplitN(o, "=", 2)
			opts[kv[0]] = kv[1]
		} else {
			opts[o] = ""
		}
	}
	return &fstab.Mount{
		Spec:    source,
		File:    target,
		VfsType: fstype,
		MntOps:  opts,
		Freq:    0,
		PassNo:  0,
	}
}

// GenFstab runs genfstab -U -p against rootDir and writes its output to
// rootDir/etc/fstab, the UUID-only invariant being genfstab's own
// contract — ALMA never hand-assembles fstab lines from device paths.
func GenFstab(ctx context.Context, run *runner.Runner, rootDir string) error {
	res, err := run.RunChecked(ctx, []string{"genfstab", "-U", "-p", rootDir}, nil, "")
	if err != nil {
		return alma.Step("generating fstab", err)
	}
	fstabPath := filepath.Join(rootDir, "etc", "fstab")
	if err := os.MkdirAll(filepath.Dir(fstabPath), 0755); err != nil {
		return alma.Step("creating /etc", err)
	}
	if err := os.WriteFile(fstabPath, []byte(res.Stdout), 0644); err != nil {
		return alma.Step("writing fstab", err)
	}
	return nil
}

// WriteCrypttab writes rootDir/etc/crypttab referencing the LUKS UUID, for
// encrypted roots.
func WriteCrypttab(rootDir, luksUUID, mapperName string) error {
	line := fmt.Sprintf("%s UUID=%s none luks\n", mapperName, luksUUID)
	path := filepath.Join(rootDir, "etc", "crypttab")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return alma.Step("creating /etc", err)
	}
	if err := os.WriteFile(path, []byte(line), 0600); err != nil {
		return alma.Step("writing crypttab", err)
	}
	return nil
}

// GrubCmdlineExtras returns the extra kernel command-line tokens GRUB's
// default entry needs for this layout: cryptdevice=... for encrypted
// roots, rootflags=subvol=@ for btrfs.
func GrubCmdlineExtras(layout schema.StorageLayout) string {
	var parts []string
	if layout.Encrypted {
		parts = append(parts, fmt.Sprintf("cryptdevice=UUID=%s:%s", layout.LuksUUID, layout.LuksName))
	}
	if layout.RootFS == constants.FSBtrfs {
		parts = append(parts, "rootflags=subvol=@")
	}
	return strings.Join(parts, " ")
}
