package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/mount"
	"github.com/almatool/alma/pkg/schema"
	"github.com/foxboron/go-uefi/efi/attributes"
	"github.com/foxboron/go-uefi/efivar"
)

// installBootloader installs GRUB for UEFI or BIOS depending on the
// firmware the host was booted with (see hostIsUEFI). When the caller supplied --root-partition without
// --boot-partition, layout.BootDevice is empty and bootloader installation
// is skipped entirely, per the design's Partitions-mode edge case.
func (b *Bootstrapper) installBootloader(ctx context.Context, layout schema.StorageLayout, opts Options) error {
	if layout.BootDevice == "" {
		b.Log.Info().Msg("no boot partition; skipping bootloader installation")
		return nil
	}

	if err := b.appendGrubCmdlineExtras(layout); err != nil {
		return alma.Step("configuring GRUB command line", err)
	}

	if hostIsUEFI() {
		if _, err := b.Chroot.Run(ctx, "grub-install --target=x86_64-efi --efi-directory=/boot --bootloader-id=ALMA --removable", nil); err != nil {
			return alma.Step("installing GRUB (UEFI)", err)
		}
	} else if opts.WholeDiskPath != "" {
		cmd := fmt.Sprintf("grub-install --target=i386-pc %s", opts.WholeDiskPath)
		if _, err := b.Chroot.Run(ctx, cmd, nil); err != nil {
			return alma.Step("installing GRUB (BIOS)", err)
		}
	} else {
		b.Log.Info().Msg("BIOS firmware but no whole-disk target; skipping GRUB BIOS installation")
		return nil
	}

	if _, err := b.Chroot.Run(ctx, "grub-mkconfig -o /boot/grub/grub.cfg", nil); err != nil {
		return alma.Step("generating grub.cfg", err)
	}
	return nil
}

// appendGrubCmdlineExtras adds cryptdevice=/rootflags= tokens to
// GRUB_CMDLINE_LINUX_DEFAULT in /etc/default/grub before grub-mkconfig
// runs.
func (b *Bootstrapper) appendGrubCmdlineExtras(layout schema.StorageLayout) error {
	extras := mount.GrubCmdlineExtras(layout)
	if extras == "" {
		return nil
	}

	path := filepath.Join(b.RootDir, "etc", "default", "grub")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		data = nil
	}

	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "GRUB_CMDLINE_LINUX_DEFAULT=") {
			lines[i] = insertCmdlineExtras(line, extras)
			found = true
		}
	}
	if !found {
		lines = append(lines, fmt.Sprintf("GRUB_CMDLINE_LINUX_DEFAULT=\"%s\"", extras))
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

// hostIsUEFI reports whether the running host was booted via UEFI
// firmware, by probing for the SecureBoot efivar the same way the
// teacher's UKI boot path does (steps_uki.go's efi.GetSecureBoot()
// check), stopping short of the secure-boot state itself: a successful
// read means the efivars filesystem exists at all, which only a UEFI
// boot exposes.
func hostIsUEFI() bool {
	_, _, err := attributes.ReadEfivars(efivar.SecureBoot.Name)
	return err == nil
}

func insertCmdlineExtras(line, extras string) string {
	idx := strings.LastIndex(line, "\"")
	if idx < 0 {
		return line + " " + extras
	}
	prefixIdx := strings.Index(line, "\"")
	if prefixIdx == idx {
		return line
	}
	return line[:idx] + " " + extras + line[idx:]
}
