package driver

import (
	"context"
	"strconv"

	"github.com/almatool/alma/internal/alma"
)

// QemuOptions names the disk or image to boot.
type QemuOptions struct {
	DiskOrImage string
	MemoryMiB   int
	OVMFCode    string
	OVMFVars    string
}

// Qemu invokes qemu-system-x86_64 with OVMF firmware, attaching the disk
// or image as a virtio-blk device. It never touches C4/C5: the path is
// handed to QEMU as a raw file, with no loop attachment and no mount.
func Qemu(ctx context.Context, rt *Runtime, opts QemuOptions) (err error) {
	defer rt.finish(&err)

	if opts.DiskOrImage == "" {
		return &alma.BadTarget{Path: "", Reason: "qemu needs a disk or image path"}
	}

	memory := opts.MemoryMiB
	if memory == 0 {
		memory = 2048
	}

	argv := []string{
		"qemu-system-x86_64",
		"-enable-kvm",
		"-m", strconv.Itoa(memory),
		"-drive", "file=" + opts.DiskOrImage + ",if=virtio,format=raw",
	}
	if opts.OVMFCode != "" {
		argv = append(argv, "-drive", "if=pflash,format=raw,readonly=on,file="+opts.OVMFCode)
	}
	if opts.OVMFVars != "" {
		argv = append(argv, "-drive", "if=pflash,format=raw,file="+opts.OVMFVars)
	}

	return rt.Run.RunInteractive(ctx, argv, nil)
}
