// Package probe implements the block-device probe (C2): enumerating
// removable/loop devices, validating a caller's chosen target, and waiting
// for partition device nodes to settle after partitioning. It shells out to
// lsblk/blkid/findmnt through the command runner (C1) rather than
// reimplementing partition-table parsing, and cross-checks with
// github.com/jaypipes/ghw the way the teacher's upgrade_kcrypt.go walks
// ghw.Block() to classify partitions.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
	"github.com/avast/retry-go"
	"github.com/jaypipes/ghw"
	"github.com/rs/zerolog"
)

// Device is a disk or partition reported by lsblk.
type Device struct {
	Path       string
	SizeBytes  int64
	Removable  bool
	Type       string // "disk", "part", "loop"
	FSType     string
	MountPoint string
	Children   []Device
}

// Probe enumerates and validates block devices on behalf of the
// sub-command drivers.
type Probe struct {
	Run *runner.Runner
	Log zerolog.Logger
}

func New(run *runner.Runner, log zerolog.Logger) *Probe {
	return &Probe{Run: run, Log: log}
}

// lsblk invokes lsblk -J -O -b against the given paths (or every device if
// none given) and decodes its JSON output. lsblk always executes even in
// dry-run, since it is a probing command, not a mutation.
func (p *Probe) lsblk(ctx context.Context, paths ...string) (schema.LsblkOutput, error) {
	argv := append([]string{"lsblk", "-J", "-O", "-b"}, paths...)
	res, err := p.Run.RunChecked(ctx, argv, nil, "")
	if err != nil {
		return schema.LsblkOutput{}, err
	}
	var out schema.LsblkOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return schema.LsblkOutput{}, fmt.Errorf("decoding lsblk output: %w", err)
	}
	return out, nil
}

func toDevice(d schema.LsblkDevice) Device {
	path := d.Path
	if path == "" {
		path = "/dev/" + d.Name
	}
	dev := Device{
		Path:       path,
		SizeBytes:  d.Size,
		Removable:  d.RM,
		Type:       d.Type,
		FSType:     d.FSType,
		MountPoint: d.MountPoint,
	}
	for _, c := range d.Children {
		dev.Children = append(dev.Children, toDevice(c))
	}
	return dev
}

// EnumerateRemovable returns devices where the kernel's removable flag is
// set OR the device is a loop device. ghw.Block() is consulted as a
// cross-check on top of lsblk, in the same spirit as the teacher's
// ghw-based partition classification.
func (p *Probe) EnumerateRemovable(ctx context.Context) ([]Device, error) {
	out, err := p.lsblk(ctx)
	if err != nil {
		return nil, alma.Step("enumerating block devices", err)
	}

	var removable []Device
	for _, bd := range out.Blockdevices {
		dev := toDevice(bd)
		isLoop := dev.Type == "loop" || strings.HasPrefix(dev.Path, "/dev/loop")
		if dev.Removable || isLoop {
			removable = append(removable, dev)
		}
	}

	if block, err := ghw.Block(); err == nil {
		for _, disk := range block.Disks {
			if disk.IsRemovable && !containsPath(removable, "/dev/"+disk.Name) {
				removable = append(removable, Device{
					Path:      "/dev/" + disk.Name,
					SizeBytes: int64(disk.SizeBytes),
					Removable: true,
					Type:      "disk",
				})
			}
		}
	} else {
		p.Log.Debug().Err(err).Msg("ghw block enumeration unavailable, continuing with lsblk only")
	}

	return removable, nil
}

func containsPath(devs []Device, path string) bool {
	for _, d := range devs {
		if d.Path == path {
			return true
		}
	}
	return false
}

// ValidateTarget checks a caller-supplied path against the whole-disk/
// non-removable/size-floor rules.
func (p *Probe) ValidateTarget(ctx context.Context, path string, wholeDiskMode, allowNonRemovable bool) (Device, error) {
	out, err := p.lsblk(ctx, path)
	if err != nil {
		var cf *alma.CommandFailed
		if errors.As(err, &cf) {
			return Device{}, &alma.BadTarget{Path: path, Reason: "device not found: " + strings.TrimSpace(cf.StderrTail)}
		}
		return Device{}, alma.Step("validating target "+path, err)
	}
	if len(out.Blockdevices) == 0 {
		return Device{}, &alma.BadTarget{Path: path, Reason: "device not found"}
	}
	dev := toDevice(out.Blockdevices[0])

	if wholeDiskMode && dev.Type == "part" {
		return Device{}, &alma.BadTarget{Path: path, Reason: "path is a partition but whole-disk mode was requested"}
	}
	if !dev.Removable && dev.Type != "loop" && !allowNonRemovable {
		return Device{}, &alma.BadTarget{Path: path, Reason: "device is not removable; pass the non-removable override to proceed"}
	}
	if dev.SizeBytes < constants.MinDiskSizeBytes {
		return Device{}, &alma.BadTarget{Path: path, Reason: fmt.Sprintf("device size %d bytes is below the %d byte floor", dev.SizeBytes, constants.MinDiskSizeBytes)}
	}
	return dev, nil
}

// ResolvePartitions waits for a whole disk's two partition device nodes to
// appear, retrying with bounded exponential backoff up to
// PartitionSettleTimeout, since device-node creation is asynchronous with
// respect to the partitioning tool's exit.
func (p *Probe) ResolvePartitions(ctx context.Context, diskPath string) (bootPartition, rootPartition string, err error) {
	boot := partitionNode(diskPath, 1)
	root := partitionNode(diskPath, 2)

	settleCtx, cancel := context.WithTimeout(ctx, constants.PartitionSettleTimeout)
	defer cancel()

	err = retry.Do(
		func() error {
			out, lerr := p.lsblk(ctx, diskPath)
			if lerr != nil {
				return lerr
			}
			if len(out.Blockdevices) == 0 || len(out.Blockdevices[0].Children) < 2 {
				return &alma.PartitionNotSettled{Device: diskPath}
			}
			return nil
		},
		retry.Context(settleCtx),
		retry.Attempts(100), // never reached; settleCtx's deadline is the real bound
		retry.MaxDelay(500*time.Millisecond),
		retry.Delay(constants.PartitionSettleBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", "", &alma.PartitionNotSettled{Device: diskPath}
	}
	return boot, root, nil
}

// partitionNode guesses the conventional partition device node name; NVMe
// and loop devices use a "p" infix before the partition number.
func partitionNode(diskPath string, n int) string {
	if strings.HasSuffix(diskPath, "0") || strings.Contains(diskPath, "nvme") || strings.Contains(diskPath, "loop") || strings.Contains(diskPath, "mmcblk") {
		return fmt.Sprintf("%sp%d", diskPath, n)
	}
	return fmt.Sprintf("%s%d", diskPath, n)
}

// BlkidUUID returns the UUID blkid reports for dev.
func (p *Probe) BlkidUUID(ctx context.Context, dev string) (string, error) {
	res, err := p.Run.RunChecked(ctx, []string{"blkid", "-s", "UUID", "-o", "value", dev}, nil, "")
	if err != nil {
		return "", alma.Step("reading UUID for "+dev, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// BlkidType returns the filesystem/container type blkid reports for dev,
// e.g. "ext4", "btrfs", "crypto_LUKS".
func (p *Probe) BlkidType(ctx context.Context, dev string) (string, error) {
	res, err := p.Run.RunChecked(ctx, []string{"blkid", "-s", "TYPE", "-o", "value", dev}, nil, "")
	if err != nil {
		return "", alma.Step("reading TYPE for "+dev, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// IsMounted uses findmnt to check whether target is currently mounted.
func (p *Probe) IsMounted(ctx context.Context, target string) bool {
	res, err := p.Run.RunChecked(ctx, []string{"findmnt", target}, nil, "")
	return err == nil && res.Exit == 0
}
