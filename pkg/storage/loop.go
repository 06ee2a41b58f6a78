package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
)

// ParseSize parses an IEC size string ("10GiB", "512MiB", or a bare number
// interpreted as MiB), case-insensitive, per the image-target sizing rule.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	units := []struct {
		suffix string
		mul    int64
	}{
		{"TIB", 1 << 40},
		{"GIB", 1 << 30},
		{"MIB", 1 << 20},
		{"KIB", 1 << 10},
	}

	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			return int64(n * float64(u.mul)), nil
		}
	}

	// Bare number: MiB.
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: expected an IEC unit (KiB/MiB/GiB/TiB) or a bare MiB integer", s)
	}
	return n * (1 << 20), nil
}

// CreateSparseImage creates a sparse file of the requested size, refusing
// to overwrite an existing file unless overwrite is set.
func CreateSparseImage(path string, size int64, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return &alma.BadTarget{Path: path, Reason: "image already exists; pass --overwrite to replace it"}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("sizing image file: %w", err)
	}
	return nil
}

// AttachLoop attaches path as a loop device with automatic partition-scan
// (-fP), pushing detach onto the stack, and returns the loop device path.
func AttachLoop(ctx context.Context, run *runner.Runner, stack *resource.Stack, path string) (string, error) {
	res, err := run.RunChecked(ctx, []string{"losetup", "-fP", "--show", path}, nil, "")
	if err != nil {
		return "", alma.Step("attaching loop device for "+path, err)
	}
	dev := strings.TrimSpace(res.Stdout)
	if dev == "" && run.DryRun {
		dev = "/dev/loop0" // placeholder so downstream dry-run steps have a plausible path to print
	}
	stack.Push("loop:"+dev, func() error {
		_, err := run.RunChecked(context.Background(), []string{"losetup", "-d", dev}, nil, "")
		return err
	})
	return dev, nil
}
