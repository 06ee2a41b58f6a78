package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"4GiB", 4 << 30},
		{"512MiB", 512 << 20},
		{"1TiB", 1 << 40},
		{"2048KiB", 2048 << 10},
		{"100", 100 << 20},
		{"1.5GiB", int64(1.5 * float64(1<<30))},
		{" 4gib ", 4 << 30},
	}
	for _, c := range cases {
		got, err := storage.ParseSize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	_, err := storage.ParseSize("banana")
	assert.Error(t, err)
}

func TestCreateSparseImageWritesRequestedSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	require.NoError(t, storage.CreateSparseImage(path, 8<<20, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8<<20), info.Size())
}

func TestCreateSparseImageRefusesToOverwriteByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	require.NoError(t, storage.CreateSparseImage(path, 4<<20, false))

	err := storage.CreateSparseImage(path, 4<<20, false)
	require.Error(t, err)
	var bt *alma.BadTarget
	require.ErrorAs(t, err, &bt)
}

func TestCreateSparseImageOverwriteAllowsReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	require.NoError(t, storage.CreateSparseImage(path, 4<<20, false))
	require.NoError(t, storage.CreateSparseImage(path, 16<<20, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16<<20), info.Size())
}

func TestAttachLoopDryRunReturnsPlaceholderDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	require.NoError(t, storage.CreateSparseImage(path, 4<<20, false))

	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	dev, err := storage.AttachLoop(context.Background(), run, stack, path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/loop0", dev)
	assert.Equal(t, 1, stack.Len(), "AttachLoop must push a detach cleanup even in dry-run")
}
