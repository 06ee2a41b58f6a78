package storage_test

import (
	"context"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
	"github.com/almatool/alma/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsUnknownTargetKind(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	prb := probe.New(run, zerolog.Nop())
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	b := storage.New(run, prb, stack)
	_, err := b.Build(context.Background(), schema.Target{}, storage.Options{})
	require.Error(t, err)
	var internal *alma.Internal
	require.ErrorAs(t, err, &internal)
}

func TestBuildPartitionsFormatsBootAndRootInDryRun(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	prb := probe.New(run, zerolog.Nop())
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	b := storage.New(run, prb, stack)
	layout, err := b.Build(context.Background(), schema.Target{
		Kind:          schema.TargetPartitions,
		BootPartition: "/dev/sdx1",
		RootPartition: "/dev/sdx2",
	}, storage.Options{Filesystem: "ext4"})
	require.NoError(t, err)
	require.Equal(t, "/dev/sdx1", layout.BootDevice)
	require.Equal(t, "/dev/sdx2", layout.RootDevice)
	require.False(t, layout.Encrypted)
}
