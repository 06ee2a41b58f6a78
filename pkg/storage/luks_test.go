package storage_test

import (
	"context"
	"testing"

	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuksOpenPushesCloseOntoStack(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	dev, err := storage.LuksOpen(context.Background(), run, stack, "/dev/sdx2", "hunter2", "alma_root")
	require.NoError(t, err)
	assert.Equal(t, "/dev/mapper/alma_root", dev)
	assert.Equal(t, 1, stack.Len())
}

func TestLuksFormatPushesCloseBeforeFailingOnUUIDLookup(t *testing.T) {
	// luksFormat and open are mutating commands and are skipped under
	// dry-run, but BlkidUUID is a probing command that always runs; against
	// a partition that doesn't exist on this host, blkid fails, so the
	// cleanup must already be pushed by the time LuksFormat reports that
	// failure.
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	prb := probe.New(run, zerolog.Nop())
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	_, _, err := storage.LuksFormat(context.Background(), run, prb, stack, "/dev/alma-test-does-not-exist", "hunter2", "alma_root")
	require.Error(t, err)
	assert.Equal(t, 1, stack.Len())
}
