package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/runner"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(dryRun bool) *runner.Runner {
	return &runner.Runner{DryRun: dryRun, Log: zerolog.Nop()}
}

func TestRunCapturesOutput(t *testing.T) {
	r := newRunner(false)
	res, err := r.Run(context.Background(), []string{"echo", "-n", "hello"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, 0, res.Exit)
}

func TestRunCapturesNonZeroExitWithoutError(t *testing.T) {
	r := newRunner(false)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 7"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 7, res.Exit)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRunFeedsStdin(t *testing.T) {
	r := newRunner(false)
	res, err := r.Run(context.Background(), []string{"cat"}, nil, "from stdin")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", res.Stdout)
}

func TestRunSkipsMutatingCommandsInDryRun(t *testing.T) {
	r := newRunner(true)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "exit 9"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Exit, "dry-run must short-circuit before the command ever runs")
}

func TestRunAlwaysExecutesProbingCommandsInDryRun(t *testing.T) {
	r := newRunner(true)
	res, err := r.Run(context.Background(), []string{"lsblk", "--version"}, nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, 0, len(res.Stdout)+res.Exit, "lsblk --version should have actually run")
}

func TestRunCheckedWrapsNonZeroExit(t *testing.T) {
	r := newRunner(false)
	_, err := r.RunChecked(context.Background(), []string{"sh", "-c", "echo bad >&2; exit 3"}, nil, "")
	require.Error(t, err)
	var cf *alma.CommandFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, 3, cf.Exit)
	assert.Contains(t, cf.StderrTail, "bad")
}

func TestRunCheckedSucceedsOnZeroExit(t *testing.T) {
	r := newRunner(false)
	_, err := r.RunChecked(context.Background(), []string{"true"}, nil, "")
	require.NoError(t, err)
}

func TestRunCheckedSkippedInDryRunNeverFails(t *testing.T) {
	r := newRunner(true)
	_, err := r.RunChecked(context.Background(), []string{"sh", "-c", "exit 1"}, nil, "")
	require.NoError(t, err)
}

func TestKillGracefullyNilCmdIsNoop(t *testing.T) {
	runner.KillGracefully(nil, 10*time.Millisecond)
}
