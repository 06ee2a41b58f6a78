package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTreeCopiesNestedFilesAndDirs(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "deep.txt"), []byte("deep"), 0644))

	require.NoError(t, copyTree(src, dst))

	top, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(top))

	deep, err := os.ReadFile(filepath.Join(dst, "nested", "deep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(deep))
}

func TestCopyTreeFailsOnMissingSource(t *testing.T) {
	dst := t.TempDir()
	err := copyTree(filepath.Join(dst, "does-not-exist"), filepath.Join(dst, "out"))
	require.Error(t, err)
}

func TestCopyLiveStateIsNoopWithoutMountedEntries(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	stack := resource.New(zerolog.Nop())
	defer stack.Close()
	rt := &Runtime{Log: zerolog.Nop(), Run: run, Stack: stack, Mount: newTestMountManager(run, stack)}

	// With no mounted entries yet, copyLiveState must return before touching
	// the filesystem at all, regardless of the requested flags.
	copyLiveState(rt, InstallOptions{CopyHome: true, CopyNetwork: true})
}

func TestCopyLiveStateSkipsBothCopiesWhenFlagsAreUnset(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	stack := resource.New(zerolog.Nop())
	defer stack.Close()
	mgr := newTestMountManager(run, stack)
	rootDir := t.TempDir()
	require.NoError(t, mgr.MountRoot(nil, "/dev/sdx2", "ext4", rootDir, nil))

	rt := &Runtime{Log: zerolog.Nop(), Run: run, Stack: stack, Mount: mgr}

	copyLiveState(rt, InstallOptions{CopyHome: false, CopyNetwork: false})

	_, err := os.Stat(filepath.Join(rootDir, "home"))
	assert.True(t, os.IsNotExist(err), "home must not be created when CopyHome is false")
}
