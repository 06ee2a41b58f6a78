package mount_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/mount"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/almatool/alma/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *mount.Manager {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	stack := resource.New(zerolog.Nop())
	t.Cleanup(stack.Close)
	return mount.New(run, stack, zerolog.Nop())
}

func TestMountRootRecordsEntryAndFstabLine(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountRoot(context.Background(), "/dev/sdx2", constants.FSExt4, rootDir, nil))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, rootDir, entries[0].Target)
	assert.Equal(t, schema.MountFS, entries[0].Kind)
	require.NotNil(t, entries[0].FstabEntry)
	assert.Equal(t, "/dev/sdx2", entries[0].FstabEntry.Spec)
}

func TestMountRootAddsBtrfsSubvolOption(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountRoot(context.Background(), "/dev/mapper/alma_root", constants.FSBtrfs, rootDir, nil))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Options, "subvol=@")
}

func TestMountBtrfsSubvolumesSkipsTopLevelAndMountsTheRest(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountBtrfsSubvolumes(context.Background(), "/dev/mapper/alma_root", rootDir))

	entries := m.Entries()
	assert.Len(t, entries, len(constants.BtrfsSubvolumes)-1)
	for _, e := range entries {
		assert.Contains(t, e.Options, "compress=zstd")
		assert.Contains(t, e.Options, "noatime")
	}
}

func TestMountBootMountsAtRootDirBoot(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountBoot(context.Background(), "/dev/sdx1", rootDir))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(rootDir, "boot"), entries[0].Target)
}

func TestMountAPIBindsNeverWrittenToFstab(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountAPIBinds(context.Background(), rootDir))

	entries := m.Entries()
	assert.Len(t, entries, len(constants.APIBinds))
	for _, e := range entries {
		assert.Equal(t, schema.MountAPI, e.Kind)
		assert.Nil(t, e.FstabEntry)
	}
}

func TestMountSharedDirectoryIsReadOnlyBind(t *testing.T) {
	m := newManager(t)
	rootDir := t.TempDir()

	require.NoError(t, m.MountSharedDirectory(context.Background(), "/srv/preset-data", rootDir, "mypreset"))

	entries := m.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(rootDir, "shared", "mypreset"), entries[0].Target)
	assert.Contains(t, entries[0].Options, "ro")
}

func TestGenFstabWritesGenfstabOutputToEtcFstab(t *testing.T) {
	run := &runner.Runner{DryRun: true, Log: zerolog.Nop()}
	rootDir := t.TempDir()

	// genfstab is a mutating command from the runner's point of view and is
	// skipped under dry-run, producing empty output; GenFstab must still
	// create /etc/fstab with whatever it was given.
	require.NoError(t, mount.GenFstab(context.Background(), run, rootDir))

	_, err := os.Stat(filepath.Join(rootDir, "etc", "fstab"))
	require.NoError(t, err)
}

func TestWriteCrypttabWritesLuksLine(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, mount.WriteCrypttab(rootDir, "1111-2222", "alma_root"))

	data, err := os.ReadFile(filepath.Join(rootDir, "etc", "crypttab"))
	require.NoError(t, err)
	assert.Equal(t, "alma_root UUID=1111-2222 none luks\n", string(data))
}

func TestGrubCmdlineExtrasForPlainExt4(t *testing.T) {
	extras := mount.GrubCmdlineExtras(schema.StorageLayout{RootFS: constants.FSExt4})
	assert.Equal(t, "", extras)
}

func TestGrubCmdlineExtrasForEncryptedBtrfs(t *testing.T) {
	extras := mount.GrubCmdlineExtras(schema.StorageLayout{
		RootFS:    constants.FSBtrfs,
		Encrypted: true,
		LuksUUID:  "abcd-1234",
		LuksName:  "alma_root",
	})
	assert.Equal(t, "cryptdevice=UUID=abcd-1234:alma_root rootflags=subvol=@", extras)
}
