package bootstrap_test

import (
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/bootstrap"
	"github.com/almatool/alma/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadManifestRoundTrips(t *testing.T) {
	rootDir := t.TempDir()
	m := schema.Manifest{
		Schema:        constants.ManifestSchema,
		System:        "alma",
		Filesystem:    constants.FSBtrfs,
		Encrypted:     true,
		ExtraPackages: []string{"neovim"},
		AURPackages:   []string{"yay-bin"},
		AURHelper:     constants.AURHelperYay,
		Presets:       []string{"https://example.com/presets.git"},
		BootSizeMiB:   300,
	}

	require.NoError(t, bootstrap.WriteManifest(rootDir, m))

	got, err := bootstrap.ReadManifest(rootDir)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadManifestFailsWhenMissing(t *testing.T) {
	rootDir := t.TempDir()
	_, err := bootstrap.ReadManifest(rootDir)
	require.Error(t, err)
	var mr *alma.ManifestRead
	require.ErrorAs(t, err, &mr)
}

func TestReadManifestRejectsUnsupportedSchema(t *testing.T) {
	rootDir := t.TempDir()
	require.NoError(t, bootstrap.WriteManifest(rootDir, schema.Manifest{Schema: 99}))

	_, err := bootstrap.ReadManifest(rootDir)
	require.Error(t, err)
	var mr *alma.ManifestRead
	require.ErrorAs(t, err, &mr)
	assert.Contains(t, mr.Error(), "unsupported manifest schema")
}
