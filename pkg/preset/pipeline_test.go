package preset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/preset"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAggregatesPackagesAcrossSourcesInGlobalOrder(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFile(t, filepath.Join(dirA, "20-extra.toml"), `packages = ["htop"]`)
	writeFile(t, filepath.Join(dirB, "10-base.toml"), `packages = ["vim"]
aur_packages = ["yay-bin"]
environment_variables = ["ALMA_TOKEN"]`)

	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	set, err := preset.Resolve(context.Background(), stack, []string{dirA, dirB}, []string{"base-devel"})
	require.NoError(t, err)

	assert.Equal(t, []string{"base-devel", "htop", "vim"}, set.AggregatedPackages)
	assert.Equal(t, []string{"yay-bin"}, set.AggregatedAUR)
	assert.Equal(t, []string{"ALMA_TOKEN"}, set.RequiredEnvironment)
	require.Len(t, set.Presets, 2)
}

func TestResolveDedupesRepeatedPackagesAcrossPresets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10-a.toml"), `packages = ["vim"]`)
	writeFile(t, filepath.Join(dir, "20-b.toml"), `packages = ["vim", "git"]`)

	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	set, err := preset.Resolve(context.Background(), stack, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vim", "git"}, set.AggregatedPackages)
}

func TestResolveAggregatesParseErrorsInsteadOfStoppingAtFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "10-bad.toml"), `bogus_key = 1`)
	writeFile(t, filepath.Join(dir, "20-alsobad.toml"), `also_bogus = 2`)

	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	_, err := preset.Resolve(context.Background(), stack, []string{dir}, nil)
	require.Error(t, err)
}

func TestCheckEnvironmentPassesWhenVariablesArePresent(t *testing.T) {
	require.NoError(t, os.Setenv("ALMA_TEST_REQUIRED_VAR", "x"))
	defer os.Unsetenv("ALMA_TEST_REQUIRED_VAR")

	err := preset.CheckEnvironment(schema.PresetSet{RequiredEnvironment: []string{"ALMA_TEST_REQUIRED_VAR"}})
	assert.NoError(t, err)
}

func TestCheckEnvironmentFailsOnFirstMissingVariable(t *testing.T) {
	os.Unsetenv("ALMA_TEST_MISSING_VAR")

	err := preset.CheckEnvironment(schema.PresetSet{RequiredEnvironment: []string{"ALMA_TEST_MISSING_VAR"}})
	require.Error(t, err)
	var me *alma.MissingEnvironment
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "ALMA_TEST_MISSING_VAR", me.Var)
}
