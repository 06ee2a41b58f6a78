package driver

import (
	"errors"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHostToolsPassesWhenEveryToolIsFound(t *testing.T) {
	err := CheckHostTools(func(name string) (string, error) { return "/usr/bin/" + name, nil })
	require.NoError(t, err)
}

func TestCheckHostToolsFailsFastOnFirstMissingTool(t *testing.T) {
	err := CheckHostTools(func(name string) (string, error) {
		if name == "sgdisk" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	})
	require.Error(t, err)
	var mt *alma.MissingHostTool
	require.ErrorAs(t, err, &mt)
}

func TestFinishCommitsStackOnSuccess(t *testing.T) {
	rt := NewRuntime(alma.Context{}, zerolog.Nop())
	ran := false
	rt.Stack.Push("x", func() error { ran = true; return nil })

	var err error
	rt.finish(&err)

	assert.False(t, ran, "finish must commit (not unwind) the pushed cleanup when err is nil")
}

func TestFinishUnwindsStackOnFailure(t *testing.T) {
	rt := NewRuntime(alma.Context{}, zerolog.Nop())
	ran := false
	rt.Stack.Push("x", func() error { ran = true; return nil })

	err := errors.New("boom")
	rt.finish(&err)

	assert.True(t, ran, "finish must unwind the pushed cleanup when err is non-nil")
}

func TestScratchMountRootReturnsDistinctDirectories(t *testing.T) {
	a, err := scratchMountRoot()
	require.NoError(t, err)
	b, err := scratchMountRoot()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
