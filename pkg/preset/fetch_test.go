package preset_test

import (
	"context"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/preset"
	"github.com/almatool/alma/pkg/resource"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReturnsLocalPathUnchanged(t *testing.T) {
	dir := t.TempDir()
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	got, err := preset.Acquire(context.Background(), stack, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Equal(t, 0, stack.Len(), "a local path must not push any temp-dir cleanup")
}

func TestAcquireRejectsUnrecognizedSource(t *testing.T) {
	stack := resource.New(zerolog.Nop())
	defer stack.Close()

	_, err := preset.Acquire(context.Background(), stack, "https://example.com/some-preset-dir")
	require.Error(t, err)
	var pf *alma.PresetFetch
	require.ErrorAs(t, err, &pf)
}
