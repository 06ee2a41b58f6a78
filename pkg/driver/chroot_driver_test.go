package driver_test

import (
	"context"
	"testing"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/driver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestChrootRequiresDiskOrRootPartition(t *testing.T) {
	rt := driver.NewRuntime(alma.Context{}, zerolog.Nop())
	err := driver.Chroot(context.Background(), rt, driver.ChrootOptions{})
	require.Error(t, err)
	var bt *alma.BadTarget
	require.ErrorAs(t, err, &bt)
}

func TestChrootFailsCleanlyWhenRootPartitionDoesNotExist(t *testing.T) {
	rt := driver.NewRuntime(alma.Context{}, zerolog.Nop())
	err := driver.Chroot(context.Background(), rt, driver.ChrootOptions{
		RootPartition: "/dev/alma-test-does-not-exist",
	})
	require.Error(t, err)
}
