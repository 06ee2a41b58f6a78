// Package driver implements the sub-command drivers (C8): create, install,
// chroot, and qemu, each orchestrating C1–C7 over a resolved Target. Every
// driver builds the same Runtime (runner, probe, resource stack, mount
// manager) and calls Unwind in a defer, matching the teacher's
// Prepare-run-Close pattern generalized to the full pipeline.
package driver

import (
	"os"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/internal/utils"
	"github.com/almatool/alma/pkg/mount"
	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/rs/zerolog"
)

// Runtime bundles C1–C3 and C5's manager, the set every driver needs
// before it can touch storage or mounts.
type Runtime struct {
	Ctx   alma.Context
	Log   zerolog.Logger
	Run   *runner.Runner
	Probe *probe.Probe
	Stack *resource.Stack
	Mount *mount.Manager
}

// NewRuntime wires C1–C3 and C5 together. The resource stack it creates
// installs a SIGINT/SIGTERM handler that unwinds the stack; no OnCancel
// hook is registered, so that handler does not signal a running child
// process.
func NewRuntime(actx alma.Context, log zerolog.Logger) *Runtime {
	run := runner.New(actx, log)
	stack := resource.New(log)
	return &Runtime{
		Ctx:   actx,
		Log:   log,
		Run:   run,
		Probe: probe.New(run, log),
		Stack: stack,
		Mount: mount.New(run, stack, log),
	}
}

// CheckHostTools verifies every RequiredHostTools entry is on PATH,
// failing fast with MissingHostTool before any destructive action.
func CheckHostTools(lookPath func(string) (string, error)) error {
	for _, name := range constants.RequiredHostTools {
		if _, err := lookPath(name); err != nil {
			return &alma.MissingHostTool{Name: name}
		}
	}
	return nil
}

// finish commits the resource stack on success or unwinds it on failure,
// then stops the signal listener. Every driver's top-level function should
// defer this exactly once, after Runtime construction.
func (rt *Runtime) finish(err *error) {
	if *err != nil {
		if uerr := rt.Stack.Unwind(); uerr != nil {
			rt.Log.Error().Err(uerr).Msg("errors occurred during resource unwind")
		}
	} else {
		rt.Stack.Commit()
	}
	rt.Stack.Close()
}

// scratchMountRoot allocates the temporary mount root ALMA mounts a target
// under when the caller doesn't supply one explicitly.
func scratchMountRoot() (string, error) {
	return os.MkdirTemp("", constants.TempMountRootPattern)
}

// chrootFor returns a Chroot bound to rootDir using rt's runner.
func (rt *Runtime) chrootFor(rootDir string) *utils.Chroot {
	return utils.NewChroot(rootDir, rt.Run)
}
