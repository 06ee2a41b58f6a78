// Package runner implements the command runner (C1): it spawns child
// processes, captures their output, and honors dry-run — mirroring the way
// the teacher's internal/utils wraps exec.Command with structured zerolog
// breadcrumbs before and after every invocation.
package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/almatool/alma/internal/alma"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// stderrTailLimit bounds CommandFailed.StderrTail.
const stderrTailLimit = 4096

// probingCommands always execute even in dry-run mode: dry-run simulates
// mutations, not observations.
var probingCommands = map[string]bool{
	"lsblk":   true,
	"blkid":   true,
	"findmnt": true,
}

// Result is the captured outcome of a command invocation.
type Result struct {
	Stdout string
	Stderr string
	Exit   int
}

// Runner spawns child processes on behalf of every other component. It is
// the only component in the pipeline allowed to call exec.Command.
type Runner struct {
	DryRun bool
	Log    zerolog.Logger
}

// New returns a Runner bound to ctx's dry-run flag.
func New(ctx alma.Context, log zerolog.Logger) *Runner {
	return &Runner{DryRun: ctx.DryRun, Log: log}
}

func (r *Runner) isProbe(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	return probingCommands[argv[0]]
}

// Run executes argv with the given environment and optional stdin,
// returning its captured output. It never returns a non-nil error for a
// non-zero exit; callers that want that use RunChecked.
func (r *Runner) Run(ctx context.Context, argv []string, env []string, stdin string) (Result, error) {
	l := r.Log.With().Strs("argv", argv).Logger()

	if r.DryRun && !r.isProbe(argv) {
		l.Info().Msg("dry-run: skipping command")
		return Result{Exit: 0}, nil
	}

	l.Debug().Msg("running command")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if env != nil {
		cmd.Env = env
	} else {
		cmd.Env = os.Environ()
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, runErr
		}
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Exit: exitCode}
	if exitCode != 0 {
		l.Debug().Int("exit", exitCode).Str("stderr", res.Stderr).Msg("command exited non-zero")
	}
	return res, nil
}

// RunChecked runs argv and returns CommandFailed if it exits non-zero.
func (r *Runner) RunChecked(ctx context.Context, argv []string, env []string, stdin string) (Result, error) {
	res, err := r.Run(ctx, argv, env, stdin)
	if err != nil {
		return res, err
	}
	if res.Exit != 0 {
		tail := res.Stderr
		if len(tail) > stderrTailLimit {
			tail = tail[len(tail)-stderrTailLimit:]
		}
		return res, &alma.CommandFailed{Argv: argv, Exit: res.Exit, StderrTail: tail}
	}
	return res, nil
}

// RunInteractive inherits the controlling terminal, used for passphrase
// prompts and interactive shells. It is never skipped by dry-run since it
// has no mutating effect of its own until the invoked program decides to
// act (callers gate the invocation itself on dry-run where relevant).
func (r *Runner) RunInteractive(ctx context.Context, argv []string, env []string) error {
	r.Log.Debug().Strs("argv", argv).Msg("running interactive command")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if env != nil {
		cmd.Env = env
	} else {
		cmd.Env = os.Environ()
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// KillGracefully sends SIGTERM to cmd's process, then SIGKILL after grace
// if it hasn't exited. Nothing in this module calls it; the resource
// stack's cancellation handler does not use it.
func KillGracefully(cmd *exec.Cmd, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(unix.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		_ = cmd.Process.Signal(unix.SIGKILL)
	}
}
