package alma

import "fmt"

// BadTarget is returned by the block-device probe when the caller's chosen
// target cannot be used: a partition given in whole-disk mode, a
// non-removable device without the override flag, or a device below the
// size floor.
type BadTarget struct {
	Path   string
	Reason string
}

func (e *BadTarget) Error() string {
	return fmt.Sprintf("bad target %q: %s", e.Path, e.Reason)
}

// MissingHostTool is returned at startup when a required external
// executable is not on PATH.
type MissingHostTool struct {
	Name string
}

func (e *MissingHostTool) Error() string {
	return fmt.Sprintf("missing host tool: %s", e.Name)
}

// MissingEnvironment is returned by the preset pipeline when a preset
// declares an environment variable that is absent from the process
// environment. This check runs before any destructive action.
type MissingEnvironment struct {
	Var string
}

func (e *MissingEnvironment) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Var)
}

// PresetParse wraps a TOML decode failure with the offending file's path.
type PresetParse struct {
	Path string
	Err  error
}

func (e *PresetParse) Error() string {
	return fmt.Sprintf("parsing preset %s: %v", e.Path, e.Err)
}

func (e *PresetParse) Unwrap() error { return e.Err }

// PresetFetch wraps a failure acquiring a preset source (download, git
// clone, archive extraction).
type PresetFetch struct {
	Source string
	Err    error
}

func (e *PresetFetch) Error() string {
	return fmt.Sprintf("fetching preset source %s: %v", e.Source, e.Err)
}

func (e *PresetFetch) Unwrap() error { return e.Err }

// PartitionNotSettled is returned when a partition device node does not
// appear within the settle timeout after partitioning.
type PartitionNotSettled struct {
	Device string
}

func (e *PartitionNotSettled) Error() string {
	return fmt.Sprintf("partition device %s did not settle in time", e.Device)
}

// CommandFailed is returned by the command runner when a checked
// invocation exits non-zero.
type CommandFailed struct {
	Argv       []string
	Exit       int
	StderrTail string
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("command failed (exit %d): %v: %s", e.Exit, e.Argv, e.StderrTail)
}

// MountFailed wraps a failure mounting or unmounting a filesystem.
type MountFailed struct {
	Target string
	Err    error
}

func (e *MountFailed) Error() string {
	return fmt.Sprintf("mount failed for %s: %v", e.Target, e.Err)
}

func (e *MountFailed) Unwrap() error { return e.Err }

// LuksFailed wraps a cryptsetup failure (format or open/close).
type LuksFailed struct {
	Op  string
	Err error
}

func (e *LuksFailed) Error() string {
	return fmt.Sprintf("luks %s failed: %v", e.Op, e.Err)
}

func (e *LuksFailed) Unwrap() error { return e.Err }

// ManifestRead wraps a failure reading/parsing an installed system's
// manifest during `alma install`.
type ManifestRead struct {
	Path string
	Err  error
}

func (e *ManifestRead) Error() string {
	return fmt.Sprintf("reading manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestRead) Unwrap() error { return e.Err }

// Cancelled is returned when SIGINT/SIGTERM aborted the pipeline.
type Cancelled struct {
	Step string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled during %s", e.Step)
}

// Internal wraps any invariant violation that should never happen in
// practice; if it surfaces, it is a bug rather than an environmental
// failure.
type Internal struct {
	Msg string
	Err error
}

func (e *Internal) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("internal error: %s", e.Msg)
}

func (e *Internal) Unwrap() error { return e.Err }

// StepError wraps any of the above with the breadcrumb naming the pipeline
// step in which it occurred, for the "one root-cause line plus a short step
// breadcrumb" user-facing contract.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("while %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Step wraps err with a breadcrumb, or returns nil if err is nil.
func Step(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}
