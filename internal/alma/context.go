// Package alma carries the cross-cutting pieces every component of the
// provisioning pipeline needs: the read-only run context and the error
// taxonomy described in the design's error-handling section.
package alma

// Context is the single read-only object threaded through every component
// constructor. There is no other global configuration state besides the
// process-wide cancellation flag installed by the resource stack's signal
// handler.
type Context struct {
	// PacmanConf, if set, is copied into the target as /etc/pacman.conf and
	// passed to pacstrap via -C.
	PacmanConf string

	// DryRun causes every mutating command to be logged and skipped.
	// Probing commands (lsblk, blkid, findmnt) always execute.
	DryRun bool

	// Verbose raises log level to debug.
	Verbose bool

	// NoConfirm suppresses interactive confirmation prompts. Rejected
	// together with encryption at the argument-parsing layer.
	NoConfirm bool
}

// IsInteractive reports whether the pipeline may prompt the controlling
// terminal for input (passphrases, confirmations).
func (c Context) IsInteractive() bool {
	return !c.NoConfirm
}
