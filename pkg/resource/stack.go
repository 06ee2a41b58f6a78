// Package resource implements the resource stack (C3): a LIFO register of
// cleanup actions guaranteeing release on every exit path, including
// signal-driven cancellation. It generalizes the teacher's Chroot.Prepare/
// Close pattern (internal/utils/chroot.go), which tracks activeMounts and
// unwinds them in reverse order, into a stack that fronts every kind of
// OS-level resource the pipeline acquires — loop devices, LUKS mappers,
// mounts, temporary directories, and chroot binds alike.
package resource

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Cleanup is a pushed release action.
type Cleanup func() error

type entry struct {
	label   string
	cleanup Cleanup
}

// Stack is the LIFO register. It is not safe for concurrent Push calls
// racing Unwind, matching the pipeline's single-threaded orchestration
// model (§5): only the signal handler goroutine and the main goroutine
// ever touch it, coordinated by mu.
type Stack struct {
	mu       sync.Mutex
	entries  []entry
	log      zerolog.Logger
	unwound  atomic.Bool
	sigCh    chan os.Signal
	stopSig  chan struct{}
	cancelFn atomic.Pointer[func()]
}

// New returns an empty resource stack and installs its SIGINT/SIGTERM
// handler. Callers must call Close when the pipeline finishes (success or
// failure) to stop listening for signals.
func New(log zerolog.Logger) *Stack {
	s := &Stack{
		log:     log,
		sigCh:   make(chan os.Signal, 1),
		stopSig: make(chan struct{}),
	}
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go s.handleSignals()
	return s
}

func (s *Stack) handleSignals() {
	select {
	case sig := <-s.sigCh:
		s.log.Warn().Str("signal", sig.String()).Msg("received cancellation signal, unwinding")
		if fn := s.cancelFn.Load(); fn != nil {
			(*fn)()
		}
		_ = s.Unwind()
	case <-s.stopSig:
	}
}

// OnCancel registers fn to run once, from the signal-handling goroutine,
// before Unwind runs. No caller in this module registers a hook.
func (s *Stack) OnCancel(fn func()) {
	s.cancelFn.Store(&fn)
}

// Close stops listening for signals. Call after Commit or Unwind.
func (s *Stack) Close() {
	signal.Stop(s.sigCh)
	select {
	case <-s.stopSig:
	default:
		close(s.stopSig)
	}
}

// Push records cleanup under label. Every operation that acquires an
// OS-level resource must call Push before returning success — this is the
// stack's core invariant, and callers are expected to structure
// acquisition so no failure path between acquiring and pushing is
// possible.
func (s *Stack) Push(label string, cleanup Cleanup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{label: label, cleanup: cleanup})
	s.log.Debug().Str("resource", label).Msg("pushed cleanup")
}

// Commit discards the stack on success, without running any cleanup.
func (s *Stack) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.unwound.Store(true)
}

// Unwind invokes every pushed cleanup in reverse order. Individual
// failures are logged and aggregated but never stop later cleanups from
// running or mask the caller's original error — a later mount's cleanup
// may depend on an earlier unmount still succeeding, so both must be
// attempted regardless of the other's outcome.
func (s *Stack) Unwind() error {
	if !s.unwound.CompareAndSwap(false, true) {
		return nil // already unwound or committed
	}

	s.mu.Lock()
	pending := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs error
	for i := len(pending) - 1; i >= 0; i-- {
		e := pending[i]
		s.log.Debug().Str("resource", e.label).Msg("unwinding")
		if err := e.cleanup(); err != nil {
			s.log.Error().Err(err).Str("resource", e.label).Msg("cleanup failed during unwind")
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// Len reports how many cleanups are currently pending, mainly for tests.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
