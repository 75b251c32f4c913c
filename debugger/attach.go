// Package debugger watches test host output during a debug run and attaches
// a debugger to the host process. With VSTEST_HOST_DEBUG=1 the host prints
// its process id and blocks until a debugger attaches.
package debugger

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// The banner looks like "Process Id: 12345, Name: testhost"
var processIDPattern = regexp.MustCompile(`Process Id: (\d+)`)

// AttachFunc attaches a debugger to the given host process id
type AttachFunc func(ctx context.Context, pid int) error

// HostWatcher scans stdout chunks for the test host banner and invokes the
// attach callback once per run. Chunks after the first match pass through
// untouched.
type HostWatcher struct {
	attach AttachFunc
	log    log.Logger

	mu       sync.Mutex
	attached bool
}

// NewHostWatcher creates a watcher that calls attach when the host banner
// appears
func NewHostWatcher(attach AttachFunc, logger log.Logger) *HostWatcher {
	if logger == nil {
		logger = log.New()
	}
	return &HostWatcher{attach: attach, log: logger}
}

// Reset clears the attached flag so the watcher can serve another run
func (w *HostWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attached = false
}

// OnStdout inspects one stdout chunk. The caller awaits the return before
// forwarding the chunk to the display sink, keeping attach side effects
// ordered with displayed output.
func (w *HostWatcher) OnStdout(ctx context.Context, chunk string) error {
	w.mu.Lock()
	done := w.attached
	w.mu.Unlock()
	if done {
		return nil
	}

	match := processIDPattern.FindStringSubmatch(chunk)
	if match == nil {
		return nil
	}

	pid, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}

	w.mu.Lock()
	w.attached = true
	w.mu.Unlock()

	w.log.Info("Attaching debugger to test host", "pid", pid)
	return w.attach(ctx, pid)
}
