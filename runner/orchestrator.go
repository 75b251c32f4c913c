package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotnet-test-explorer/dte/metrics"
	"github.com/dotnet-test-explorer/dte/trx"
	"github.com/dotnet-test-explorer/dte/types"
)

// RegistryAccessor is the injected node-by-id lookup capability. The
// orchestrator never owns node identity lifecycle.
type RegistryAccessor interface {
	Get(id string) *types.NodeContext
	Root() *types.NodeContext
}

// AttachHook consumes raw stdout chunks during a debug run to perform
// debugger attachment. Each chunk is awaited before it reaches the display
// sink, so attach side effects stay ordered with displayed output.
type AttachHook interface {
	OnStdout(ctx context.Context, chunk string) error
}

// Sink receives raw process output chunks in append order per stream
type Sink interface {
	Append(chunk string)
}

// Config holds configuration for creating a new orchestrator
type Config struct {
	Registry   RegistryAccessor
	Launcher   Launcher
	Results    trx.Reader
	Attach     AttachHook
	Sink       Sink
	Emitter    types.Emitter
	RunEnv     func() map[string]string // Environment overlay, read per run
	WorkDir    string                   // Workspace root; processes run here
	ToolBinary string                   // Path to the dotnet binary
	ResultsDir string                   // Where vstest writes TRX files
	Log        log.Logger
}

// Orchestrator coordinates test execution for one workspace. At most one
// run is admitted at a time: the run claims the mutual-exclusion token
// before launching anything and holds it across every node of the request.
type Orchestrator struct {
	registry   RegistryAccessor
	launcher   Launcher
	results    trx.Reader
	attach     AttachHook
	sink       Sink
	emitter    types.Emitter
	runEnv     func() map[string]string
	workDir    string
	toolBinary string
	resultsDir string
	log        log.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	current Process
	// activeGen is the generation of the admitted run, zero when idle. It
	// is claimed under mu before any process is launched, so a second
	// request can never slip in between admission and launch or between
	// the nodes of a multi-node request.
	activeGen uint64

	// generation is bumped on every run start and every cancel; a stale
	// run's reconciliation stops firing events once a newer generation
	// exists
	generation atomic.Uint64

	wg sync.WaitGroup
}

// NewOrchestrator creates a new execution orchestrator
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if cfg.Emitter == nil {
		return nil, fmt.Errorf("emitter is required")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.ToolBinary == "" {
		cfg.ToolBinary = DefaultToolBinary
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = filepath.Join(cfg.WorkDir, DefaultResultsDirName)
	}
	if cfg.Results == nil {
		cfg.Results = trx.NewFileReader()
	}
	if cfg.Attach == nil {
		cfg.Attach = nopAttachHook{}
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.RunEnv == nil {
		cfg.RunEnv = func() map[string]string { return nil }
	}

	cfg.Log.Debug("NewOrchestrator()", "workDir", cfg.WorkDir,
		"toolBinary", cfg.ToolBinary, "resultsDir", cfg.ResultsDir)

	return &Orchestrator{
		registry:   cfg.Registry,
		launcher:   cfg.Launcher,
		results:    cfg.Results,
		attach:     cfg.Attach,
		sink:       cfg.Sink,
		emitter:    cfg.Emitter,
		runEnv:     cfg.RunEnv,
		workDir:    cfg.WorkDir,
		toolBinary: cfg.ToolBinary,
		resultsDir: cfg.ResultsDir,
		log:        cfg.Log,
		tracer:     otel.Tracer("test orchestrator"),
	}, nil
}

// Run requests execution of the given node identifiers without debugging.
// The request is fire-and-forget: errors are logged, never returned, and a
// request made while another run holds the admission token is dropped.
func (o *Orchestrator) Run(ids []string) {
	o.startRun(ids, false)
}

// Debug is Run with the test host waiting for a debugger to attach
func (o *Orchestrator) Debug(ids []string) {
	o.startRun(ids, true)
}

// Cancel kills the running test process, if any, and immediately releases
// the run's admission token so a new run can start. It does not wait for
// the killed process to exit and fires no terminal events for in-flight
// nodes; the remainder of a cancelled multi-node request is abandoned and
// any pending reconciliation is suppressed. With no admitted run, Cancel is
// a no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	proc := o.current
	o.current = nil
	gen := o.activeGen
	o.activeGen = 0
	o.mu.Unlock()

	if gen == 0 && proc == nil {
		return
	}
	o.generation.Add(1)
	if proc != nil {
		if err := proc.Kill(); err != nil {
			o.log.Error("Failed to kill test process", "error", err)
		}
	}
	o.log.Info("Cancelled running test process")
}

// Wait blocks until all in-flight background runs have finished. Used on
// service shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) startRun(ids []string, debug bool) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runRequested(context.Background(), ids, debug)
	}()
}

// runRequested is the inner run procedure: expand "root", then execute each
// requested node strictly serially. Any error aborts the remainder of the
// request; it is logged and never propagated.
func (o *Orchestrator) runRequested(ctx context.Context, ids []string, debug bool) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Error("Panic during test run", "error", rec)
			metrics.RecordError("run_panic")
		}
	}()

	gen := o.admit()
	if gen == 0 {
		o.log.Debug("Run already in progress, dropping request", "ids", strings.Join(ids, ","))
		return
	}
	defer o.release(gen)

	runID := uuid.New().String()
	o.log.Info("Starting test run", "run_id", runID, "ids", strings.Join(ids, ","), "debug", debug)
	metrics.RecordRunStarted(runID)
	start := time.Now()
	defer func() {
		metrics.RecordRunDuration(runID, time.Since(start))
	}()

	if len(ids) > 0 && ids[0] == types.RootID {
		ids = o.registry.Root().Node.ChildIDs()
	}

	for _, id := range ids {
		nodeCtx := o.registry.Get(id)
		if nodeCtx == nil {
			o.log.Warn("Unknown node id, skipping", "id", id)
			continue
		}
		if err := o.runNode(ctx, nodeCtx.Node, debug, gen, runID); err != nil {
			o.log.Error("Test run aborted", "run_id", runID, "id", id, "error", err)
			metrics.RecordError("run_failed")
			return
		}
		if o.generation.Load() != gen {
			o.log.Debug("Run superseded, stopping", "run_id", runID)
			return
		}
	}
	o.log.Info("Test run finished", "run_id", runID)
}

// runNode executes one suite or test node: build the vstest invocation,
// fire running events top-down, launch, stream output, await exit, then
// reconcile the results file and fire completed events bottom-up.
func (o *Orchestrator) runNode(ctx context.Context, node *types.TestNode, debug bool, gen uint64, runID string) error {
	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("run %s", node.ID))
	defer span.End()

	resultsFile := uuid.New().String() + ".trx"
	args := o.buildVSTestArgs(node, resultsFile)

	// Running state is shown before launch so the UI reflects progress even
	// if the launch itself fails
	o.markRunning(node)

	overlay := map[string]string{}
	for k, v := range o.runEnv() {
		overlay[k] = v
	}
	// Set last: the debug flag owns this variable, the run-env file must
	// not override it
	overlay[HostDebugEnvVar] = "0"
	if debug {
		overlay[HostDebugEnvVar] = "1"
	}

	o.log.Debug("Launching test process",
		"id", node.ID,
		"binary", o.toolBinary,
		"args", strings.Join(args, " "),
		"dir", o.workDir)

	proc, err := o.launcher.Launch(ctx, o.toolBinary, args, LaunchOptions{Dir: o.workDir, Env: overlay})
	if err != nil {
		return fmt.Errorf("launching %s: %w", o.toolBinary, err)
	}

	o.mu.Lock()
	o.current = proc
	o.mu.Unlock()

	// A cancel may have landed while the launch was in flight; the process
	// must not outlive it
	if o.generation.Load() != gen {
		if err := proc.Kill(); err != nil {
			o.log.Error("Failed to kill test process", "error", err)
		}
	}

	var drained sync.WaitGroup
	drained.Add(2)
	go func() {
		defer drained.Done()
		for chunk := range proc.Stdout() {
			if debug {
				if err := o.attach.OnStdout(ctx, chunk); err != nil {
					o.log.Error("Debug attach hook failed", "error", err)
				}
			}
			o.sink.Append(chunk)
		}
	}()
	go func() {
		defer drained.Done()
		for chunk := range proc.Stderr() {
			o.sink.Append(chunk)
		}
	}()

	// The exit code is informational only; pass/fail is derived entirely
	// from the results file
	code := proc.Wait()
	drained.Wait()

	o.mu.Lock()
	if o.current == proc {
		o.current = nil
	}
	o.mu.Unlock()

	o.log.Debug("Test process exited", "id", node.ID, "code", code)

	if o.generation.Load() != gen {
		o.log.Debug("Run superseded, skipping reconciliation", "id", node.ID)
		return nil
	}

	if err := o.reconcile(ctx, node, filepath.Join(o.resultsDir, resultsFile), gen, runID); err != nil {
		return err
	}
	o.markCompleted(node, gen)
	return nil
}

// buildVSTestArgs constructs the vstest invocation for one node. The
// --Tests filter is omitted when the assembly file name already names the
// node, i.e. "run the whole binary".
func (o *Orchestrator) buildVSTestArgs(node *types.TestNode, resultsFile string) []string {
	args := []string{VSTestCommand, node.Source}

	base := strings.TrimSuffix(filepath.Base(node.Source), filepath.Ext(node.Source))
	if base != node.ID {
		args = append(args, TestsFilterFlag+node.ID)
	}

	args = append(args, ParallelFlag, fmt.Sprintf(TRXLoggerFlagFormat, resultsFile))
	return args
}

// admit claims the mutual-exclusion token and allocates the run's
// generation. Returns zero when another run already holds the token.
func (o *Orchestrator) admit() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeGen != 0 {
		return 0
	}
	o.activeGen = o.generation.Add(1)
	return o.activeGen
}

// release frees the token if the run still owns it. A cancelled run no
// longer owns the token; Cancel already released it for the next request.
func (o *Orchestrator) release(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeGen == gen {
		o.activeGen = 0
		o.current = nil
	}
}

func (o *Orchestrator) busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeGen != 0
}

// fire records the event on the node's context and forwards it to the sink
func (o *Orchestrator) fire(ev types.Event) {
	if nodeCtx := o.registry.Get(ev.NodeID()); nodeCtx != nil {
		nodeCtx.Event = ev
	}
	o.emitter.Emit(ev)
}

// markRunning fires running events in depth-first pre-order, so every suite
// reports running strictly before any of its descendants.
func (o *Orchestrator) markRunning(node *types.TestNode) {
	if node.IsSuite() {
		o.fire(types.SuiteEvent{SuiteID: node.ID, State: types.SuiteStateRunning})
		for _, child := range node.Children {
			o.markRunning(child)
		}
		return
	}
	o.fire(types.TestEvent{TestID: node.ID, State: types.TestStateRunning})
}

// markCompleted fires completed suite events in depth-first post-order, so
// every suite reports completed strictly after all descendant terminal
// events. Leaf tests are no-ops here; their terminal event was fired during
// reconciliation.
func (o *Orchestrator) markCompleted(node *types.TestNode, gen uint64) {
	if !node.IsSuite() {
		return
	}
	for _, child := range node.Children {
		o.markCompleted(child, gen)
	}
	if o.generation.Load() != gen {
		return
	}
	o.fire(types.SuiteEvent{SuiteID: node.ID, State: types.SuiteStateCompleted})
}

type nopAttachHook struct{}

func (nopAttachHook) OnStdout(context.Context, string) error { return nil }

type nopSink struct{}

func (nopSink) Append(string) {}
