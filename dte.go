// Package dte is the .NET test explorer service: it loads the discovered
// test tree, orchestrates `dotnet vstest` runs over it, and reports
// per-test outcomes.
package dte

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dotnet-test-explorer/dte/exitcodes"
	"github.com/dotnet-test-explorer/dte/logging"
	"github.com/dotnet-test-explorer/dte/registry"
	"github.com/dotnet-test-explorer/dte/reporting"
	"github.com/dotnet-test-explorer/dte/runner"
	"github.com/dotnet-test-explorer/dte/types"
)

// dte wires the registry, the orchestrator and the reporting collector into
// a runnable service.
type dte struct {
	ctx          context.Context
	config       *Config
	version      string
	registry     *registry.Registry
	orchestrator *runner.Orchestrator
	collector    *reporting.Collector
	sink         *logging.FileSink

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*dte, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating dte with config",
		"workspace", config.Workspace,
		"manifest", config.Manifest,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"debug", config.Debug)

	reg, err := registry.NewRegistry(registry.Config{
		Log:          config.Log,
		ManifestFile: config.Manifest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	sink, err := logging.NewFileSink(logging.FileSinkConfig{
		LogDir:       config.LogDir,
		EchoRealtime: config.OutputRealtimeLogs,
		Log:          config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create output sink: %w", err)
	}

	collector := reporting.NewCollector(nil)

	orch, err := runner.NewOrchestrator(runner.Config{
		Registry:   reg,
		Launcher:   runner.NewExecLauncher(),
		Emitter:    collector,
		Sink:       sink,
		RunEnv:     config.RunEnv,
		WorkDir:    config.Workspace,
		ToolBinary: config.DotnetBinary,
		Log:        config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	config.Log.Info("dte.New: created registry and orchestrator")

	return &dte{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		orchestrator:     orch,
		collector:        collector,
		sink:             sink,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the requested tests, once or periodically at the configured
// interval.
func (d *dte) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			d.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	d.ctx = ctx
	d.done = make(chan struct{})
	d.running.Store(true)

	if d.config.RunOnce {
		d.config.Log.Info("Starting dte in run-once mode")
	} else {
		d.config.Log.Info("Starting dte in continuous mode", "interval", d.config.RunInterval)
	}

	summary, err := d.runTests()
	if err != nil {
		d.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if d.config.RunOnce {
		d.config.Log.Info("Tests completed, exiting (run-once mode)")

		if summary.Failed > 0 || summary.Errored > 0 {
			d.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(fmt.Sprintf("%d of %d tests failed", summary.Failed+summary.Errored, summary.Total))
		}

		go func() {
			d.shutdownCallback(nil)
		}()
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.config.Log.Debug("Starting periodic test runner goroutine", "interval", d.config.RunInterval)

		for {
			select {
			case <-time.After(d.config.RunInterval):
				if !d.running.Load() {
					d.config.Log.Debug("Service stopped, exiting periodic test runner")
					return
				}

				d.config.Log.Info("Running periodic tests")
				if _, err := d.runTests(); err != nil {
					d.config.Log.Error("Error running periodic tests", "error", err)
				}

			case <-d.done:
				d.config.Log.Debug("Done signal received, stopping periodic test runner")
				return

			case <-ctx.Done():
				d.config.Log.Debug("Context canceled, stopping periodic test runner")
				d.running.Store(false)
				return
			}
		}
	}()
	d.config.Log.Debug("dte started successfully")
	return nil
}

// runTests executes one full run of the configured nodes and returns the
// result summary.
func (d *dte) runTests() (reporting.Summary, error) {
	ids := d.config.Nodes
	if len(ids) == 0 {
		ids = []string{types.RootID}
	}

	if err := d.sink.StartRun(uuid.New().String()); err != nil {
		return reporting.Summary{}, err
	}
	d.collector.Reset()

	if d.config.Debug {
		d.orchestrator.Debug(ids)
	} else {
		d.orchestrator.Run(ids)
	}
	d.orchestrator.Wait()

	fmt.Println(d.collector.RenderTable())

	summary := d.collector.Summary()
	d.config.Log.Info("Test run completed",
		"total", summary.Total,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"errored", summary.Errored,
		"skipped", summary.Skipped)
	return summary, nil
}

// Stop stops the dte service.
func (d *dte) Stop(ctx context.Context) error {
	d.config.Log.Info("Stopping dte")

	if !d.running.Load() {
		return nil
	}
	d.running.Store(false)

	d.orchestrator.Cancel()
	d.orchestrator.Wait()
	close(d.done)
	d.wg.Wait()

	if err := d.sink.Close(); err != nil {
		d.config.Log.Error("Failed to close output sink", "error", err)
	}

	d.config.Log.Info("dte stopped")
	return nil
}

// Stopped returns true if the service is not running
func (d *dte) Stopped() bool {
	return !d.running.Load()
}
