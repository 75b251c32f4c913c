package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	dte "github.com/dotnet-test-explorer/dte"
	"github.com/dotnet-test-explorer/dte/flags"
	"github.com/dotnet-test-explorer/dte/service"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "dte"
	app.Usage = ".NET Test Explorer Service"
	app.Description = "dte orchestrates dotnet vstest runs over a discovered test tree"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if dte.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if dte.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	// Start telemetry
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start ops servers
	svc := service.New()
	svc.Start(context.Background())
	defer svc.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger := log.NewLogger(log.NewTerminalHandler(os.Stderr, true))
	log.SetDefault(logger)

	cfg, err := dte.NewConfig(ctx, logger)
	if err != nil {
		return dte.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	runCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	svc, err := dte.New(runCtx, cfg, Version, cancel)
	if err != nil {
		return dte.NewRuntimeError(fmt.Errorf("failed to create dte: %w", err))
	}

	if err := svc.Start(runCtx); err != nil {
		return err
	}

	if !cfg.RunOnce {
		<-runCtx.Done()
	}
	return svc.Stop(context.Background())
}
