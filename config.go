package dte

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dotnet-test-explorer/dte/flags"
)

// Config holds the application configuration
type Config struct {
	Workspace          string        // Workspace root; test processes run here
	Manifest           string        // Path to the test manifest file
	DotnetBinary       string        // Path to the dotnet binary
	Nodes              []string      // Node identifiers to run; empty means root
	Debug              bool          // Run with the test host waiting for a debugger
	RunInterval        time.Duration // Interval between test runs
	RunOnce            bool          // Indicates if the service should exit after one test run
	RunEnvFile         string        // Optional YAML file of env vars for test processes
	LogDir             string        // Directory to store raw test process output
	OutputRealtimeLogs bool          // If enabled, test process output is echoed in realtime
	Log                log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	workspace := ctx.String(flags.Workspace.Name)
	if workspace == "" {
		return nil, errors.New("workspace is required")
	}
	manifest := ctx.String(flags.Manifest.Name)
	if manifest == "" {
		return nil, errors.New("test manifest is required")
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for workspace '%s': %w", workspace, err)
	}
	absManifest, err := filepath.Abs(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for manifest '%s': %w", manifest, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	runEnvFile := ctx.String(flags.RunEnvFile.Name)
	if runEnvFile != "" {
		runEnvFile, err = filepath.Abs(runEnvFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for run env file '%s': %w", runEnvFile, err)
		}
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		Workspace:          absWorkspace,
		Manifest:           absManifest,
		DotnetBinary:       ctx.String(flags.DotnetBinary.Name),
		Nodes:              ctx.StringSlice(flags.Nodes.Name),
		Debug:              ctx.Bool(flags.Debug.Name),
		RunInterval:        runInterval,
		RunOnce:            runInterval == 0,
		RunEnvFile:         runEnvFile,
		LogDir:             logDir,
		OutputRealtimeLogs: ctx.Bool(flags.OutputRealtimeLogs.Name),
		Log:                log,
	}, nil
}

// RunEnv returns the environment overlay for test processes. The file is
// re-read on every call so edits between runs take effect without a restart.
func (c *Config) RunEnv() map[string]string {
	if c.RunEnvFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.RunEnvFile)
	if err != nil {
		c.Log.Error("Failed to read run env file", "path", c.RunEnvFile, "error", err)
		return nil
	}

	var env map[string]string
	if err := yaml.Unmarshal(data, &env); err != nil {
		c.Log.Error("Failed to parse run env file", "path", c.RunEnvFile, "error", err)
		return nil
	}
	return env
}
