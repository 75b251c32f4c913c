package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "DTE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Workspace = &cli.StringFlag{
		Name:     "workspace",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("WORKSPACE"),
		Usage:    "Path to the workspace root; test processes run here",
	}
	Manifest = &cli.StringFlag{
		Name:     "manifest",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("MANIFEST"),
		Usage:    "Path to the test manifest file (eg. 'tests.yaml')",
	}
	DotnetBinary = &cli.StringFlag{
		Name:    "dotnet-binary",
		Value:   "dotnet",
		EnvVars: prefixEnvVars("DOTNET_BINARY"),
		Usage:   "Path to the dotnet binary used to run tests",
	}
	Nodes = &cli.StringSliceFlag{
		Name:    "nodes",
		EnvVars: prefixEnvVars("NODES"),
		Usage:   "Node identifiers to run; defaults to 'root' (everything)",
	}
	Debug = &cli.BoolFlag{
		Name:    "debug",
		Value:   false,
		EnvVars: prefixEnvVars("DEBUG"),
		Usage:   "Run with the test host waiting for a debugger to attach",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	RunEnvFile = &cli.StringFlag{
		Name:    "run-env",
		Value:   "",
		EnvVars: prefixEnvVars("RUN_ENV"),
		Usage:   "Path to a YAML file of environment variables applied to test processes",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store raw test process output",
	}
	OutputRealtimeLogs = &cli.BoolFlag{
		Name:    "output-realtime-logs",
		Value:   false,
		EnvVars: prefixEnvVars("OUTPUT_REALTIME_LOGS"),
		Usage:   "Echo test process output to stdout in realtime",
	}
)

var requiredFlags = []cli.Flag{
	Workspace,
	Manifest,
}

var optionalFlags = []cli.Flag{
	DotnetBinary,
	Nodes,
	Debug,
	RunInterval,
	RunEnvFile,
	LogDir,
	OutputRealtimeLogs,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
