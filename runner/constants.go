package runner

// vstest invocation pieces
const (
	// DefaultToolBinary is the default .NET CLI binary
	DefaultToolBinary = "dotnet"

	// VSTestCommand is the dotnet subcommand that runs test assemblies
	VSTestCommand = "vstest"

	// TestsFilterFlag scopes a run to a single suite or test by fully
	// qualified name prefix
	TestsFilterFlag = "--Tests:"

	// ParallelFlag enables parallel execution inside the test host
	ParallelFlag = "--Parallel"

	// TRXLoggerFlagFormat directs structured results to a generated file
	// under the workspace's TestResults directory
	TRXLoggerFlagFormat = "--logger:trx;LogFileName=%s"

	// HostDebugEnvVar makes the test host print its process id and wait for
	// a debugger when set to "1"
	HostDebugEnvVar = "VSTEST_HOST_DEBUG"

	// DefaultResultsDirName is where vstest writes TRX files, relative to
	// the working directory
	DefaultResultsDirName = "TestResults"
)
