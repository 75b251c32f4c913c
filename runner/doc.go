// Package runner contains the test execution orchestrator: it maps requested
// node identifiers to `dotnet vstest` invocations, streams process output to
// the debug-attach hook and the display sink, parses the TRX results file,
// and reconciles outcomes against the node tree, firing lifecycle events
// running-first top-down and completed-last bottom-up.
//
// One orchestrator exists per workspace. At most one run is admitted at a
// time: a run claims the admission token before launching anything and
// holds it across every node of the request, so a second Run or Debug
// request while one is in flight is dropped.
package runner
