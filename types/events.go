package types

// SuiteState represents the possible states of a suite node
type SuiteState string

const (
	SuiteStateRunning   SuiteState = "running"
	SuiteStateCompleted SuiteState = "completed"
)

// TestState represents the possible states of a leaf test node. A test
// transitions from running to exactly one terminal state.
type TestState string

const (
	TestStateRunning TestState = "running"
	TestStatePassed  TestState = "passed"
	TestStateFailed  TestState = "failed"
	TestStateErrored TestState = "errored"
	TestStateSkipped TestState = "skipped"
)

// IsTerminal returns true for states that end a test's lifecycle
func (s TestState) IsTerminal() bool {
	return s != TestStateRunning
}

// Event is a state-transition notification for a single node. The concrete
// variants are SuiteEvent and TestEvent; consumers dispatch on the type.
type Event interface {
	// NodeID returns the identifier of the node the event belongs to
	NodeID() string
}

// SuiteEvent reports a suite transitioning to running or completed
type SuiteEvent struct {
	SuiteID string
	State   SuiteState
}

func (e SuiteEvent) NodeID() string { return e.SuiteID }

// TestEvent reports a test transitioning to running or a terminal state.
// Message carries the failure message or stack trace for terminal states,
// empty otherwise.
type TestEvent struct {
	TestID  string
	State   TestState
	Message string
}

func (e TestEvent) NodeID() string { return e.TestID }

// Emitter is the output boundary towards the editor's event bus. Events are
// delivered in the order they are fired; implementations must not reorder.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }
