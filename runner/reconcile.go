package runner

import (
	"context"
	"fmt"

	"github.com/dotnet-test-explorer/dte/metrics"
	"github.com/dotnet-test-explorer/dte/trx"
	"github.com/dotnet-test-explorer/dte/types"
)

// reconcile reads the results file produced by the process and fires a
// terminal event for every record that matches a leaf test under node.
// Events fire in file order, not tree order. Records naming no known leaf
// and records with unrecognized outcomes are ignored.
func (o *Orchestrator) reconcile(ctx context.Context, node *types.TestNode, path string, gen uint64, runID string) error {
	records, err := o.results.ReadResults(ctx, path)
	if err != nil {
		return fmt.Errorf("reading run results: %w", err)
	}

	leaves := make(map[string]*types.TestNode)
	for _, leaf := range node.Leaves() {
		leaves[leaf.ID] = leaf
	}

	o.log.Debug("Reconciling results", "id", node.ID, "records", len(records), "leaves", len(leaves))

	for _, rec := range records {
		leaf, ok := leaves[rec.FullName]
		if !ok {
			continue
		}
		ev, ok := mapOutcome(leaf.ID, rec)
		if !ok {
			o.log.Debug("Unrecognized outcome, skipping", "test", rec.FullName, "outcome", rec.Outcome)
			continue
		}
		if o.generation.Load() != gen {
			return nil
		}
		o.fire(ev)
		metrics.RecordTestResult(runID, ev.State)
	}
	return nil
}

// mapOutcome translates a TRX outcome into a terminal test event. The
// second return value is false for outcomes this orchestrator does not
// recognize; those produce no event.
func mapOutcome(id string, rec trx.Result) (types.TestEvent, bool) {
	switch rec.Outcome {
	case trx.OutcomeError:
		return types.TestEvent{TestID: id, State: types.TestStateErrored, Message: rec.StackTrace}, true
	case trx.OutcomeFailed:
		return types.TestEvent{TestID: id, State: types.TestStateFailed, Message: rec.Message}, true
	case trx.OutcomePassed:
		return types.TestEvent{TestID: id, State: types.TestStatePassed, Message: rec.Message}, true
	case trx.OutcomeNotExecuted:
		return types.TestEvent{TestID: id, State: types.TestStateSkipped}, true
	}
	return types.TestEvent{}, false
}
