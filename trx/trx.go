// Package trx reads the TRX results file produced by `dotnet vstest
// --logger:trx`. Only the fields the orchestrator consumes are decoded:
// full test name, outcome, failure message and stack trace.
package trx

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
)

// Outcome values reported by vstest. Any value outside this set is ignored
// by reconciliation, which keeps the reader forward-compatible with
// outcomes introduced by newer tool versions.
const (
	OutcomeError       = "Error"
	OutcomeFailed      = "Failed"
	OutcomePassed      = "Passed"
	OutcomeNotExecuted = "NotExecuted"
)

// Result is one per-test record from a results file. Records are ephemeral:
// produced by a read, consumed once during reconciliation, then discarded.
type Result struct {
	FullName   string
	Outcome    string
	Message    string
	StackTrace string
}

// Reader reads an ordered sequence of results from a results file
type Reader interface {
	ReadResults(ctx context.Context, path string) ([]Result, error)
}

// trxFile mirrors the subset of the TRX schema we consume
type trxFile struct {
	XMLName xml.Name `xml:"TestRun"`
	Results struct {
		UnitTestResults []unitTestResult `xml:"UnitTestResult"`
	} `xml:"Results"`
}

type unitTestResult struct {
	TestName string `xml:"testName,attr"`
	Outcome  string `xml:"outcome,attr"`
	Output   struct {
		ErrorInfo struct {
			Message    string `xml:"Message"`
			StackTrace string `xml:"StackTrace"`
		} `xml:"ErrorInfo"`
	} `xml:"Output"`
}

// FileReader is the production Reader backed by the filesystem
type FileReader struct{}

// NewFileReader creates a new TRX file reader
func NewFileReader() *FileReader {
	return &FileReader{}
}

// ReadResults parses the TRX file at path and returns its result records in
// document order.
func (r *FileReader) ReadResults(ctx context.Context, path string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TRX content into ordered result records
func Parse(data []byte) ([]Result, error) {
	var file trxFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing results file: %w", err)
	}

	results := make([]Result, 0, len(file.Results.UnitTestResults))
	for _, utr := range file.Results.UnitTestResults {
		results = append(results, Result{
			FullName:   utr.TestName,
			Outcome:    utr.Outcome,
			Message:    utr.Output.ErrorInfo.Message,
			StackTrace: utr.Output.ErrorInfo.StackTrace,
		})
	}
	return results, nil
}
