// Package logging provides the display sink the orchestrator streams raw
// process output into: a per-run log file plus optional realtime echo.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

// FileSink appends stdout/stderr chunks to a log file under the log
// directory, ANSI escape sequences stripped. Append order is preserved per
// stream; no other buffering guarantees are made.
type FileSink struct {
	logDir       string
	echoRealtime bool
	log          log.Logger

	mu   sync.Mutex
	file *os.File
}

// FileSinkConfig holds configuration for creating a FileSink
type FileSinkConfig struct {
	LogDir       string
	EchoRealtime bool // Also write chunks to this process's stdout
	Log          log.Logger
}

// NewFileSink creates the log directory and a sink writing into it
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.LogDir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &FileSink{
		logDir:       cfg.LogDir,
		echoRealtime: cfg.EchoRealtime,
		log:          cfg.Log,
	}, nil
}

// StartRun rotates the sink to a fresh log file named after the run id
func (s *FileSink) StartRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
	}
	path := filepath.Join(s.logDir, runID+".log")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run log file: %w", err)
	}
	s.file = f
	s.log.Debug("Run log opened", "path", path)
	return nil
}

// Append writes one raw output chunk
func (s *FileSink) Append(chunk string) {
	clean := stripansi.Strip(chunk)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if _, err := s.file.WriteString(clean); err != nil {
			s.log.Error("Failed to write run log", "error", err)
		}
	}
	if s.echoRealtime {
		fmt.Print(clean)
	}
}

// Close closes the current run log file, if any
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// BufferSink collects chunks in memory; used in tests and as a fallback
// when no log directory is configured.
type BufferSink struct {
	mu     sync.Mutex
	chunks []string
}

// NewBufferSink creates an in-memory sink
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// Append records one chunk
func (s *BufferSink) Append(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

// Chunks returns a copy of everything appended so far
func (s *BufferSink) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(s.chunks))
	copy(cp, s.chunks)
	return cp
}
