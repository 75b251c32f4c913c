package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// LaunchOptions carries the working directory and environment overlay for a
// process launch. Overlay variables are appended to the parent environment.
type LaunchOptions struct {
	Dir string
	Env map[string]string
}

// Process is a handle to a running external process. Stdout and Stderr
// deliver line-buffered chunks; the channels are unbuffered so a slow
// consumer back-pressures output draining, and both close at EOF. Wait
// blocks until the process exits and returns its exit code. Kill forcibly
// terminates the process; it does not wait for exit.
type Process interface {
	Stdout() <-chan string
	Stderr() <-chan string
	Wait() int
	Kill() error
}

// Launcher spawns external processes. The production implementation wraps
// os/exec; tests substitute fakes.
type Launcher interface {
	Launch(ctx context.Context, name string, args []string, opts LaunchOptions) (Process, error)
}

// ExecLauncher is the os/exec-backed Launcher
type ExecLauncher struct{}

// NewExecLauncher creates a new exec-backed launcher
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Launch starts the command and begins draining its pipes
func (l *ExecLauncher) Launch(ctx context.Context, name string, args []string, opts LaunchOptions) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir

	env := os.Environ()
	for k, v := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdout: make(chan string),
		stderr: make(chan string),
	}
	p.pipes.Add(2)
	go p.drain(stdoutPipe, p.stdout)
	go p.drain(stderrPipe, p.stderr)
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout chan string
	stderr chan string

	pipes    sync.WaitGroup
	waitOnce sync.Once
	exitCode int
}

func (p *execProcess) Stdout() <-chan string { return p.stdout }
func (p *execProcess) Stderr() <-chan string { return p.stderr }

func (p *execProcess) drain(r interface{ Read([]byte) (int, error) }, out chan<- string) {
	defer p.pipes.Done()
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text() + "\n"
	}
}

func (p *execProcess) Wait() int {
	p.waitOnce.Do(func() {
		// Pipes must be fully drained before cmd.Wait closes them
		p.pipes.Wait()
		err := p.cmd.Wait()
		if p.cmd.ProcessState != nil {
			p.exitCode = p.cmd.ProcessState.ExitCode()
		} else if err != nil {
			p.exitCode = -1
		}
	})
	return p.exitCode
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
