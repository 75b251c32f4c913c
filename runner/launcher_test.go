package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan string) []string {
	var lines []string
	for line := range ch {
		lines = append(lines, line)
	}
	return lines
}

func TestExecLauncherStreamsOutput(t *testing.T) {
	launcher := NewExecLauncher()

	proc, err := launcher.Launch(context.Background(), "sh",
		[]string{"-c", `printf 'one\ntwo\n'; echo oops >&2`},
		LaunchOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	stdoutCh := make(chan []string, 1)
	stderrCh := make(chan []string, 1)
	go func() { stdoutCh <- collect(proc.Stdout()) }()
	go func() { stderrCh <- collect(proc.Stderr()) }()

	code := proc.Wait()
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"one\n", "two\n"}, <-stdoutCh)
	assert.Equal(t, []string{"oops\n"}, <-stderrCh)
}

func TestExecLauncherReportsExitCode(t *testing.T) {
	launcher := NewExecLauncher()

	proc, err := launcher.Launch(context.Background(), "sh",
		[]string{"-c", "exit 3"},
		LaunchOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	go collect(proc.Stdout())
	go collect(proc.Stderr())

	assert.Equal(t, 3, proc.Wait())
}

func TestExecLauncherAppliesEnvOverlay(t *testing.T) {
	launcher := NewExecLauncher()

	proc, err := launcher.Launch(context.Background(), "sh",
		[]string{"-c", `printf '%s\n' "$VSTEST_HOST_DEBUG"`},
		LaunchOptions{Dir: t.TempDir(), Env: map[string]string{"VSTEST_HOST_DEBUG": "1"}})
	require.NoError(t, err)

	stdoutCh := make(chan []string, 1)
	go func() { stdoutCh <- collect(proc.Stdout()) }()
	go collect(proc.Stderr())

	require.Equal(t, 0, proc.Wait())
	assert.Equal(t, []string{"1\n"}, <-stdoutCh)
}

func TestExecLauncherRunsInWorkDir(t *testing.T) {
	launcher := NewExecLauncher()
	dir := t.TempDir()

	proc, err := launcher.Launch(context.Background(), "pwd", nil, LaunchOptions{Dir: dir})
	require.NoError(t, err)

	stdoutCh := make(chan []string, 1)
	go func() { stdoutCh <- collect(proc.Stdout()) }()
	go collect(proc.Stderr())

	require.Equal(t, 0, proc.Wait())
	out := <-stdoutCh
	require.Len(t, out, 1)
	assert.Contains(t, out[0], dir)
}

func TestExecLauncherKill(t *testing.T) {
	launcher := NewExecLauncher()

	proc, err := launcher.Launch(context.Background(), "sleep", []string{"60"}, LaunchOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	go collect(proc.Stdout())
	go collect(proc.Stderr())

	require.NoError(t, proc.Kill())
	assert.NotEqual(t, 0, proc.Wait())
}

func TestExecLauncherRejectsMissingBinary(t *testing.T) {
	launcher := NewExecLauncher()

	_, err := launcher.Launch(context.Background(), "definitely-not-a-binary-xyz", nil, LaunchOptions{Dir: t.TempDir()})
	require.Error(t, err)
}
