package debugger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnStdoutAttachesOnHostBanner(t *testing.T) {
	var pids []int
	w := NewHostWatcher(func(ctx context.Context, pid int) error {
		pids = append(pids, pid)
		return nil
	}, nil)

	require.NoError(t, w.OnStdout(context.Background(), "Host debugging is enabled.\n"))
	assert.Empty(t, pids)

	require.NoError(t, w.OnStdout(context.Background(), "Process Id: 4242, Name: testhost\n"))
	assert.Equal(t, []int{4242}, pids)
}

func TestOnStdoutAttachesOncePerRun(t *testing.T) {
	var calls int
	w := NewHostWatcher(func(ctx context.Context, pid int) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, w.OnStdout(context.Background(), "Process Id: 1, Name: testhost\n"))
	require.NoError(t, w.OnStdout(context.Background(), "Process Id: 2, Name: testhost\n"))
	assert.Equal(t, 1, calls)

	w.Reset()
	require.NoError(t, w.OnStdout(context.Background(), "Process Id: 3, Name: testhost\n"))
	assert.Equal(t, 2, calls)
}

func TestOnStdoutPropagatesAttachError(t *testing.T) {
	w := NewHostWatcher(func(ctx context.Context, pid int) error {
		return fmt.Errorf("no debugger listening")
	}, nil)

	err := w.OnStdout(context.Background(), "Process Id: 99, Name: testhost\n")
	require.ErrorContains(t, err, "no debugger listening")
}

func TestOnStdoutIgnoresNonBannerChunks(t *testing.T) {
	w := NewHostWatcher(func(ctx context.Context, pid int) error {
		t.Fatal("attach must not be called")
		return nil
	}, nil)

	for _, chunk := range []string{
		"Starting test execution, please wait...\n",
		"Passed MyApp.Tests.Calculator.Adds\n",
		"Process Id: not-a-number\n",
		"",
	} {
		require.NoError(t, w.OnStdout(context.Background(), chunk))
	}
}
