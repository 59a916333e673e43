package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a
// running watch and the reads of the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolateEnv keeps user config and FSMONITOR_* variables out of tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"FSMONITOR_QUIET_PERIOD", "FSMONITOR_FILTER", "FSMONITOR_POLL_INTERVAL",
		"FSMONITOR_LOG_LEVEL", "FSMONITOR_RECURSIVE",
	} {
		t.Setenv(k, "")
	}
}

// runningCmd is a root command executing in the background.
type runningCmd struct {
	out    *syncBuffer
	cancel context.CancelFunc
	done   chan error
}

func startCmd(t *testing.T, args ...string) *runningCmd {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &runningCmd{out: &syncBuffer{}, cancel: cancel, done: make(chan error, 1)}

	root := NewRootCmd()
	root.SetOut(r.out)
	root.SetErr(&syncBuffer{})
	root.SetArgs(args)
	go func() { r.done <- root.ExecuteContext(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
		}
	})
	return r
}

func (r *runningCmd) waitOutput(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(r.out.String()), []byte(substr))
	}, 5*time.Second, 10*time.Millisecond, "output so far:\n%s", r.out.String())
}

func (r *runningCmd) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	return r.wait(t)
}

func (r *runningCmd) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("command did not exit")
		return nil
	}
}
