package lock

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsmonitor/internal/errors"
)

func TestForTarget_AcquireAndRelease(t *testing.T) {
	// Given: a state directory
	state := t.TempDir()

	// When: a target is locked
	l, err := ForTarget(state, "/srv/assets")
	require.NoError(t, err)

	// Then: the lock and owner files exist
	assert.True(t, l.Locked())
	assert.Equal(t, "/srv/assets", l.Target())
	_, err = os.Stat(l.Path())
	assert.NoError(t, err)
	pid, err := l.holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Release())
	assert.False(t, l.Locked())
}

func TestForTarget_SecondHolder_AlreadyWatching(t *testing.T) {
	// Given: a held lock
	state := t.TempDir()
	first, err := ForTarget(state, "/srv/assets")
	require.NoError(t, err)
	defer first.Release()

	// When: the same target is locked again
	second, err := ForTarget(state, "/srv/assets")

	// Then: it fails with the holder's PID attached
	require.Error(t, err)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, errors.ErrAlreadyWatching)
	assert.True(t, errors.IsRetryable(err))
	me, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(os.Getpid()), me.Details["pid"])
}

func TestForTarget_DifferentTargets_Independent(t *testing.T) {
	state := t.TempDir()

	a, err := ForTarget(state, "/srv/a")
	require.NoError(t, err)
	defer a.Release()

	b, err := ForTarget(state, "/srv/b")
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestForTarget_ReleasedLock_CanBeReacquired(t *testing.T) {
	state := t.TempDir()

	l, err := ForTarget(state, "/srv/assets")
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	again, err := ForTarget(state, "/srv/assets")
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}
