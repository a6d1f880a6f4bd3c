package flock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_CreatesLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	_, err = os.Stat(path)
	assert.NoError(t, err, "acquire must create the lock file when absent")
}

func TestAcquire_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l, err := Acquire(path)
	require.NoError(t, err)

	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "LOCK", "error must name the path")

	require.NoError(t, l.Release())

	// Released locks can be re-acquired.
	l2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestAcquire_RelativePath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	l, err := Acquire("LOCK")
	require.NoError(t, err)
	defer l.Release()

	// The held table is keyed by absolute path, so the same lock requested
	// through a different spelling still conflicts.
	_, err = Acquire(filepath.Join(dir, "LOCK"))
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRelease_LeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LOCK")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())

	_, err = os.Stat(path)
	assert.NoError(t, err, "release must leave the lock file in place")
}
