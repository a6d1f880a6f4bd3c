package mmapfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFile(t *testing.T, opts ...Option) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path, opts...)
	require.NoError(t, err)
	return f
}

func TestFile_DurabilityRoundTrip(t *testing.T) {
	// Block size 256 KiB: "world" at 300000 crosses into block 1.
	f := newTestFile(t, WithBlockSize(256*1024))
	require.Equal(t, int64(256*1024), f.BlockSize())

	_, err := f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("world"), 300000)
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	require.Equal(t, int64(300005), int64(len(got)), "close must truncate to the logical end")
	assert.Equal(t, "hello", string(got[0:5]))
	assert.Equal(t, "world", string(got[300000:300005]))
}

func TestFile_Append(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	require.NoError(t, f.Append([]byte("one")))
	require.NoError(t, f.Append([]byte("two")))
	require.NoError(t, f.Append([]byte("three")))
	assert.Equal(t, int64(11), f.EndOffset())

	require.NoError(t, f.Flush())
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "onetwothree", string(got))
}

func TestFile_WriteSpanningBlocks(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	// A write longer than two blocks must be split block-by-block.
	payload := bytes.Repeat([]byte("abcdefgh"), 2048) // 16 KiB
	n, err := f.WriteAt(payload, 1000)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, payload, got[1000:1000+len(payload)])
}

func TestFile_OverwriteLastWriterWins(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	_, err := f.WriteAt([]byte("aaaaaaaa"), 100)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("bbbb"), 102)
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "aabbbbaa", string(got[100:108]))
}

func TestFile_ConcurrentDisjointWrites(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	const (
		goroutines = 8
		chunk      = 512
		perG       = 64
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte('A' + g)}, chunk)
			for i := 0; i < perG; i++ {
				// Interleave each goroutine's chunks across the file.
				off := int64((i*goroutines + g) * chunk)
				if _, err := f.WriteAt(payload, off); err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	require.Len(t, got, goroutines*perG*chunk)

	for i := 0; i < perG; i++ {
		for g := 0; g < goroutines; g++ {
			off := (i*goroutines + g) * chunk
			want := bytes.Repeat([]byte{byte('A' + g)}, chunk)
			require.Equalf(t, want, got[off:off+chunk], "chunk at offset %d lost or torn", off)
		}
	}
}

func TestFile_ConcurrentGrowthSingleTruncate(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))
	blockSize := f.BlockSize()

	// Blocks 9 through 16 all round up to the same new table size, so one
	// truncate must service every writer.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			block := int64(9 + g)
			payload := []byte(fmt.Sprintf("block-%02d", block))
			if _, err := f.WriteAt(payload, block*blockSize); err != nil {
				t.Error(err)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int64(1), f.grows.Load(), "nearby growth requests must share one truncate")

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	for g := 0; g < 8; g++ {
		block := int64(9 + g)
		want := fmt.Sprintf("block-%02d", block)
		assert.Equal(t, want, string(got[block*blockSize:block*blockSize+int64(len(want))]))
	}
}

func TestFile_GrowCoveredBlockKeepsClaim(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	// Grow the table far enough to cover low block numbers.
	_, err := f.WriteAt([]byte("x"), 8*4096)
	require.NoError(t, err)

	// Another goroutine holds the truncate claim. A caller whose block the
	// table already covers must return without resetting it; otherwise a
	// third writer could start a second, concurrent truncate.
	f.mu.Lock()
	f.truncInProgress = true
	f.mu.Unlock()

	require.NoError(t, f.growViaTruncate(2))

	f.mu.Lock()
	stillClaimed := f.truncInProgress
	f.truncInProgress = false
	f.mu.Unlock()
	assert.True(t, stillClaimed, "covered-block caller must not clear another grower's claim")

	require.NoError(t, f.Close())
}

func TestFile_FailedWriteDoesNotExtendEnd(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	_, err := f.WriteAt([]byte("safe"), 0)
	require.NoError(t, err)

	// Closing the fd underneath makes the next grow fail before any byte of
	// the new write lands.
	require.NoError(t, f.f.Close())

	_, err = f.WriteAt([]byte("beyond"), 50*4096)
	require.Error(t, err)
	assert.Equal(t, int64(4), f.EndOffset(),
		"a write that failed before copying must not move the logical end")
}

func TestFile_SparseSync(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	// Only block 5 is mapped; Sync must walk past the nil entries.
	_, err := f.WriteAt([]byte("sparse"), 5*4096)
	require.NoError(t, err)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	got, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "sparse", string(got[5*4096:5*4096+6]))
}

func TestFile_SyncLimiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1<<30), 1<<20)
	f := newTestFile(t, WithBlockSize(4096), WithSyncLimiter(limiter))

	_, err := f.WriteAt([]byte("throttled"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func TestFile_CloseIdempotent(t *testing.T) {
	f := newTestFile(t)

	_, err := f.WriteAt([]byte("x"), 0)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.WriteAt([]byte("y"), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.Append([]byte("y")), ErrClosed)
	assert.ErrorIs(t, f.Sync(), ErrClosed)
}

func TestFile_InvalidOffset(t *testing.T) {
	f := newTestFile(t)
	defer f.Close()

	_, err := f.WriteAt([]byte("x"), -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestFile_GrowFailureLeavesTableIntact(t *testing.T) {
	f := newTestFile(t, WithBlockSize(4096))

	// Map block 0, then make the extend call fail by closing the fd out from
	// under the grow path.
	_, err := f.WriteAt([]byte("safe"), 0)
	require.NoError(t, err)
	require.NoError(t, f.f.Close())

	_, err = f.WriteAt([]byte("beyond"), 100*4096)
	require.Error(t, err)
	var ioErr *Error
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "grow", ioErr.Op)
	assert.Equal(t, f.Path(), ioErr.Path)

	// The old table still works: block 0 remains writable.
	_, err = f.WriteAt([]byte("still"), 10)
	require.NoError(t, err)
	assert.False(t, f.truncInProgress, "a failed grow must clear the in-progress flag")
}

func TestFile_ErrorFormatting(t *testing.T) {
	err := &Error{Op: "sync", Path: "/tmp/x", Err: os.ErrPermission}
	assert.Contains(t, err.Error(), "sync")
	assert.Contains(t, err.Error(), "/tmp/x")
	assert.ErrorIs(t, err, os.ErrPermission)
}
