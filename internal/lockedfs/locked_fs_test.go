package lockedfs_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudnative-vfs/vfskernel/clock"
	"github.com/cloudnative-vfs/vfskernel/internal/cred"
	"github.com/cloudnative-vfs/vfskernel/internal/fsflag"
	"github.com/cloudnative-vfs/vfskernel/internal/lockedfs"
	"github.com/cloudnative-vfs/vfskernel/internal/verrno"
	"github.com/cloudnative-vfs/vfskernel/internal/vfile"
	"github.com/cloudnative-vfs/vfskernel/internal/vfsfs"
	"github.com/cloudnative-vfs/vfskernel/internal/vfskv"
)

// slowOpenFS delays its async OpenFile so a test can observe a path held
// mid-operation.
type slowOpenFS struct {
	vfsfs.SyncFileSystem
	delay chan struct{}
}

func (s *slowOpenFS) OpenFile(path string, flag fsflag.FileFlag, c cred.Cred) (*vfile.PreloadFile, error) {
	<-s.delay
	return s.SyncFileSystem.OpenFile(path, flag, c)
}

func TestPathMutexFIFO(t *testing.T) {
	m := lockedfs.NewPathMutex()
	m.Lock("/p")
	require.True(t, m.IsLocked("/p"))
	require.False(t, m.TryLock("/p"))

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Lock("/p")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			m.Unlock("/p")
		}(i)
		time.Sleep(5 * time.Millisecond) // keep enqueue order deterministic
	}
	m.Unlock("/p")
	wg.Wait()
	require.Equal(t, []int{0, 1, 2}, order)
	require.False(t, m.IsLocked("/p"))
}

func newTestEngine(t *testing.T) *vfskv.Engine {
	t.Helper()
	store := vfskv.NewMemStore("locked")
	eng, err := vfskv.NewEngine("locked", store, clock.NewSimulatedClock(time.Unix(0, 0)), vfskv.WithSynchronous())
	require.NoError(t, err)
	return eng
}

func mustFlag(t *testing.T, s string) fsflag.FileFlag {
	t.Helper()
	f, err := fsflag.Parse(s)
	require.NoError(t, err)
	return f
}

func TestLockedFSRefusesSyncCallOnHeldPath(t *testing.T) {
	eng := newTestEngine(t)
	f, err := eng.CreateFile("/f", mustFlag(t, "w"), 0o644, cred.Root)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	delay := make(chan struct{})
	lfs := lockedfs.NewLockedFS(&slowOpenFS{SyncFileSystem: eng, delay: delay})

	done := make(chan error, 1)
	go func() {
		_, err := lfs.OpenFile("/f", mustFlag(t, "r"), cred.Root)
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := lfs.StatSync("/f", cred.Root)
		apiErr, ok := verrno.As(err)
		return ok && apiErr.Code == verrno.EBUSY
	}, time.Second, time.Millisecond)

	close(delay)
	require.NoError(t, <-done)

	_, err = lfs.StatSync("/f", cred.Root)
	require.NoError(t, err)
}

func TestLockedFSSyncPassesThroughWhenUnlocked(t *testing.T) {
	eng := newTestEngine(t)
	lfs := lockedfs.NewLockedFS(eng)

	require.NoError(t, lfs.MkdirSync("/d", 0o755, cred.Root))
	st, err := lfs.StatSync("/d", cred.Root)
	require.NoError(t, err)
	require.True(t, st.IsDirectory())
}
