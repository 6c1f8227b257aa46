package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "printshop:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesRefreshes(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		order []string
		mu    sync.Mutex
		wg    sync.WaitGroup
	)
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- locker.WithLock(ctx, "catalog", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()
	<-firstDone
	go func() {
		defer wg.Done()
		errs <- locker.WithLock(ctx, "catalog", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()
	close(releaseFirst)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockMaxWait(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("printshop:lock:catalog", "someone-else"))

	locker.MaxWait = 20 * time.Millisecond
	called := false
	err := locker.WithLock(t.Context(), "catalog", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)
	got, err := mr.Get("printshop:lock:catalog")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("partner down")
	err := locker.WithLock(t.Context(), "catalog", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("printshop:lock:catalog"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("printshop:lock:catalog"))
}
