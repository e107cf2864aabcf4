package comm_test

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nasa-jpl/nanosquared/comm"
)

// pipeMaker returns a CreationFunc producing in-memory connections whose
// far end echoes everything it receives
func pipeMaker(made *int, mu *sync.Mutex) comm.CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		near, far := net.Pipe()
		go func() {
			io.Copy(far, far)
			far.Close()
		}()
		mu.Lock()
		*made++
		mu.Unlock()
		return near, nil
	}
}

func TestTerminatorRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	conn, err := pipeMaker(&made, &mu)()
	require.NoError(t, err)
	defer conn.Close()

	wrap := comm.NewTerminator(conn, '\n', '\n')
	go io.WriteString(wrap, "Q:")
	buf := make([]byte, 16)
	n, err := wrap.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "Q:", string(buf[:n]))
}

func TestPoolReusesConnections(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	pool := comm.NewPool(1, time.Minute, pipeMaker(&made, &mu))
	for i := 0; i < 5; i++ {
		conn, err := pool.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, pool.Active())
		pool.Put(conn)
	}
	assert.Equal(t, 1, made)
	assert.Equal(t, 1, pool.Size())
	pool.Close()
	assert.Equal(t, 0, pool.Size())
}

func TestPoolReclaimsIdleConnections(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	pool := comm.NewPool(2, 10*time.Millisecond, pipeMaker(&made, &mu))
	a, err := pool.Get()
	require.NoError(t, err)
	b, err := pool.Get()
	require.NoError(t, err)
	pool.Put(a)
	pool.Put(b)
	assert.Eventually(t, func() bool { return pool.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestReturnWithErrorDestroysBrokenLinks(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	pool := comm.NewPool(1, time.Minute, pipeMaker(&made, &mu))
	conn, err := pool.Get()
	require.NoError(t, err)
	pool.ReturnWithError(conn, io.EOF)
	assert.Equal(t, 0, pool.Size())

	conn, err = pool.Get()
	require.NoError(t, err)
	pool.ReturnWithError(conn, assert.AnError)
	assert.Equal(t, 1, pool.Size(), "protocol errors keep the link")
	pool.Close()
	assert.Equal(t, 2, made)
}

func TestBlockedGetWakesOnPut(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	pool := comm.NewPool(1, time.Minute, pipeMaker(&made, &mu))
	first, err := pool.Get()
	require.NoError(t, err)

	got := make(chan io.ReadWriter)
	go func() {
		c, _ := pool.Get()
		got <- c
	}()
	time.Sleep(10 * time.Millisecond)
	pool.Put(first)
	second := <-got
	assert.Same(t, first, second)
	pool.Put(second)
	pool.Close()
}

func TestBlockedGetWakesOnDestroy(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		made int
		mu   sync.Mutex
	)
	pool := comm.NewPool(1, time.Minute, pipeMaker(&made, &mu))
	first, err := pool.Get()
	require.NoError(t, err)

	got := make(chan io.ReadWriter)
	go func() {
		c, _ := pool.Get()
		got <- c
	}()
	time.Sleep(10 * time.Millisecond)
	pool.Destroy(first)
	select {
	case second := <-got:
		require.NotNil(t, second)
		assert.NotSame(t, first, second, "a new link is made in the freed slot")
		assert.Equal(t, 1, pool.Active())
		pool.Destroy(second)
	case <-time.After(time.Second):
		t.Fatal("Get stayed blocked after Destroy freed the slot")
	}
	assert.Equal(t, 0, pool.Active())
	pool.Close()
	mu.Lock()
	assert.Equal(t, 2, made)
	mu.Unlock()
}
