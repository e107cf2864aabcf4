package comm

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// CreationFunc is a function which returns a new "connection" to something
// a closure should be used to encapsulate the variables and functions needed
type CreationFunc func() (io.ReadWriteCloser, error)

// Pool is a communication pool which holds one or more connections to a device
// that will be closed if they are not in use, and re-opened as needed.
// it is concurrent safe.  Pools must be created with NewPool.
type Pool struct {
	timeout time.Duration           // time after the last return to free all connections
	conns   chan io.ReadWriteCloser // idle connections
	slots   chan struct{}           // one token per connection on lease
	reclaim *time.Timer             // armed when the last connection is returned
	maker   CreationFunc

	mu sync.Mutex
}

// NewPool creates a new pool which will hold up to maxSize connections and
// close idle ones timeout after the last one is returned
func NewPool(maxSize int, timeout time.Duration, maker CreationFunc) *Pool {
	return &Pool{
		timeout: timeout,
		conns:   make(chan io.ReadWriteCloser, maxSize),
		slots:   make(chan struct{}, maxSize),
		maker:   maker,
	}
}

// Get retrieves a communicator from the pool, blocking until one is
// available if all are in use.  It is guaranteed that there is no contestion
// for the ReadWriter.  The consumer should not attempt to cast it to its
// concrete type and use it outside this interface.
//
// When done with the communicator, return it with Put(), discard it with
// Destroy() if it has become no good, or let ReturnWithError pick.
//
// If the error from Get is not nil, you must not return it
// to the pool, or you will cause a panic.
func (p *Pool) Get() (io.ReadWriter, error) {
	// a slot is freed by Put and Destroy alike
	p.slots <- struct{}{}
	p.mu.Lock()
	if p.reclaim != nil {
		p.reclaim.Stop()
	}
	p.mu.Unlock()
	select {
	case c := <-p.conns:
		return c, nil
	default:
	}
	c, err := p.maker()
	if err != nil {
		<-p.slots
		return nil, err
	}
	return c, nil
}

// Put restores a communicator to the pool.  It may be reused, or will be
// automatically freed after all connections are returned and the timeout
// has elapsed.  Junk communicators (ones that always error) should be
// Destroy()'d and not returned with Put.
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	p.mu.Lock()
	defer p.mu.Unlock()
	// idle before the slot is released, so the next Get finds it
	p.conns <- rwc
	<-p.slots
	if len(p.slots) == 0 {
		if p.reclaim == nil {
			p.reclaim = time.AfterFunc(p.timeout, p.closeIdle)
		} else {
			p.reclaim.Reset(p.timeout)
		}
	}
}

// Destroy immediately frees a communicator from the pool, and its slot with
// it.  This should be used instead of Put if the communicator has gone bad.
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	rwc.Close()
	<-p.slots
}

// ReturnWithError returns the communicator to the pool with Put if err is nil
// or a device-level error, and Destroys it if err indicates the link itself
// is broken (EOF, timeout, closed network connection)
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if linkBroken(err) {
		p.Destroy(rw)
		return
	}
	p.Put(rw)
}

func linkBroken(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.As(err, &nerr)
}

// Size returns the number of connections in the pool, or given out from it
func (p *Pool) Size() int {
	return len(p.conns) + len(p.slots)
}

// Active returns the number of connections owned by the pool that are currently
// given out
func (p *Pool) Active() int {
	return len(p.slots)
}

// Close stops the reclaim timer and closes every idle connection.
// connections on lease are unaffected
func (p *Pool) Close() {
	p.mu.Lock()
	if p.reclaim != nil {
		p.reclaim.Stop()
	}
	p.mu.Unlock()
	p.drain()
}

func (p *Pool) closeIdle() {
	if len(p.slots) > 0 {
		return
	}
	p.drain()
}

func (p *Pool) drain() {
	for {
		select {
		case c := <-p.conns:
			c.Close()
		default:
			return
		}
	}
}
