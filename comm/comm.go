/*Package comm provides connection makers, a connection pool, and framing for
communication with lab hardware.

Most usages of this package will boil down to:
	1.  make a CreationFunc for the link, e.g. SerialConnMaker or
		BackingOffTCPConnMaker
	2.  make a Pool from it with NewPool
	3.  for each command, Get a connection, wrap it in a Terminator, write the
		command and read the reply, then hand the connection back with
		ReturnWithError

A minimal example for a sensor that responds to "RD?" with the current value:

	func (s *Sensor) Read() (float64, error) {
		conn, err := s.pool.Get()
		if err != nil {
			return 0, err
		}
		defer func() { s.pool.ReturnWithError(conn, err) }()
		wrap := comm.NewTerminator(conn, '\r', '\r')
		_, err = io.WriteString(wrap, "RD?")
		if err != nil {
			return 0, err
		}
		buf := make([]byte, 64)
		n, err := wrap.Read(buf)
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(string(buf[:n]), 64)
	}
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Terminator wraps a ReadWriter, appending Tx to every write and reading
// until Rx, which is stripped from the output
type Terminator struct {
	rw io.ReadWriter
	br *bufio.Reader
	rx byte
	tx byte
}

// NewTerminator returns a Terminator over rw
func NewTerminator(rw io.ReadWriter, rx, tx byte) *Terminator {
	return &Terminator{rw: rw, br: bufio.NewReader(rw), rx: rx, tx: tx}
}

// Write writes p followed by the Tx terminator in a single write call.
// the returned byte count does not include the terminator
func (t *Terminator) Write(p []byte) (int, error) {
	buf := make([]byte, len(p)+1)
	copy(buf, p)
	buf[len(p)] = t.tx
	n, err := t.rw.Write(buf)
	if n > len(p) {
		n = len(p)
	}
	return n, err
}

// Read reads one Rx-terminated message into p, with the terminator stripped.
// if p is too short for the message, the excess is discarded
func (t *Terminator) Read(p []byte) (int, error) {
	msg, err := t.br.ReadBytes(t.rx)
	if err != nil {
		if err == io.EOF && len(msg) > 0 {
			return copy(p, msg), ErrTerminatorNotFound
		}
		return 0, err
	}
	msg = bytes.TrimSuffix(msg, []byte{t.rx})
	return copy(p, msg), nil
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

func defaultBackoff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock}
}

// BackingOffTCPConnMaker returns a CreationFunc which dials addr, retrying
// with an exponential backoff.  A refused connection is not retried
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = TCPSetup(addr, timeout)
			if err != nil && strings.Contains(strings.ToLower(err.Error()), "refused") {
				return backoff.Permanent(err)
			}
			return err
		}
		err := backoff.Retry(op, defaultBackoff())
		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				err = perm.Err
			}
			return nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		return conn, nil
	}
}

// BackingOffSerialConnMaker returns a CreationFunc which opens a serial port,
// retrying for ports which are briefly busy after another process releases them
func BackingOffSerialConnMaker(conf *serial.Config) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var port *serial.Port
		op := func() error {
			var err error
			port, err = serial.OpenPort(conf)
			return err
		}
		err := backoff.Retry(op, defaultBackoff())
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", conf.Name, err)
		}
		return port, nil
	}
}
