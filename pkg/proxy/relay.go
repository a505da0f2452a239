package proxy

import (
	"bufio"
	"io"
	"net"
	"sync"
)

// relay copies bytes bidirectionally between a and b until both directions
// have finished or either side errors. When one direction hits end-of-stream
// its write side on the peer is half-closed, so the peer observes EOF
// promptly instead of hanging with one live direction.
func relay(a, b io.ReadWriteCloser) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		io.Copy(b, a)
		closeWrite(b)
	}()
	go func() {
		defer wg.Done()
		io.Copy(a, b)
		closeWrite(a)
	}()

	wg.Wait()
}

func closeWrite(c io.ReadWriteCloser) {
	if hc, ok := c.(interface{ CloseWrite() error }); ok {
		hc.CloseWrite()
		return
	}
	// No half-close support; a full close still unblocks the peer.
	c.Close()
}

// bufferedConn lets the relay drain bytes already buffered during HTTP
// header parsing before reading from the connection itself.
type bufferedConn struct {
	reader *bufio.Reader
	conn   net.Conn
}

func newBufferedConn(reader *bufio.Reader, conn net.Conn) *bufferedConn {
	return &bufferedConn{reader: reader, conn: conn}
}

func (c *bufferedConn) Read(p []byte) (int, error)  { return c.reader.Read(p) }
func (c *bufferedConn) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *bufferedConn) Close() error                { return c.conn.Close() }

// CloseWrite propagates half-close to the underlying TCP connection.
func (c *bufferedConn) CloseWrite() error {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.conn.Close()
}
