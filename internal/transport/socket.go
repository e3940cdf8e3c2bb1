package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"unicode/utf8"

	"shellcatch/config"
	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/metrics"
	"shellcatch/internal/watch"
	"shellcatch/util"
)

// Options configures [Start].
type Options struct {
	SendBuffer int // default: config.DefaultSendBuffer
	Logger     *util.Logger
	Metrics    *metrics.Collector
}

// Channels exposes one connection as a last-value-wins source of
// decoded text, a queued sink, and a cancellation handle.
type Channels struct {
	// Output holds the most recent chunk read from the socket.  It is
	// closed when the connection ends.
	Output *watch.Value[string]

	conn    net.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	send    chan string
	log     *util.Logger
	metrics *metrics.Collector

	wg   sync.WaitGroup
	done chan struct{}

	mu  sync.Mutex
	err error
}

// Start pumps conn in both directions until ctx is done, Cancel is
// called, or the socket fails.  Either way the socket is closed and
// Output is closed.
func Start(ctx context.Context, conn net.Conn, opts Options) *Channels {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = config.DefaultSendBuffer
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Channels{
		Output:  watch.New(""),
		conn:    conn,
		ctx:     cctx,
		cancel:  cancel,
		send:    make(chan string, opts.SendBuffer),
		log:     opts.Logger.Named("socket " + util.PeerHost(conn.RemoteAddr())),
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		<-cctx.Done()
		conn.Close()
		c.wg.Wait()
		c.Output.Close()
		close(c.done)
	}()
	return c
}

// Context is done once the connection is being torn down.
func (c *Channels) Context() context.Context { return c.ctx }

// Cancel tears the connection down.
func (c *Channels) Cancel() { c.cancel() }

// Done is closed after the socket is closed and both pumps have exited.
func (c *Channels) Done() <-chan struct{} { return c.done }

// RemoteAddr returns the peer address.
func (c *Channels) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Err returns the socket error that ended the connection, or nil after
// a clean EOF or Cancel.
func (c *Channels) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send queues s for the socket.  It fails with ErrSinkClosed once the
// connection is torn down.
func (c *Channels) Send(ctx context.Context, s string) error {
	select {
	case <-c.ctx.Done():
		return ncerr.ErrSinkClosed
	default:
	}
	select {
	case c.send <- s:
		return nil
	case <-c.ctx.Done():
		return ncerr.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channels) fail(err error) {
	if c.ctx.Err() == nil && err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
		c.metrics.RecordError(err.Error())
		c.log.Verbose("closed: %v", err)
	} else if c.ctx.Err() == nil {
		c.log.Verbose("closed by peer")
	}
	c.cancel()
}

func (c *Channels) readLoop() {
	defer c.wg.Done()

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	var carry []byte
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.metrics.BytesReceived(int64(n))
			var text string
			text, carry = decodeChunk(carry, buf[:n])
			if text != "" {
				if perr := c.Output.Publish(text); perr != nil {
					return
				}
			}
		}
		if err != nil {
			c.fail(err)
			return
		}
	}
}

func (c *Channels) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case s := <-c.send:
			n, err := io.WriteString(c.conn, s)
			c.metrics.BytesSent(int64(n))
			if err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// decodeChunk decodes carry+b as text.  A multi-byte rune cut off at
// the end of b is returned as the new carry instead of being mangled;
// any other invalid byte becomes U+FFFD.
func decodeChunk(carry, b []byte) (string, []byte) {
	if len(carry) > 0 {
		b = append(carry, b...)
	}
	cut := len(b)
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				cut = i
			}
			break
		}
	}
	var rest []byte
	if cut < len(b) {
		rest = append([]byte(nil), b[cut:]...)
	}
	return strings.ToValidUTF8(string(b[:cut]), "\uFFFD"), rest
}
