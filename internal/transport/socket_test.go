package transport

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	ncerr "shellcatch/internal/errors"
	"shellcatch/internal/metrics"
)

// pair returns a connected loopback TCP pair: the local end handed to
// Start and the remote end playing the shell.
func pair(t *testing.T) (local, remote net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	local, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	remote, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return local, remote
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestStart_PublishesOutput(t *testing.T) {
	local, remote := pair(t)
	m := metrics.New()
	c := Start(context.Background(), local, Options{Metrics: m})
	defer c.Cancel()

	rx := c.Output.Watch()
	remote.Write([]byte("root@target:~# ")) //nolint:errcheck

	waitDone(t, rx.Changed())
	if got, ok := rx.Next(); !ok || got != "root@target:~# " {
		t.Fatalf("Next() = %q, %v", got, ok)
	}
	if m.TotalBytesIn() != int64(len("root@target:~# ")) {
		t.Errorf("bytes in = %d", m.TotalBytesIn())
	}
}

func TestStart_SendWritesToSocket(t *testing.T) {
	local, remote := pair(t)
	m := metrics.New()
	c := Start(context.Background(), local, Options{Metrics: m})
	defer c.Cancel()

	if err := c.Send(context.Background(), "id\n"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	remote.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	line, err := bufio.NewReader(remote).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "id\n" {
		t.Errorf("remote got %q", line)
	}
}

func TestStart_PeerCloseTearsDown(t *testing.T) {
	local, remote := pair(t)
	c := Start(context.Background(), local, Options{})
	rx := c.Output.Watch()

	remote.Close()
	waitDone(t, c.Done())

	if c.Context().Err() == nil {
		t.Error("context should be cancelled after EOF")
	}
	if c.Err() != nil {
		t.Errorf("clean EOF should leave Err nil, got %v", c.Err())
	}
	if err := c.Send(context.Background(), "x"); !ncerr.Is(err, ncerr.ErrSinkClosed) {
		t.Errorf("Send after close: %v, want ErrSinkClosed", err)
	}
	if _, ok := rx.Next(); ok {
		t.Error("output slot should be closed")
	}
}

func TestStart_CancelClosesSocket(t *testing.T) {
	local, remote := pair(t)
	c := Start(context.Background(), local, Options{})

	c.Cancel()
	waitDone(t, c.Done())

	remote.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, err := remote.Read(make([]byte, 1)); err == nil {
		t.Fatal("remote should see the socket closed")
	}
}

func TestStart_ParentContext(t *testing.T) {
	local, _ := pair(t)
	ctx, cancel := context.WithCancel(context.Background())
	c := Start(ctx, local, Options{})

	cancel()
	waitDone(t, c.Done())
}

func TestDecodeChunk(t *testing.T) {
	e := []byte("é") // 0xc3 0xa9

	text, carry := decodeChunk(nil, []byte{'a', e[0]})
	if text != "a" || len(carry) != 1 {
		t.Fatalf("split rune: text=%q carry=%v", text, carry)
	}
	text, carry = decodeChunk(carry, []byte{e[1], 'b'})
	if text != "éb" || carry != nil {
		t.Fatalf("rejoined: text=%q carry=%v", text, carry)
	}

	text, carry = decodeChunk(nil, []byte{'x', 0xff, 'y'})
	if text != "x\uFFFDy" || carry != nil {
		t.Fatalf("invalid byte: text=%q carry=%v", text, carry)
	}
}
