package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/resp"

	"github.com/loganszeto/respcache/internal/config"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

type testServer struct {
	addr  string
	stats *stats.Stats
	stop  func()
}

func startServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	if mutate != nil {
		mutate(&cfg)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	require.NoError(t, err)

	st := stats.New()
	srv := New(cfg, store.NewMemTable(store.Options{}), st, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Error("server did not shut down")
			}
		})
	}
	t.Cleanup(stop)
	return &testServer{addr: ln.Addr().String(), stats: st, stop: stop}
}

type client struct {
	conn net.Conn
	rd   *resp.Reader
	wr   *resp.Writer
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn, rd: resp.NewReader(conn), wr: resp.NewWriter(conn)}
}

func (c *client) do(t *testing.T, cmd string, args ...interface{}) resp.Value {
	t.Helper()
	require.NoError(t, c.wr.WriteMultiBulk(cmd, args...))
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	v, _, err := c.rd.ReadValue()
	require.NoError(t, err)
	return v
}

func (c *client) expectRaw(t *testing.T, want string) {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	got := make([]byte, len(want))
	_, err := io.ReadFull(c.conn, got)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func (c *client) send(t *testing.T, raw string) {
	t.Helper()
	_, err := c.conn.Write([]byte(raw))
	require.NoError(t, err)
}

func TestServerExampleScenario(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, pingFrame)
	c.expectRaw(t, "+PONG\r\n")
	c.send(t, setFooFrame)
	c.expectRaw(t, "+OK\r\n")
	c.send(t, getFooFrame)
	c.expectRaw(t, "$3\r\nbar\r\n")
}

func TestServerRoundTrip(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	for _, val := range []string{"bar", "", "with spaces", "ünïcödé", string(bytes.Repeat([]byte("x"), 10000))} {
		v := c.do(t, "SET", "k", val)
		require.Equal(t, resp.SimpleString, v.Type())
		assert.Equal(t, "OK", v.String())

		v = c.do(t, "GET", "k")
		require.Equal(t, resp.BulkString, v.Type())
		assert.Equal(t, val, v.String())
	}
}

func TestServerEcho(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, "*2\r\n$4\r\nECHO\r\n$3\r\nhey\r\n")
	c.expectRaw(t, "+hey\r\n")
	c.send(t, "*2\r\n$4\r\necho\r\n$4\r\na\r\nb\r\n")
	c.expectRaw(t, "$4\r\na\r\nb\r\n")
}

func TestServerUnknownKeyIsNil(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, "*2\r\n$3\r\nGET\r\n$5\r\nnever\r\n")
	c.expectRaw(t, "$-1\r\n")
}

func TestServerExpiry(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	assert.Equal(t, "OK", c.do(t, "SET", "k", "v", "PX", "50").String())
	assert.Equal(t, "v", c.do(t, "GET", "k").String())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, c.do(t, "GET", "k").IsNull())
}

func TestServerOverwriteClearsTTL(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.do(t, "SET", "k", "v1", "PX", "50")
	c.do(t, "SET", "k", "v2")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, "v2", c.do(t, "GET", "k").String())
}

func TestServerPipelining(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, setFooFrame+getFooFrame)
	c.expectRaw(t, "+OK\r\n$3\r\nbar\r\n")
}

func TestServerPartialDelivery(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, "*2\r\n$4\r\nECHO\r\n$5\r\n")
	time.Sleep(20 * time.Millisecond)
	c.send(t, "hello\r\n")
	c.expectRaw(t, "+hello\r\n")
}

func TestServerSmallReadChunk(t *testing.T) {
	srv := startServer(t, func(cfg *config.Config) { cfg.ReadChunk = 3 })
	c := dial(t, srv.addr)

	val := string(bytes.Repeat([]byte("0123456789"), 100))
	assert.Equal(t, "OK", c.do(t, "SET", "long", val).String())
	assert.Equal(t, val, c.do(t, "GET", "long").String())
}

func TestServerMalformedKeepsConnection(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)

	c.send(t, "*1\r\n$-2\r\n")
	c.expectRaw(t, "-ERR Protocol error: invalid bulk length\r\n")

	c.send(t, "*1\r\n$abc\r\n")
	c.expectRaw(t, "-ERR Protocol error: invalid bulk length\r\n")

	c.send(t, "*2\r\n$3\r\nGET\r\n")
	c.send(t, "$1\r\nk\r\n")
	c.expectRaw(t, "$-1\r\n")

	v := c.do(t, "FLY")
	require.Equal(t, resp.Error, v.Type())
	assert.Equal(t, "ERR unknown command 'FLY'", v.String())

	v = c.do(t, "SET", "k", "v", "PX", "soon")
	require.Equal(t, resp.Error, v.Type())
	assert.Equal(t, "ERR value is not an integer or out of range", v.String())

	assert.Equal(t, "PONG", c.do(t, "PING").String())
	assert.Equal(t, int64(4), srv.stats.Snapshot()["errors"])
}

func TestServerSharedStoreAcrossConnections(t *testing.T) {
	srv := startServer(t, nil)
	a := dial(t, srv.addr)
	b := dial(t, srv.addr)

	a.do(t, "SET", "shared", "yes")
	assert.Equal(t, "yes", b.do(t, "GET", "shared").String())
}

func TestServerConcurrentDistinctKeys(t *testing.T) {
	srv := startServer(t, nil)

	const conns = 50
	var wg sync.WaitGroup
	errCh := make(chan error, conns)
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.addr)
			if err != nil {
				errCh <- err
				return
			}
			defer conn.Close()
			rd := resp.NewReader(conn)
			wr := resp.NewWriter(conn)
			key := fmt.Sprintf("k:%d", id)
			for j := 0; j < 20; j++ {
				val := fmt.Sprintf("%d:%d", id, j)
				if err := wr.WriteMultiBulk("SET", key, val); err != nil {
					errCh <- err
					return
				}
				if _, _, err := rd.ReadValue(); err != nil {
					errCh <- err
					return
				}
				if err := wr.WriteMultiBulk("GET", key); err != nil {
					errCh <- err
					return
				}
				v, _, err := rd.ReadValue()
				if err != nil {
					errCh <- err
					return
				}
				if v.String() != val {
					errCh <- fmt.Errorf("key %s: got %q want %q", key, v.String(), val)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	c := dial(t, srv.addr)
	for i := 0; i < conns; i++ {
		assert.Equal(t, fmt.Sprintf("%d:19", i), c.do(t, "GET", fmt.Sprintf("k:%d", i)).String())
	}
}

func TestServerNoTornValues(t *testing.T) {
	srv := startServer(t, nil)
	a := string(bytes.Repeat([]byte("a"), 8192))
	b := string(bytes.Repeat([]byte("b"), 8192))

	setter := dial(t, srv.addr)
	setter.do(t, "SET", "hot", a)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.addr)
			if err != nil {
				return
			}
			defer conn.Close()
			rd := resp.NewReader(conn)
			wr := resp.NewWriter(conn)
			val := a
			if w%2 == 1 {
				val = b
			}
			for i := 0; i < 100; i++ {
				if wr.WriteMultiBulk("SET", "hot", val) != nil {
					return
				}
				if _, _, err := rd.ReadValue(); err != nil {
					return
				}
			}
		}(w)
	}

	reader := dial(t, srv.addr)
	for i := 0; i < 200; i++ {
		got := reader.do(t, "GET", "hot").String()
		if got != a && got != b {
			t.Fatalf("torn value of length %d observed", len(got))
		}
	}
	wg.Wait()
}

func TestServerShutdownClosesConnections(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.addr)
	assert.Equal(t, "PONG", c.do(t, "PING").String())

	srv.stop()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.conn.Read(make([]byte, 1))
	assert.Error(t, err, "server side of the connection should be closed")

	assert.Eventually(t, func() bool {
		return srv.stats.ActiveConns() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServerIdleTimeout(t *testing.T) {
	srv := startServer(t, func(cfg *config.Config) { cfg.IdleTimeout = 50 * time.Millisecond })
	c := dial(t, srv.addr)
	assert.Equal(t, "PONG", c.do(t, "PING").String())

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestServerClientDisconnectDoesNotAffectOthers(t *testing.T) {
	srv := startServer(t, nil)
	a := dial(t, srv.addr)
	b := dial(t, srv.addr)

	a.do(t, "SET", "k", "v")
	a.send(t, "*2\r\n$3\r\nGET\r\n$1\r\n")
	require.NoError(t, a.conn.Close())

	assert.Equal(t, "v", b.do(t, "GET", "k").String())
}

func TestServerAddr(t *testing.T) {
	srv := New(config.Default(), store.NewMemTable(store.Options{}), stats.New(), nil)
	assert.Nil(t, srv.Addr())
}

func TestServerNilStats(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(config.Default(), store.NewMemTable(store.Options{}), nil, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := dial(t, ln.Addr().String())
	assert.Equal(t, "PONG", c.do(t, "PING").String())
	assert.Equal(t, "OK", c.do(t, "SET", "k", "v").String())
}
