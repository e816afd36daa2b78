package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/ratelimiter"
	"github.com/ecstasoy/addrecho/pkg/registry"
	"github.com/ecstasoy/addrecho/pkg/registry/memory"
)

var loopback = protocol.Endpoint{Host: "127.0.0.1", Port: 0}

// startServer binds an ephemeral port and serves until the test ends.
func startServer(t *testing.T, opts ...Option) (*Server, int, <-chan error) {
	t.Helper()

	opts = append([]Option{WithEndpoint(loopback), WithSettleDelay(5 * time.Millisecond)}, opts...)
	srv := NewServer(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Listen(ctx); err != nil {
		cancel()
		t.Fatalf("Listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	_, port, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("bad address %q: %v", srv.Addr(), err)
	}
	p, _ := strconv.Atoi(port)
	return srv, p, errCh
}

func dialTCP(t *testing.T, port int) (string, net.Addr) {
	t.Helper()

	conn, err := net.Dial("tcp", (protocol.Endpoint{Host: "127.0.0.1", Port: port}).String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data), conn.LocalAddr()
}

func TestTCPServerReply(t *testing.T) {
	rec := logging.NewRecorder()
	srv, port, _ := startServer(t, WithLogger(rec))

	reply, local := dialTCP(t, port)
	if reply != local.String() {
		t.Fatalf("reply = %q, want %q", reply, local.String())
	}

	if rec.Count(logging.LevelInfo, "is ready to receive data") != 1 {
		t.Fatalf("missing ready log: %v", rec.Entries())
	}

	if st := srv.Stats(); st.Total != 1 || st.Replies != 1 || st.Transport != "tcp" {
		t.Fatalf("stats = %+v", st)
	}
}

func TestUDPServerReply(t *testing.T) {
	_, port, _ := startServer(t, WithTransport(protocol.TransportUDP))

	conn, err := net.Dial("udp", (protocol.Endpoint{Host: "127.0.0.1", Port: port}).String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.ReceiveBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != conn.LocalAddr().String() {
		t.Fatalf("reply = %q, want %q", got, conn.LocalAddr().String())
	}
}

func TestRateLimitedExchangeIsDropped(t *testing.T) {
	rec := logging.NewRecorder()
	limiter := ratelimiter.NewTokenBucketLimiter(1, 1)
	srv, port, _ := startServer(t,
		WithLogger(rec),
		WithInterceptors(interceptor.RateLimit(limiter)),
	)

	if reply, _ := dialTCP(t, port); reply == "" {
		t.Fatal("first exchange should be answered")
	}
	if reply, _ := dialTCP(t, port); reply != "" {
		t.Fatalf("second exchange should be dropped, got %q", reply)
	}

	if st := srv.Stats(); st.Dropped != 1 || st.Replies != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if rec.Count(logging.LevelError, ratelimiter.ErrRateLimitExceeded.Error()) != 1 {
		t.Fatalf("missing rate limit log: %v", rec.Entries())
	}
}

func TestPanicKeepsServing(t *testing.T) {
	var calls int32
	boom := func(ctx context.Context, ex *protocol.Exchange, invoker interceptor.Invoker) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		return invoker(ctx, ex)
	}

	_, port, _ := startServer(t, WithInterceptors(boom))

	if reply, _ := dialTCP(t, port); reply != "" {
		t.Fatalf("panicking exchange replied %q", reply)
	}
	if reply, local := dialTCP(t, port); reply != local.String() {
		t.Fatalf("reply after panic = %q, want %q", reply, local.String())
	}
}

func TestServeReturnsNilOnCancel(t *testing.T) {
	srv := NewServer(WithEndpoint(loopback))

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Listen(ctx); err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenErrorIsBindKind(t *testing.T) {
	_, port, _ := startServer(t)

	srv := NewServer(WithEndpoint(protocol.Endpoint{Host: "127.0.0.1", Port: port}))
	err := srv.Start(context.Background())
	if err == nil {
		t.Fatal("expected bind error on a busy port")
	}
	if kind := protocol.Classify(err); kind != protocol.ErrorKindBind {
		t.Fatalf("Classify = %v, want bind (%v)", kind, err)
	}
}

func TestRegistersWhileServing(t *testing.T) {
	reg := memory.NewRegistry(nil)
	defer reg.Close()

	srv := NewServer(
		WithEndpoint(loopback),
		WithTransport(protocol.TransportUDP),
		WithRegistry(reg, "echo-test", 0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Listen(ctx); err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	waitFor(t, func() bool { return srv.Instance() != nil })

	list, err := reg.GetInstances(context.Background(), "echo-test")
	if err != nil || len(list) != 1 {
		t.Fatalf("GetInstances = %v, %v", list, err)
	}
	if list[0].Transport != "udp" || list[0].Host != "127.0.0.1" {
		t.Fatalf("instance = %s", list[0])
	}
	if list[0].Endpoint() == "127.0.0.1:0" {
		t.Fatal("registered the requested port instead of the bound one")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Serve = %v", err)
	}

	list, _ = reg.GetInstances(context.Background(), "echo-test")
	if len(list) != 0 {
		t.Fatalf("instance still registered after stop: %v", list)
	}
}

type countingRegistry struct {
	registry.Registry
	beats int32
}

func (c *countingRegistry) Heartbeat(ctx context.Context, service, id string) error {
	atomic.AddInt32(&c.beats, 1)
	return c.Registry.Heartbeat(ctx, service, id)
}

func TestHeartbeat(t *testing.T) {
	mem := memory.NewRegistry(nil)
	defer mem.Close()
	reg := &countingRegistry{Registry: mem}

	startServer(t, WithRegistry(reg, "", 5*time.Millisecond))

	waitFor(t, func() bool { return atomic.LoadInt32(&reg.beats) >= 2 })
}

func TestRegisterFailureReleasesPort(t *testing.T) {
	mem := memory.NewRegistry(nil)
	_ = mem.Close()

	srv := NewServer(WithEndpoint(loopback), WithRegistry(mem, "", 0))
	if err := srv.Listen(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, port, _ := net.SplitHostPort(srv.Addr())

	err := srv.Serve(context.Background())
	if !errors.Is(err, registry.ErrNotConnected) {
		t.Fatalf("Serve = %v, want ErrNotConnected", err)
	}

	ln, err := net.Listen("tcp4", ":"+port)
	if err != nil {
		t.Fatalf("port %s still held after failed registration: %v", port, err)
	}
	_ = ln.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
