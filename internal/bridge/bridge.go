// Package bridge implements the concurrency hub that fans UIMessage traffic
// between N stream clients and one CAN bus, invoking the gateway simulator
// for locally-addressed frames along the way.
package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/uirobot/uimbridge/internal/can"
	"github.com/uirobot/uimbridge/internal/gateway"
	"github.com/uirobot/uimbridge/internal/logging"
	"github.com/uirobot/uimbridge/internal/metrics"
	"github.com/uirobot/uimbridge/internal/simplecan"
	"github.com/uirobot/uimbridge/internal/uimsg"
)

// Bridge owns every mutable resource the bridge needs: the stream listener,
// the connection set, the CAN bus handle and the gateway responder. There
// is no package-level shared state; construct one Bridge per running
// instance.
type Bridge struct {
	addr    string
	conns   *ConnectionSet
	bus     can.Bus
	gateway *gateway.Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	readyCh  chan struct{}
	readyErr error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithListenAddr sets the TCP listen address (default ":8888").
func WithListenAddr(addr string) Option { return func(b *Bridge) { b.addr = addr } }

// WithConnectionSet overrides the default connection set (buffer size 64,
// drop policy).
func WithConnectionSet(cs *ConnectionSet) Option { return func(b *Bridge) { b.conns = cs } }

// WithLogger overrides the bridge's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bridge wired to bus (the CAN bus collaborator) and gw (the
// gateway responder instance). Neither may be nil.
func New(bus can.Bus, gw *gateway.Gateway, opts ...Option) *Bridge {
	b := &Bridge{
		addr:    ":8888",
		conns:   NewConnectionSet(64, PolicyDrop),
		bus:     bus,
		gateway: gw,
		logger:  logging.L(),
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Addr returns the bound listen address; valid only after Serve has
// started (see Ready).
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		return b.listener.Addr().String()
	}
	return b.addr
}

// Ready is closed once the listener is bound and the CAN subscription is
// active (or once Serve fails before binding; check ReadyErr in that case).
func (b *Bridge) Ready() <-chan struct{} { return b.readyCh }

// ReadyErr returns the error that prevented Serve from binding its
// listener, if any. Only meaningful after Ready is closed.
func (b *Bridge) ReadyErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readyErr
}

// Serve binds the listener, subscribes to the CAN bus, and accepts stream
// clients until ctx is cancelled. It blocks until shutdown completes.
func (b *Bridge) Serve(ctx context.Context) error {
	fail := func(err error) error {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		b.mu.Lock()
		b.readyErr = wrap
		b.mu.Unlock()
		close(b.readyCh)
		return wrap
	}
	if err := b.bus.Connect(); err != nil {
		return fail(err)
	}
	if err := b.bus.Subscribe(can.ListenerFunc(b.onCANFrame)); err != nil {
		return fail(err)
	}

	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fail(err)
	}
	b.mu.Lock()
	b.listener = ln
	b.mu.Unlock()
	close(b.readyCh)
	b.logger.Info("bridge_listen", "addr", ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-b.done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return b.shutdown()
			case <-b.done:
				return b.shutdown()
			default:
			}
			wrap := fmt.Errorf("%w: %v", ErrAccept, err)
			metrics.IncError(mapErrToMetric(wrap))
			b.logger.Warn("accept_failed", "error", err)
			continue
		}
		b.handleConn(conn)
	}
}

func (b *Bridge) handleConn(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	b.attach(conn, conn.RemoteAddr().String())
}

// AttachStream registers an already-open stream (an RS-232 port, a USB
// serial device, or anything else presenting a raw octet stream) as a
// bridge client identified by label. It runs for as long as the stream
// stays open or the bridge is shut down.
func (b *Bridge) AttachStream(conn io.ReadWriteCloser, label string) {
	b.attach(conn, label)
}

func (b *Bridge) attach(conn io.ReadWriteCloser, label string) {
	c := b.conns.NewClient()
	connLogger := b.logger.With("remote", label)
	connLogger.Info("client_connected")
	// Closing the client (kick policy, write failure, Shutdown) also closes
	// the stream, so a reader blocked in a read returns and removes it.
	go func() {
		<-c.Closed
		_ = conn.Close()
	}()
	b.startWriter(conn, c, connLogger)
	b.startReader(conn, c, connLogger)
}

// onCANFrame implements the CAN-ingress side: every frame received from the
// bus, regardless of device_id, is translated back to a UIMessage and
// broadcast to every connected stream client.
func (b *Bridge) onCANFrame(frame can.Frame) {
	id := simplecan.Unpack(frame.ID & can.EFFMask)
	msg := uimsg.Message{
		DeviceID:     id.ProducerID,
		FunctionCode: id.ControlWord & 0x7F,
		NeedAck:      id.ControlWord&0x80 != 0,
		NeedChecksum: true,
		Data:         append([]byte(nil), frame.Payload()...),
	}
	encoded := msg.Encode()
	b.conns.Broadcast(encoded[:])
}

// Shutdown stops accepting new connections, closes every client connection,
// disconnects the CAN bus and waits (up to ctx's deadline) for all
// per-connection goroutines to exit.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	ln := b.listener
	b.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	for _, c := range b.conns.Snapshot() {
		c.Close()
	}
	_ = b.bus.Disconnect()

	waitDone := make(chan struct{})
	go func() { b.wg.Wait(); close(waitDone) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrShutdown, ctx.Err())
	case <-waitDone:
		return nil
	}
}

func (b *Bridge) shutdown() error {
	return b.Shutdown(context.Background())
}

// Gateway returns the bridge's gateway responder instance.
func (b *Bridge) Gateway() *gateway.Gateway { return b.gateway }
