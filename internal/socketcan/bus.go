//go:build linux

package socketcan

import (
	"context"
	"errors"
	"sync"

	"github.com/uirobot/uimbridge/internal/can"
	"github.com/uirobot/uimbridge/internal/metrics"
)

// Bus adapts a raw SocketCAN interface to can.Bus: Connect opens the
// device and starts its receive loop, Send funnels writes through a
// single goroutine via TXWriter, and Subscribe registers the one listener
// fed by the receive loop.
type Bus struct {
	iface string

	mu       sync.Mutex
	dev      Dev
	tw       *TXWriter
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listener can.Listener
}

var _ can.Bus = (*Bus)(nil)

// openDevice is a seam for tests.
var openDevice = func(iface string) (Dev, error) { return Open(iface) }

// NewBus creates a Bus bound to the named SocketCAN interface (e.g. "can0").
// The interface is not opened until Connect is called.
func NewBus(iface string) *Bus { return &Bus{iface: iface} }

// Connect opens the SocketCAN socket and starts reading frames into
// whatever listener Subscribe has registered (or will register; frames
// arriving before Subscribe are dropped).
func (b *Bus) Connect() error {
	dev, err := openDevice(b.iface)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.dev = dev
	b.tw = NewTXWriter(ctx, dev, 1024)
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go b.readLoop(ctx, dev)
	return nil
}

func (b *Bus) readLoop(ctx context.Context, dev Dev) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var fr can.Frame
		if err := dev.ReadFrame(&fr); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.IncError(metrics.ErrSocketCANRead)
			continue
		}
		metrics.IncSocketCANRx()
		b.mu.Lock()
		l := b.listener
		b.mu.Unlock()
		if l != nil {
			l.Handle(fr)
		}
	}
}

// Disconnect stops the receive loop and closes the device.
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	cancel := b.cancel
	tw := b.tw
	dev := b.dev
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if tw != nil {
		tw.Close()
	}
	b.wg.Wait()
	if dev != nil {
		return dev.Close()
	}
	return nil
}

// Send queues frame for asynchronous transmission.
func (b *Bus) Send(frame can.Frame) error {
	b.mu.Lock()
	tw := b.tw
	b.mu.Unlock()
	if tw == nil {
		return errors.New("socketcan: bus not connected")
	}
	return tw.SendFrame(frame)
}

// Subscribe registers the listener invoked for every frame the receive
// loop reads from the interface.
func (b *Bus) Subscribe(listener can.Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = listener
	return nil
}
