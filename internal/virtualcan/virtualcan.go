// Package virtualcan provides an in-memory CAN network for tests and
// simulations: any number of endpoints opened on the same Network exchange
// can.Frame values without a real CAN interface.
package virtualcan

import (
	"errors"
	"sync"

	"github.com/uirobot/uimbridge/internal/can"
)

// ErrClosed is returned by Send calls made against a closed Network or a
// disconnected endpoint.
var ErrClosed = errors.New("virtualcan: closed")

// Network is the shared bus. Endpoints opened from the same Network
// exchange frames with each other, mirroring a real CAN segment where
// every transceiver hears every other transceiver's transmissions.
type Network struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*Endpoint]struct{}
}

// NewNetwork creates an empty virtual CAN segment.
func NewNetwork() *Network {
	return &Network{endpoints: make(map[*Endpoint]struct{})}
}

// Open creates a new endpoint attached to the network. The endpoint
// implements can.Bus and can be handed directly to a bridge or test
// harness.
func (n *Network) Open() *Endpoint {
	ep := &Endpoint{network: n}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.endpoints[ep] = struct{}{}
	}
	return ep
}

// Close detaches and disconnects every endpoint on the network.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ep := range n.endpoints {
		ep.detach()
	}
	n.endpoints = nil
}

// Endpoint is one node's view of a Network; it satisfies can.Bus.
type Endpoint struct {
	network *Network

	mu        sync.Mutex
	connected bool
	listener  can.Listener
}

var _ can.Bus = (*Endpoint)(nil)

// Connect marks the endpoint ready to send. Receiving does not depend on
// it: every endpoint still attached to the network is delivered frames.
func (e *Endpoint) Connect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = true
	return nil
}

// Disconnect detaches the endpoint from its network; Send after
// Disconnect fails with ErrClosed.
func (e *Endpoint) Disconnect() error {
	e.network.mu.Lock()
	defer e.network.mu.Unlock()
	e.detach()
	return nil
}

func (e *Endpoint) detach() {
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	delete(e.network.endpoints, e)
}

// Subscribe registers the listener invoked for every frame sent by any
// other endpoint on the network. Only one listener is supported at a time,
// matching can.Bus's single-consumer contract.
func (e *Endpoint) Subscribe(listener can.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = listener
	return nil
}

// Send broadcasts frame to every other endpoint currently open on the
// network. Delivery is synchronous and in Send's calling goroutine; slow
// listeners should hand off to their own goroutine.
func (e *Endpoint) Send(frame can.Frame) error {
	e.mu.Lock()
	connected := e.connected
	e.mu.Unlock()
	if !connected {
		return ErrClosed
	}

	e.network.mu.RLock()
	if e.network.closed {
		e.network.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*Endpoint, 0, len(e.network.endpoints))
	for ep := range e.network.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.network.mu.RUnlock()

	for _, t := range targets {
		t.mu.Lock()
		l := t.listener
		t.mu.Unlock()
		if l != nil {
			l.Handle(frame)
		}
	}
	return nil
}
