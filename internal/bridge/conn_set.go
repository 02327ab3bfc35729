package bridge

import (
	"sync"

	"github.com/uirobot/uimbridge/internal/logging"
	"github.com/uirobot/uimbridge/internal/metrics"
)

// BackpressurePolicy selects what happens when a client's outbound queue is
// full at broadcast time.
type BackpressurePolicy int

const (
	// PolicyDrop silently discards the frame for the slow client.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick disconnects the slow client.
	PolicyKick
)

// Client is one entry in the bridge's ConnectionSet: a queue of raw
// 16-byte UIMessage frames waiting to be written to one stream connection.
type Client struct {
	Out       chan []byte
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close marks the client closed; idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

// ConnectionSet is the mutable set of currently-attached stream clients
// used for CAN-to-stream fan-out. Safe for concurrent use: the listener
// inserts on accept, readers remove on EOF/error, and CAN ingress only
// reads a snapshot.
type ConnectionSet struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// NewConnectionSet creates an empty set with the given per-client output
// buffer size and backpressure policy.
func NewConnectionSet(outBufSize int, policy BackpressurePolicy) *ConnectionSet {
	if outBufSize <= 0 {
		outBufSize = 64
	}
	return &ConnectionSet{
		clients:    make(map[*Client]struct{}),
		OutBufSize: outBufSize,
		Policy:     policy,
	}
}

// NewClient allocates and registers a client with this set.
func (s *ConnectionSet) NewClient() *Client {
	c := &Client{Out: make(chan []byte, s.OutBufSize), Closed: make(chan struct{})}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	cur := len(s.clients)
	s.mu.Unlock()
	metrics.SetHubClients(cur)
	return c
}

// Remove detaches a client from the set; safe to call multiple times.
func (s *ConnectionSet) Remove(c *Client) {
	s.mu.Lock()
	_, existed := s.clients[c]
	delete(s.clients, c)
	cur := len(s.clients)
	s.mu.Unlock()
	c.Close()
	if existed {
		metrics.SetHubClients(cur)
		logging.L().Debug("client_removed", "remaining", cur)
	}
}

// Snapshot returns a point-in-time copy of the connected clients.
func (s *ConnectionSet) Snapshot() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of currently connected clients.
func (s *ConnectionSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast writes frame to every connected client's queue, applying the
// configured backpressure policy to clients whose queue is full. A frame
// is considered fully handled only once every current client has been
// offered it, matching the "fully written before the next is handled"
// ordering guarantee at the broadcast call site.
func (s *ConnectionSet) Broadcast(frame []byte) {
	clients := s.Snapshot()
	metrics.SetBroadcastFanout(len(clients))
	for _, c := range clients {
		select {
		case c.Out <- frame:
		default:
			if s.Policy == PolicyKick {
				metrics.IncHubKick()
				c.Close()
			} else {
				metrics.IncHubDrop()
			}
		}
	}
}
