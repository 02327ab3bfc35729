//go:build !linux

package socketcan

import (
	"errors"

	"github.com/uirobot/uimbridge/internal/can"
)

// ErrTxOverflow is provided for non-linux builds so dependent code compiles.
var ErrTxOverflow = errors.New("socketcan tx overflow (stub)")

var errUnsupported = errors.New("socketcan: not supported on this platform")

// Bus is a non-functional stand-in on platforms without AF_CAN sockets.
// Every operation fails; build for linux to get a working SocketCAN bus.
type Bus struct{ iface string }

var _ can.Bus = (*Bus)(nil)

// NewBus returns a Bus that fails to Connect on non-linux platforms.
func NewBus(iface string) *Bus { return &Bus{iface: iface} }

func (b *Bus) Connect() error               { return errUnsupported }
func (b *Bus) Disconnect() error            { return nil }
func (b *Bus) Send(can.Frame) error         { return errUnsupported }
func (b *Bus) Subscribe(can.Listener) error { return nil }
