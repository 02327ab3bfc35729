// Package serial opens an RS-232/USB-serial port as a raw octet stream, for
// use as a second stream-ingress transport alongside TCP. The UIMessage
// framing itself (internal/uimsg) needs nothing from the transport beyond
// a reader and a writer; it does not care whether bytes arrived over TCP
// or a physical line.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the named serial device at the given baud rate. readTimeout
// bounds how long a Read call blocks waiting for the next byte; it does
// not bound how long a full 16-byte UIMessage frame takes to arrive.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
