package main

import (
	"log/slog"

	"github.com/uirobot/uimbridge/internal/bridge"
	"github.com/uirobot/uimbridge/internal/serial"
)

// openSerialPort is a seam for tests.
var openSerialPort = serial.Open

// attachSerialIngress opens the configured serial port and registers it
// with the bridge as a second stream client, carrying UIMessage frames the
// same way a TCP connection would.
func attachSerialIngress(cfg *appConfig, br *bridge.Bridge, l *slog.Logger) (func(), error) {
	port, err := openSerialPort(cfg.serialDev, cfg.serialBaud, cfg.serialReadTO)
	if err != nil {
		return nil, err
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.serialBaud)
	br.AttachStream(port, cfg.serialDev)
	return func() { _ = port.Close() }, nil
}
