package main

import (
	"fmt"
	"log/slog"

	"github.com/uirobot/uimbridge/internal/can"
	"github.com/uirobot/uimbridge/internal/socketcan"
	"github.com/uirobot/uimbridge/internal/virtualcan"
)

// buildCANBus selects the CAN bus backend named by cfg. "virtual" needs no
// hardware and is the default, so the bridge is usable out of the box. The
// virtual network is not exposed outside this function, so the bridge's
// endpoint is its only member: frames sent to it reach no other node.
func buildCANBus(cfg *appConfig, l *slog.Logger) (can.Bus, func(), error) {
	switch cfg.canBackend {
	case "socketcan":
		bus := socketcan.NewBus(cfg.canIf)
		l.Info("can_backend_selected", "backend", "socketcan", "if", cfg.canIf)
		return bus, func() {}, nil
	case "virtual":
		network := virtualcan.NewNetwork()
		bus := network.Open()
		l.Info("can_backend_selected", "backend", "virtual")
		return bus, func() { network.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown can-backend %q (use socketcan|virtual)", cfg.canBackend)
	}
}
