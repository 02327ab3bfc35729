// Command bridge runs the UIROBOT gateway simulator and the concurrent
// fan-in/fan-out bridge between stream clients and a CAN bus.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/uirobot/uimbridge/internal/bridge"
	"github.com/uirobot/uimbridge/internal/gateway"
	"github.com/uirobot/uimbridge/internal/metrics"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("uimbridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	bus, busCleanup, err := buildCANBus(cfg, l)
	if err != nil {
		l.Error("can_backend_init_error", "error", err)
		os.Exit(1)
	}
	defer busCleanup()

	groupID := cfg.nodeID
	if cfg.groupID >= 0 {
		groupID = cfg.groupID
	}
	gw := gateway.New(uint8(cfg.nodeID), gateway.WithGroupID(uint8(groupID)), gateway.WithModel(cfg.model))
	l.Info("gateway_config", "node_id", cfg.nodeID, "group_id", groupID, "model", cfg.model)

	policy := bridge.PolicyDrop
	if cfg.connPolicy == "kick" {
		policy = bridge.PolicyKick
	}
	br := bridge.New(bus, gw,
		bridge.WithListenAddr(cfg.listenAddr),
		bridge.WithConnectionSet(bridge.NewConnectionSet(cfg.connBuffer, policy)),
		bridge.WithLogger(l),
	)

	var serialCleanup func()
	if cfg.serialEnable {
		cleanup, err := attachSerialIngress(cfg, br, l)
		if err != nil {
			l.Error("serial_init_error", "error", err)
			os.Exit(1)
		}
		serialCleanup = cleanup
	}

	go func() {
		if err := br.Serve(ctx); err != nil {
			l.Error("bridge_serve_error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-br.Ready():
		case <-ctx.Done():
			return
		}
		addr := br.Addr()
		portNum := 0
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 {
			if i := strings.LastIndex(addr, ":"); i >= 0 {
				if pn, perr := strconv.Atoi(addr[i+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-br.Ready():
		default:
			return false
		}
		return ctx.Err() == nil && br.ReadyErr() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if serialCleanup != nil {
		serialCleanup()
	}
	wg.Wait()
}
