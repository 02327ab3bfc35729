package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	listenAddr  string
	logFormat   string
	logLevel    string
	metricsAddr string

	connBuffer int
	connPolicy string
	maxClients int
	readTO     time.Duration

	canBackend string
	canIf      string

	serialEnable bool
	serialDev    string
	serialBaud   int
	serialReadTO time.Duration

	nodeID  int
	groupID int
	model   string

	logMetricsEvery time.Duration

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	listen := flag.String("listen", ":8888", "TCP listen address for UIMessage stream clients")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")

	connBuffer := flag.Int("conn-buffer", 512, "Per-client outbound buffer (frames)")
	connPolicy := flag.String("conn-policy", "drop", "Backpressure policy for slow stream clients: drop|kick")
	maxClients := flag.Int("max-clients", 0, "Maximum simultaneous stream clients (0 = unlimited); validated only, the bridge does not enforce it")
	readTO := flag.Duration("client-read-timeout", 60*time.Second, "Per-connection read deadline; validated only, the bridge sets no read deadline")

	canBackend := flag.String("can-backend", "virtual", "CAN backend: socketcan|virtual (virtual needs no hardware)")
	canIf := flag.String("can-if", "can0", "SocketCAN interface (when --can-backend=socketcan)")

	serialEnable := flag.Bool("serial-enable", false, "Also accept UIMessage frames over an RS-232/USB-serial port")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device path (when --serial-enable)")
	serialBaud := flag.Int("serial-baud", 115200, "Serial baud rate")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout")

	nodeID := flag.Int("node-id", 2, "Simulated gateway node ID")
	groupID := flag.Int("group-id", -1, "Simulated gateway group ID (defaults to node-id)")
	model := flag.String("model", "UIM2523", "Simulated gateway model: UIM2513|UIM2522|UIM2523")

	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")

	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default uimbridge-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.listenAddr = *listen
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.connBuffer = *connBuffer
	cfg.connPolicy = *connPolicy
	cfg.maxClients = *maxClients
	cfg.readTO = *readTO
	cfg.canBackend = *canBackend
	cfg.canIf = *canIf
	cfg.serialEnable = *serialEnable
	cfg.serialDev = *serialDev
	cfg.serialBaud = *serialBaud
	cfg.serialReadTO = *serialReadTO
	cfg.nodeID = *nodeID
	cfg.groupID = *groupID
	cfg.model = *model
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation. It does not attempt to open
// devices or listeners, only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.canBackend {
	case "socketcan", "virtual":
	default:
		return fmt.Errorf("invalid can-backend: %s", c.canBackend)
	}
	switch c.connPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid conn-policy: %s", c.connPolicy)
	}
	if c.connBuffer <= 0 {
		return fmt.Errorf("conn-buffer must be > 0 (got %d)", c.connBuffer)
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	if c.readTO <= 0 {
		return fmt.Errorf("client-read-timeout must be > 0")
	}
	if c.nodeID < 0 || c.nodeID > 0x7F {
		return fmt.Errorf("node-id must be in [0,127] (got %d)", c.nodeID)
	}
	if c.groupID > 0x7F {
		return fmt.Errorf("group-id must be <= 127 (got %d)", c.groupID)
	}
	switch c.model {
	case "UIM2513", "UIM2522", "UIM2523":
	default:
		return fmt.Errorf("invalid model: %s", c.model)
	}
	if c.serialEnable {
		if c.serialBaud <= 0 {
			return fmt.Errorf("serial-baud must be > 0 (got %d)", c.serialBaud)
		}
		if c.serialReadTO <= 0 {
			return fmt.Errorf("serial-read-timeout must be > 0")
		}
	}
	return nil
}

// applyEnvOverrides maps CAN_BRIDGE_* environment variables onto cfg unless
// the corresponding flag was explicitly set (flag wins).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if _, ok := set["listen"]; !ok {
		if v, ok := get("CAN_BRIDGE_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CAN_BRIDGE_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CAN_BRIDGE_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CAN_BRIDGE_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["conn-buffer"]; !ok {
		if v, ok := get("CAN_BRIDGE_CONN_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.connBuffer = n
			} else if err != nil {
				setErr(fmt.Errorf("invalid CAN_BRIDGE_CONN_BUFFER: %w", err))
			}
		}
	}
	if _, ok := set["conn-policy"]; !ok {
		if v, ok := get("CAN_BRIDGE_CONN_POLICY"); ok && v != "" {
			c.connPolicy = v
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("CAN_BRIDGE_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil {
				setErr(fmt.Errorf("invalid CAN_BRIDGE_MAX_CLIENTS: %w", err))
			}
		}
	}
	if _, ok := set["can-backend"]; !ok {
		if v, ok := get("CAN_BRIDGE_BACKEND"); ok && v != "" {
			c.canBackend = v
		}
	}
	if _, ok := set["can-if"]; !ok {
		if v, ok := get("CAN_BRIDGE_IF"); ok && v != "" {
			c.canIf = v
		}
	}
	if _, ok := set["node-id"]; !ok {
		if v, ok := get("CAN_BRIDGE_NODE_ID"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.nodeID = n
			} else {
				setErr(fmt.Errorf("invalid CAN_BRIDGE_NODE_ID: %w", err))
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CAN_BRIDGE_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CAN_BRIDGE_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("CAN_BRIDGE_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil {
				setErr(fmt.Errorf("invalid CAN_BRIDGE_LOG_METRICS_INTERVAL: %w", err))
			}
		}
	}
	return firstErr
}
