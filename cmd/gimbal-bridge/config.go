package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/serial"
	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
	"github.com/kstaniek/go-siyi-gimbal/internal/udp"
)

type appConfig struct {
	link            string
	addr            string
	localAddr       string
	dscp            int
	serialDev       string
	baud            int
	serialReadTO    time.Duration
	mode            string
	recvTimeout     time.Duration
	probeInterval   time.Duration
	attitudePeriod  time.Duration
	infoPeriod      time.Duration
	maxStale        int
	connectTimeout  time.Duration
	rateLimit       float64
	streamHz        int
	limitsFile      string
	logFormat       string
	logLevel        string
	logFile         string
	logMaxSizeMB    int
	logMaxBackups   int
	metricsAddr     string
	hubBuffer       int
	hubPolicy       string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func defaultConfig() *appConfig {
	return &appConfig{
		link:           "udp",
		addr:           udp.DefaultAddr,
		serialDev:      "/dev/ttyUSB0",
		baud:           serial.DefaultBaud,
		serialReadTO:   serial.DefaultReadTimeout,
		mode:           "sync",
		recvTimeout:    session.DefaultReceiveTimeout,
		probeInterval:  session.DefaultProbeInterval,
		attitudePeriod: session.DefaultAttitudePeriod,
		infoPeriod:     session.DefaultInfoPeriod,
		maxStale:       session.DefaultMaxStaleProbes,
		connectTimeout: 10 * time.Second,
		logFormat:      "text",
		logLevel:       "info",
		logMaxSizeMB:   20,
		logMaxBackups:  3,
		hubBuffer:      256,
		hubPolicy:      "drop",
	}
}

// parseFlags parses args (without the program name). Environment variables
// named SIYI_BRIDGE_<FLAG> fill in any flag not given explicitly.
func parseFlags(args []string, stderr io.Writer) (*appConfig, bool, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("gimbal-bridge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.link, "link", cfg.link, "Device link: udp|serial")
	fs.StringVar(&cfg.addr, "addr", cfg.addr, "Gimbal UDP address (host:port)")
	fs.StringVar(&cfg.localAddr, "local-addr", "", "Local UDP address to bind (empty = any)")
	fs.IntVar(&cfg.dscp, "dscp", 0, "DSCP value for outbound UDP (0-63, Linux only)")
	fs.StringVar(&cfg.serialDev, "serial", cfg.serialDev, "Serial device path (when --link=serial)")
	fs.IntVar(&cfg.baud, "baud", cfg.baud, "Serial baud rate")
	fs.DurationVar(&cfg.serialReadTO, "serial-read-timeout", cfg.serialReadTO, "Serial read timeout")
	fs.StringVar(&cfg.mode, "mode", cfg.mode, "Reply handling: sync|stream")
	fs.DurationVar(&cfg.recvTimeout, "recv-timeout", cfg.recvTimeout, "Per-request reply timeout")
	fs.DurationVar(&cfg.probeInterval, "probe-interval", cfg.probeInterval, "Liveness probe period")
	fs.DurationVar(&cfg.attitudePeriod, "attitude-period", cfg.attitudePeriod, "Attitude poll period (0 disables)")
	fs.DurationVar(&cfg.infoPeriod, "info-period", cfg.infoPeriod, "Gimbal info poll period (0 disables)")
	fs.IntVar(&cfg.maxStale, "max-stale", cfg.maxStale, "Stale liveness probes before the session is dropped")
	fs.DurationVar(&cfg.connectTimeout, "connect-timeout", cfg.connectTimeout, "Max wait per connect attempt")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 0, "Max outbound frames per second (0 = unlimited)")
	fs.IntVar(&cfg.streamHz, "stream-hz", 0, "Ask the gimbal to push attitude at this rate once connected (stream mode)")
	fs.StringVar(&cfg.limitsFile, "limits-file", "", "YAML file with extra device limits")
	fs.StringVar(&cfg.logFormat, "log-format", cfg.logFormat, "Log format: text|json")
	fs.StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.logFile, "log-file", "", "Also write logs to this rotated file")
	fs.IntVar(&cfg.logMaxSizeMB, "log-max-size", cfg.logMaxSizeMB, "Log file size in MB before rotation")
	fs.IntVar(&cfg.logMaxBackups, "log-max-backups", cfg.logMaxBackups, "Rotated log files to keep")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.IntVar(&cfg.hubBuffer, "hub-buffer", cfg.hubBuffer, "Per-subscriber frame buffer")
	fs.StringVar(&cfg.hubPolicy, "hub-policy", cfg.hubPolicy, "Backpressure policy: drop|kick")
	fs.DurationVar(&cfg.logMetricsEvery, "log-metrics-interval", 0, "If >0, periodically log metrics counters")
	fs.BoolVar(&cfg.mdnsEnable, "mdns-enable", false, "Advertise the metrics endpoint over mDNS")
	fs.StringVar(&cfg.mdnsName, "mdns-name", "", "mDNS instance name (default siyi-bridge-<hostname>)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, *showVersion, fmt.Errorf("environment override error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, *showVersion, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, *showVersion, nil
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open devices or listeners.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.link {
	case "udp":
		if c.addr == "" {
			return errors.New("addr must be set for the udp link")
		}
	case "serial":
		if c.serialDev == "" {
			return errors.New("serial must be set for the serial link")
		}
	default:
		return fmt.Errorf("invalid link: %s", c.link)
	}
	if _, ok := session.ParseMode(c.mode); !ok {
		return fmt.Errorf("invalid mode: %s", c.mode)
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
	switch c.hubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	if c.dscp < 0 || c.dscp > 63 {
		return fmt.Errorf("dscp must be within 0-63 (got %d)", c.dscp)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return errors.New("serial-read-timeout must be > 0")
	}
	if c.recvTimeout <= 0 {
		return errors.New("recv-timeout must be > 0")
	}
	if c.probeInterval <= 0 {
		return errors.New("probe-interval must be > 0")
	}
	if c.attitudePeriod < 0 || c.infoPeriod < 0 {
		return errors.New("poll periods must be >= 0")
	}
	if c.maxStale <= 0 {
		return fmt.Errorf("max-stale must be > 0 (got %d)", c.maxStale)
	}
	if c.connectTimeout <= 0 {
		return errors.New("connect-timeout must be > 0")
	}
	if c.rateLimit < 0 {
		return errors.New("rate-limit must be >= 0")
	}
	if c.streamHz != 0 {
		if c.mode != "stream" {
			return errors.New("stream-hz requires mode=stream")
		}
		if _, err := siyi.DataStreamPayload(siyi.StreamAttitude, c.streamHz); err != nil {
			return fmt.Errorf("stream-hz: %w", err)
		}
	}
	if c.logFile != "" && (c.logMaxSizeMB <= 0 || c.logMaxBackups < 0) {
		return errors.New("log-max-size must be > 0 and log-max-backups >= 0")
	}
	return nil
}

// applyEnvOverrides maps SIYI_BRIDGE_* environment variables to config
// fields unless the corresponding flag was explicitly set. Empty values are
// ignored; the first malformed value is reported.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(flagName string) (string, string, bool) {
		if _, ok := set[flagName]; ok {
			return "", "", false
		}
		key := "SIYI_BRIDGE_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
		v, ok := os.LookupEnv(key)
		v = strings.TrimSpace(v)
		return key, v, ok && v != ""
	}
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	str := func(flagName string, dst *string) {
		if _, v, ok := get(flagName); ok {
			*dst = v
		}
	}
	num := func(flagName string, dst *int) {
		if key, v, ok := get(flagName); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				fail(key, err)
			}
		}
	}
	dur := func(flagName string, dst *time.Duration) {
		if key, v, ok := get(flagName); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else {
				fail(key, err)
			}
		}
	}
	boolean := func(flagName string, dst *bool) {
		if key, v, ok := get(flagName); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			default:
				fail(key, fmt.Errorf("not a boolean: %q", v))
			}
		}
	}

	str("link", &c.link)
	str("addr", &c.addr)
	str("local-addr", &c.localAddr)
	num("dscp", &c.dscp)
	str("serial", &c.serialDev)
	num("baud", &c.baud)
	dur("serial-read-timeout", &c.serialReadTO)
	str("mode", &c.mode)
	dur("recv-timeout", &c.recvTimeout)
	dur("probe-interval", &c.probeInterval)
	dur("attitude-period", &c.attitudePeriod)
	dur("info-period", &c.infoPeriod)
	num("max-stale", &c.maxStale)
	dur("connect-timeout", &c.connectTimeout)
	if key, v, ok := get("rate-limit"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.rateLimit = f
		} else {
			fail(key, err)
		}
	}
	num("stream-hz", &c.streamHz)
	str("limits-file", &c.limitsFile)
	str("log-format", &c.logFormat)
	str("log-level", &c.logLevel)
	str("log-file", &c.logFile)
	num("log-max-size", &c.logMaxSizeMB)
	num("log-max-backups", &c.logMaxBackups)
	str("metrics-addr", &c.metricsAddr)
	num("hub-buffer", &c.hubBuffer)
	str("hub-policy", &c.hubPolicy)
	dur("log-metrics-interval", &c.logMetricsEvery)
	boolean("mdns-enable", &c.mdnsEnable)
	str("mdns-name", &c.mdnsName)
	return firstErr
}
