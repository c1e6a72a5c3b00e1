// Command gimbal-bridge keeps a session to a SIYI gimbal connected, polls
// its attitude and state, and exposes metrics, readiness and a JSON status
// page over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
)

func main() {
	cfg, showVersion, err := parseFlags(os.Args[1:], os.Stderr)
	if showVersion {
		fmt.Printf("gimbal-bridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	l, logCloser := setupLogger(cfg)
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	limits := device.Builtin()
	if cfg.limitsFile != "" {
		t, err := device.LoadFile(cfg.limitsFile)
		if err != nil {
			l.Error("limits_file_error", "path", cfg.limitsFile, "error", err)
			return
		}
		limits = t
		l.Info("limits_loaded", "path", cfg.limitsFile, "models", len(limits))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	b := newBridge(cfg, limits, l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.run(ctx)
	}()

	// Ready while the gimbal session is connected.
	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil && b.Connected() })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr, l, map[string]http.Handler{"/status": statusHandler(b)})
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		if cfg.mdnsEnable {
			go advertise(ctx, cfg, l)
		}
	} else if cfg.mdnsEnable {
		l.Warn("mdns_needs_metrics_addr")
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	wg.Wait()
}

// advertise registers the HTTP endpoint over mDNS until ctx is done.
func advertise(ctx context.Context, cfg *appConfig, l *slog.Logger) {
	_, p, err := net.SplitHostPort(cfg.metricsAddr)
	port, perr := strconv.Atoi(p)
	if err != nil || perr != nil || port == 0 {
		l.Warn("mdns_bad_port", "addr", cfg.metricsAddr)
		return
	}
	cleanup, err := startMDNS(ctx, cfg, port)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return
	}
	l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
	<-ctx.Done()
	cleanup()
}
