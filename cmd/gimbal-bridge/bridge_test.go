package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/device"
	"github.com/kstaniek/go-siyi-gimbal/internal/logging"
	"github.com/kstaniek/go-siyi-gimbal/internal/simulator"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
)

func fastConfig(addr string) *appConfig {
	cfg := defaultConfig()
	cfg.addr = addr
	cfg.recvTimeout = 50 * time.Millisecond
	cfg.probeInterval = 30 * time.Millisecond
	cfg.attitudePeriod = 20 * time.Millisecond
	cfg.infoPeriod = 50 * time.Millisecond
	cfg.maxStale = 2
	cfg.connectTimeout = 300 * time.Millisecond
	return cfg
}

func startSim(t *testing.T, opts ...simulator.Option) *simulator.Device {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d := simulator.New(opts...)
	done := make(chan struct{})
	go func() { defer close(done); _ = d.Serve(ctx) }()
	t.Cleanup(func() { cancel(); <-done })
	select {
	case <-d.Ready():
	case <-time.After(time.Second):
		t.Fatal("simulator not ready")
	}
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBridge_ConnectsAndReconnects(t *testing.T) {
	sleepFn = func(ctx context.Context, d time.Duration) { time.Sleep(10 * time.Millisecond) }
	defer func() { sleepFn = defaultSleep }()

	d := startSim(t, simulator.WithModel("6B"))
	b := newBridge(fastConfig(d.Addr()), device.Builtin(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); b.run(ctx) }()
	defer func() { cancel(); <-done }()

	waitFor(t, "first connect", b.Connected)
	waitFor(t, "attitude poll", func() bool { return b.Session().Snapshot().Attitude != nil })

	d.SetMuted(true)
	waitFor(t, "loss", func() bool { return !b.Connected() })
	d.SetMuted(false)
	waitFor(t, "reconnect", func() bool { return b.Connected() && b.connects.Load() >= 2 })
}

func TestBridge_StatusPage(t *testing.T) {
	sleepFn = func(ctx context.Context, d time.Duration) { time.Sleep(10 * time.Millisecond) }
	defer func() { sleepFn = defaultSleep }()

	b := newBridge(fastConfig("127.0.0.1:1"), device.Builtin(), logging.Discard())
	rec := httptest.NewRecorder()
	statusHandler(b).ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	var v statusView
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.State != "disconnected" || v.Session != "" {
		t.Fatalf("unexpected status before first attempt: %+v", v)
	}

	d := startSim(t, simulator.WithModel("6B"))
	b = newBridge(fastConfig(d.Addr()), device.Builtin(), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); b.run(ctx) }()
	defer func() { cancel(); <-done }()
	waitFor(t, "connect", b.Connected)
	waitFor(t, "info poll", func() bool {
		snap := b.Session().Snapshot()
		return snap.Attitude != nil && snap.GimbalInfo != nil && snap.HardwareID != nil
	})

	rec = httptest.NewRecorder()
	statusHandler(b).ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	v = statusView{}
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.State != "connected" || v.Model != "ZR10" || v.TypeCode != "6B" {
		t.Fatalf("unexpected status: %+v", v)
	}
	if v.CodeBoard != "v0.3.1" || v.Attitude == nil || v.Info == nil || v.Connects != 1 {
		t.Fatalf("missing records: %+v", v)
	}
}

func TestBridge_BackoffProgression(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []time.Duration
	sleepFn = func(_ context.Context, d time.Duration) {
		mu.Lock()
		if len(seen) < 8 {
			seen = append(seen, d)
			if len(seen) == 8 {
				cancel()
			}
		}
		mu.Unlock()
	}
	defer func() { sleepFn = defaultSleep }()

	b := newBridge(fastConfig("127.0.0.1:1"), device.Builtin(), logging.Discard())
	opens := 0
	b.open = func(context.Context) (transport.Link, error) {
		opens++
		return nil, errors.New("no such device")
	}
	b.run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 8 || opens != 8 {
		t.Fatalf("expected 8 attempts, got %d sleeps %d opens", len(seen), opens)
	}
	if seen[0] != reconnectBackoffMin {
		t.Fatalf("expected first backoff %v got %v", reconnectBackoffMin, seen[0])
	}
	prev := seen[0]
	for i, d := range seen {
		if d < prev {
			t.Fatalf("backoff decreased at %d: prev=%v cur=%v", i, prev, d)
		}
		if d > reconnectBackoffMax {
			t.Fatalf("backoff exceeded max at %d: %v > %v", i, d, reconnectBackoffMax)
		}
		prev = d
	}
	if seen[len(seen)-1] != reconnectBackoffMax {
		t.Fatalf("expected backoff to saturate at %v, got %v", reconnectBackoffMax, seen[len(seen)-1])
	}
}

func TestBridge_ConnectFailureBacksOff(t *testing.T) {
	var mu sync.Mutex
	var seen []time.Duration
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleepFn = func(_ context.Context, d time.Duration) {
		mu.Lock()
		seen = append(seen, d)
		if len(seen) == 2 {
			cancel()
		}
		mu.Unlock()
	}
	defer func() { sleepFn = defaultSleep }()

	d := startSim(t)
	d.SetMuted(true)
	cfg := fastConfig(d.Addr())
	cfg.connectTimeout = 60 * time.Millisecond
	b := newBridge(cfg, device.Builtin(), logging.Discard())
	b.run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[1] != 2*reconnectBackoffMin {
		t.Fatalf("expected doubling backoff after connect timeouts, got %v", seen)
	}
	if b.Connected() {
		t.Fatalf("muted device must not connect")
	}
}
