package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-siyi-gimbal/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"tx_frames", snap.TxFrames,
					"rx_frames", snap.RxFrames,
					"rx_bytes", snap.RxBytes,
					"malformed", snap.Malformed,
					"timeouts", snap.Timeouts,
					"mismatch", snap.Mismatch,
					"unknown", snap.Unknown,
					"seq_wraps", snap.SeqWraps,
					"hub_drops", snap.HubDrops,
					"hub_clients", snap.HubClients,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
