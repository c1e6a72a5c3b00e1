package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kstaniek/go-siyi-gimbal/internal/serial"
	"github.com/kstaniek/go-siyi-gimbal/internal/transport"
	"github.com/kstaniek/go-siyi-gimbal/internal/udp"
)

// serialTxQueue is the number of frames queued on the UART writer.
const serialTxQueue = 64

// openSerialPort is a hook for tests.
var openSerialPort = serial.Open

// openLink opens the device link selected by cfg.link.
func openLink(ctx context.Context, cfg *appConfig, l *slog.Logger) (transport.Link, error) {
	switch cfg.link {
	case "serial":
		p, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
		if err != nil {
			return nil, fmt.Errorf("open serial: %w", err)
		}
		l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
		return serial.NewLink(ctx, p, cfg.serialDev, serialTxQueue, l), nil
	case "udp":
		k, err := udp.Dial(ctx, cfg.addr,
			udp.WithLocalAddr(cfg.localAddr),
			udp.WithDSCP(cfg.dscp),
			udp.WithLogger(l),
		)
		if err != nil {
			return nil, fmt.Errorf("dial udp: %w", err)
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown link %q", cfg.link)
}
