package main

import (
	"log/slog"

	"github.com/kstaniek/go-siyi-gimbal/internal/hub"
)

// initHub builds the subscriber hub of one session. A closed session closes
// its hub, so every connect attempt gets a fresh one.
func initHub(cfg *appConfig, l *slog.Logger) *hub.Hub {
	h := hub.New(l)
	h.OutBufSize = cfg.hubBuffer
	p, ok := hub.ParsePolicy(cfg.hubPolicy)
	if !ok {
		l.Warn("unknown_hub_policy", "policy", cfg.hubPolicy, "used", p.String())
	}
	h.Policy = p
	l.Debug("hub_config", "policy", h.Policy.String(), "buffer", h.OutBufSize)
	return h
}
