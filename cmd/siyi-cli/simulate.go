package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/simulator"
)

func simulateCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	d := simulator.New(
		simulator.WithListenAddr(c.String("listen")),
		simulator.WithModel(c.String("model")),
		simulator.WithMaxRate(c.Float64("max-rate")),
		simulator.WithLogger(newLogger(c)),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()
	select {
	case <-d.Ready():
		fmt.Fprintf(c.App.Writer, "simulated gimbal (model %s) on %s\n", c.String("model"), d.Addr())
	case err := <-errCh:
		return err
	}
	return <-errCh
}
