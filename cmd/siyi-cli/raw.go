package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/kstaniek/go-siyi-gimbal/internal/session"
	"github.com/kstaniek/go-siyi-gimbal/internal/siyi"
)

// parseCommand accepts a catalog name ("gimbal_attitude") or an opcode
// ("0x0d", "13").
func parseCommand(s string) (siyi.Command, error) {
	if c, ok := siyi.ParseCommand(s); ok {
		return c, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	return siyi.Command(n), nil
}

type rawView struct {
	Cmd     string `json:"cmd"`
	Seq     uint16 `json:"seq"`
	Payload string `json:"payload"`
	Record  any    `json:"record,omitempty"`
}

func rawCommand(ctx context.Context, c *cli.Context, s *session.Session) error {
	if c.NArg() < 1 {
		return errors.New("missing command")
	}
	cmd, err := parseCommand(c.Args().Get(0))
	if err != nil {
		return err
	}
	payload, err := siyi.PayloadFromHex(c.Args().Get(1))
	if err != nil {
		return err
	}
	req := siyi.NewRequest(cmd, payload)
	if r := c.String("reply"); r != "" {
		if req.Reply, err = parseCommand(r); err != nil {
			return err
		}
	}
	f, err := s.Do(ctx, req)
	if err != nil {
		return err
	}
	v := rawView{Cmd: f.Cmd.String(), Seq: f.Seq, Payload: fmt.Sprintf("%x", f.Payload)}
	if rec, perr := siyi.Parse(f); perr == nil {
		v.Record = rec
	}
	if v.Record != nil {
		return emit(c, v, "%s seq=%d payload=%s %+v", v.Cmd, v.Seq, v.Payload, v.Record)
	}
	return emit(c, v, "%s seq=%d payload=%s", v.Cmd, v.Seq, v.Payload)
}
