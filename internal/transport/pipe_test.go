package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipe_SendReceive(t *testing.T) {
	a, b := Pipe(4)
	defer a.Close()
	ctx := context.Background()
	msg := []byte{0x55, 0x66}
	if err := a.Send(ctx, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg[0] = 0 // sender's buffer is copied
	got, err := b.Receive(ctx, 100*time.Millisecond)
	if err != nil || len(got) != 2 || got[0] != 0x55 {
		t.Fatalf("receive: %v % X", err, got)
	}
	if _, err := b.Receive(ctx, 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestPipe_Close(t *testing.T) {
	a, b := Pipe(1)
	_ = b.Close()
	if err := a.Send(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := a.Receive(context.Background(), time.Second); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPipe_Overflow(t *testing.T) {
	a, _ := Pipe(1)
	defer a.Close()
	ctx := context.Background()
	_ = a.Send(ctx, []byte{1})
	if err := a.Send(ctx, []byte{2}); !errors.Is(err, ErrTxOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

type nopLink struct{}

func (nopLink) Send(context.Context, []byte) error { return nil }
func (nopLink) Receive(context.Context, time.Duration) ([]byte, error) {
	return nil, ErrTimeout
}
func (nopLink) Close() error { return nil }

func TestIsDatagram(t *testing.T) {
	a, b := Pipe(1)
	defer a.Close()
	if !IsDatagram(a) || !IsDatagram(b) {
		t.Fatal("pipe ends must keep datagram boundaries")
	}
	if IsDatagram(nopLink{}) {
		t.Fatal("links without Datagrams are byte streams")
	}
}
