package dispatch

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rs/zerolog"

	"ionic/internal/codec"
	"ionic/internal/command"
	"ionic/internal/conn"
	"ionic/internal/protocol"
	"ionic/internal/text"
	"ionic/internal/wire"
)

func newConn(t *testing.T, states ...protocol.State) *conn.Connection {
	t.Helper()
	server, client := net.Pipe()
	c := conn.New(context.Background(), 1, server, protocol.Default(), conn.DefaultOptions(), zerolog.Nop())
	t.Cleanup(func() {
		c.Close("test done")
		client.Close()
	})
	for _, s := range states {
		if err := c.SetState(s); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func newDispatcher() *Dispatcher {
	return New(protocol.Default(), codec.DefaultLimits(), &Services{}, zerolog.Nop())
}

func swingFrame(hand int32) wire.Frame {
	e := codec.NewEncoder()
	(&protocol.Swing{Hand: hand}).Encode(e)
	return wire.Frame{ID: protocol.C2SSwing, Payload: e.Bytes()}
}

// TestSwingDispatchedOnce verifies a play swing reaches its handler exactly
// once with the decoded value
func TestSwingDispatchedOnce(t *testing.T) {
	d := newDispatcher()
	calls := 0
	var got int32 = -1
	err := On(d, protocol.StatePlay, "swing", func(ctx *Context, p *protocol.Swing) error {
		calls++
		got = p.Hand
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	c := newConn(t, protocol.StateLogin, protocol.StatePlay)
	if err := d.Dispatch(context.Background(), c, command.Server(), swingFrame(1)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 1 || got != 1 {
		t.Errorf("calls = %d hand = %d", calls, got)
	}
}

// TestPlayPacketRejectedInLogin verifies a play id sent during login fails
// as unknown and runs no handler
func TestPlayPacketRejectedInLogin(t *testing.T) {
	d := newDispatcher()
	calls := 0
	On(d, protocol.StatePlay, "swing", func(ctx *Context, p *protocol.Swing) error {
		calls++
		return nil
	})

	c := newConn(t, protocol.StateLogin)
	err := d.Dispatch(context.Background(), c, command.Server(), swingFrame(0))
	if k, _ := protocol.KindOf(err); k != protocol.KindUnknownPacket {
		t.Fatalf("err = %v, want unknown packet", err)
	}
	if !protocol.IsFatal(err) {
		t.Error("unknown packet should be fatal")
	}
	if calls != 0 {
		t.Errorf("handler ran %d times", calls)
	}
}

// TestDecodeErrorReturned verifies malformed payloads are fatal
func TestDecodeErrorReturned(t *testing.T) {
	d := newDispatcher()
	c := newConn(t, protocol.StateLogin, protocol.StatePlay)
	err := d.Dispatch(context.Background(), c, command.Server(), wire.Frame{ID: protocol.C2SKeepAlive, Payload: []byte{1}})
	if k, _ := protocol.KindOf(err); k != protocol.KindDecodeField {
		t.Errorf("err = %v", err)
	}
}

// TestHandlerFailuresIsolated verifies panics and errors do not escape and
// later handlers still run
func TestHandlerFailuresIsolated(t *testing.T) {
	d := newDispatcher()
	var order []string
	d.Handle(protocol.StatePlay, protocol.C2SSwing, "panics", func(ctx *Context, p protocol.Packet) error {
		order = append(order, "panics")
		panic("boom")
	})
	d.Handle(protocol.StatePlay, protocol.C2SSwing, "errors", func(ctx *Context, p protocol.Packet) error {
		order = append(order, "errors")
		return errors.New("nope")
	})
	d.Handle(protocol.StatePlay, protocol.C2SSwing, "works", func(ctx *Context, p protocol.Packet) error {
		order = append(order, "works")
		return nil
	})

	c := newConn(t, protocol.StateLogin, protocol.StatePlay)
	if err := d.Dispatch(context.Background(), c, command.Server(), swingFrame(0)); err != nil {
		t.Fatalf("Dispatch returned %v", err)
	}
	if len(order) != 3 || order[0] != "panics" || order[1] != "errors" || order[2] != "works" {
		t.Errorf("order = %v", order)
	}
	if c.Closed() {
		t.Error("handler failure closed the connection")
	}
}

// TestClosingConnectionDropsFrames verifies no handler runs once a final
// packet has been queued
func TestClosingConnectionDropsFrames(t *testing.T) {
	d := newDispatcher()
	calls := 0
	On(d, protocol.StatePlay, "swing", func(ctx *Context, p *protocol.Swing) error {
		calls++
		return nil
	})

	c := newConn(t, protocol.StateLogin, protocol.StatePlay)
	c.Disconnect(&protocol.Disconnect{Reason: text.Plain("kicked")}, "kicked")
	if err := d.Dispatch(context.Background(), c, command.Server(), swingFrame(0)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls != 0 {
		t.Errorf("handler ran %d times after disconnect", calls)
	}
}

// TestHandleRejectsDuplicatesAndUnknown verifies registration checks
func TestHandleRejectsDuplicatesAndUnknown(t *testing.T) {
	d := newDispatcher()
	noop := func(ctx *Context, p protocol.Packet) error { return nil }

	if err := d.Handle(protocol.StatePlay, protocol.C2SSwing, "a", noop); err != nil {
		t.Fatal(err)
	}
	if err := d.Handle(protocol.StatePlay, protocol.C2SSwing, "a", noop); !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("duplicate err = %v", err)
	}
	if err := d.Handle(protocol.StatePlay, protocol.C2SSwing, "b", noop); err != nil {
		t.Errorf("second name: %v", err)
	}
	if err := d.Handle(protocol.StateLogin, protocol.C2SSwing, "a", noop); !errors.Is(err, protocol.ErrUnknownPacket) {
		t.Errorf("unregistered key err = %v", err)
	}
	if d.Handlers(protocol.StatePlay, protocol.C2SSwing) != 2 {
		t.Errorf("Handlers = %d", d.Handlers(protocol.StatePlay, protocol.C2SSwing))
	}
}
