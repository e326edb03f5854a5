// Package dispatch routes decoded packets to the handlers registered for
// the connection's current state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"ionic/internal/broadcast"
	"ionic/internal/codec"
	"ionic/internal/command"
	"ionic/internal/conn"
	"ionic/internal/observability"
	"ionic/internal/protocol"
	"ionic/internal/wire"
	"ionic/internal/world"
)

// ErrDuplicateHandler is returned when a (state, id, name) is registered twice.
var ErrDuplicateHandler = errors.New("dispatch: duplicate handler")

// Services are the shared systems a handler may use.
type Services struct {
	World     *world.World
	Broadcast *broadcast.Queue
	Commands  *command.Queue
	Conns     *conn.Registry
}

// Context is passed to every handler.
type Context struct {
	context.Context
	Conn     *conn.Connection
	Sender   command.Sender
	Services *Services
	Log      zerolog.Logger
}

// Handler handles one decoded packet.
type Handler func(ctx *Context, p protocol.Packet) error

type handlerKey struct {
	state protocol.State
	id    int32
}

type namedHandler struct {
	name string
	fn   Handler
}

// Dispatcher holds the handler table. Handle is called during startup
// only; Dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	reg      *protocol.Registry
	limits   codec.Limits
	services *Services
	log      zerolog.Logger
	handlers map[handlerKey][]namedHandler
}

// New creates a dispatcher decoding with reg.
func New(reg *protocol.Registry, limits codec.Limits, services *Services, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		reg:      reg,
		limits:   limits,
		services: services,
		log:      log.With().Str("component", "dispatch").Logger(),
		handlers: make(map[handlerKey][]namedHandler),
	}
}

// Handle registers fn under name for serverbound id in state. Handlers for
// one key run in registration order.
func (d *Dispatcher) Handle(state protocol.State, id int32, name string, fn Handler) error {
	if _, ok := d.reg.Lookup(state, protocol.Serverbound, id); !ok {
		return fmt.Errorf("dispatch: %s 0x%02X: %w", state, id, protocol.ErrUnknownPacket)
	}
	k := handlerKey{state, id}
	for _, h := range d.handlers[k] {
		if h.name == name {
			return fmt.Errorf("%w: %s 0x%02X %s", ErrDuplicateHandler, state, id, name)
		}
	}
	d.handlers[k] = append(d.handlers[k], namedHandler{name: name, fn: fn})
	return nil
}

// On registers a handler typed to the packet's concrete type. The id is
// resolved from the registry by the packet's name.
func On[T protocol.Packet](d *Dispatcher, state protocol.State, name string, fn func(ctx *Context, p T) error) error {
	var zero T
	desc, ok := d.reg.LookupName(state, protocol.Serverbound, zero.Name())
	if !ok {
		return fmt.Errorf("dispatch: %s %s: %w", state, zero.Name(), protocol.ErrUnknownPacket)
	}
	return d.Handle(state, desc.ID, name, func(ctx *Context, p protocol.Packet) error {
		typed, ok := p.(T)
		if !ok {
			return fmt.Errorf("dispatch: %s decoded as %T", desc.Name, p)
		}
		return fn(ctx, typed)
	})
}

// Handlers returns the number of handlers registered for a key.
func (d *Dispatcher) Handlers(state protocol.State, id int32) int {
	return len(d.handlers[handlerKey{state, id}])
}

// Dispatch decodes f for c's current state and runs its handlers.
// Decode failures are returned as fatal protocol errors. Handler failures
// are logged, counted and swallowed. Frames for a closing connection are
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, c *conn.Connection, sender command.Sender, f wire.Frame) error {
	if c.Closing() {
		return nil
	}
	state := c.State()
	p, err := d.reg.Decode(state, f.ID, f.Payload, d.limits)
	if err != nil {
		if k, ok := protocol.KindOf(err); ok {
			observability.RecordProtocolError(k.String())
		}
		return err
	}
	observability.RecordPacket(p.Name())

	hs := d.handlers[handlerKey{state, f.ID}]
	if len(hs) == 0 {
		c.Log().Debug().Str("packet", p.Name()).Msg("no handler")
		return nil
	}

	hctx := &Context{
		Context:  ctx,
		Conn:     c,
		Sender:   sender,
		Services: d.services,
		Log:      c.Log().With().Str("packet", p.Name()).Logger(),
	}
	for _, h := range hs {
		if err := d.run(hctx, h, p); err != nil {
			herr := &protocol.Error{Kind: protocol.KindHandler, State: state, PacketID: f.ID, Packet: p.Name(), Err: err}
			observability.RecordHandlerError(p.Name())
			hctx.Log.Error().Err(herr).Str("handler", h.name).Msg("handler failed")
		}
	}
	return nil
}

func (d *Dispatcher) run(ctx *Context, h namedHandler, p protocol.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ctx.Log.Debug().Str("handler", h.name).Bytes("stack", debug.Stack()).Msg("handler panic")
		}
	}()
	return h.fn(ctx, p)
}
