// Package conn tracks one client connection: its protocol state, the
// ordered writer that owns the socket's outbound side, the bounded inbound
// queue drained by the tick loop, and per-connection bookkeeping.
package conn

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ionic/internal/protocol"
	"ionic/internal/wire"
	"ionic/internal/world"
)

// ID identifies a connection for its lifetime. IDs are never reused.
type ID uint64

var (
	ErrClosed           = errors.New("conn: connection closed")
	ErrOutboundFull     = errors.New("conn: outbound queue full")
	ErrInboundFull      = errors.New("conn: inbound queue full")
	ErrRateLimited      = errors.New("conn: inbound packet rate exceeded")
	ErrBadTransition    = errors.New("conn: invalid state transition")
	ErrKeepAlivePending = errors.New("conn: keep-alive already pending")
	ErrUnexpectedKeepID = errors.New("conn: unexpected keep-alive id")
)

// Options bound a connection's queues and inbound rate.
type Options struct {
	InboundQueue     int
	OutboundQueue    int
	PacketsPerSecond float64
	PacketBurst      int
	WriteTimeout     time.Duration
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		InboundQueue:     256,
		OutboundQueue:    1024,
		PacketsPerSecond: 500,
		PacketBurst:      1000,
		WriteTimeout:     10 * time.Second,
	}
}

// outItem is one unit of writer work. Exactly one field group is set.
type outItem struct {
	body        []byte
	batch       [][]byte
	cipher      cipher.Stream
	compression *int
	closeReason string
	closeAfter  bool
}

// Connection is one client. The reader goroutine owns ReadFrame and the
// inbound cipher; the writer goroutine owns the socket's outbound side.
type Connection struct {
	id     ID
	raw    net.Conn
	remote string
	reg    *protocol.Registry
	opts   Options
	log    zerolog.Logger

	state atomic.Int32

	reader  *wire.Reader
	writer  *wire.Writer
	out     chan outItem
	inbound chan wire.Frame
	limiter *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closing   atomic.Bool
	reason    atomic.Value
	writerWG  sync.WaitGroup

	mu        sync.Mutex
	username  string
	uuid      uuid.UUID
	entity    world.Handle
	batch     [][]byte
	flagged   string
	keepID    int64
	keepSent  time.Time
	keepAlive bool
	lastAck   time.Time
	teleport  int32
	hasChunk  bool
	chunkX    int32
	chunkZ    int32
	window    int32
	joinedAt  time.Time
}

// New wraps raw in a Connection in the handshake state and starts its
// writer goroutine. Cancelling ctx closes the connection.
func New(ctx context.Context, id ID, raw net.Conn, reg *protocol.Registry, opts Options, log zerolog.Logger) *Connection {
	if opts.InboundQueue <= 0 {
		opts.InboundQueue = DefaultOptions().InboundQueue
	}
	if opts.OutboundQueue <= 0 {
		opts.OutboundQueue = DefaultOptions().OutboundQueue
	}
	cctx, cancel := context.WithCancel(ctx)
	remote := ""
	if addr := raw.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c := &Connection{
		id:      id,
		raw:     raw,
		remote:  remote,
		reg:     reg,
		opts:    opts,
		log:     log.With().Uint64("conn", uint64(id)).Str("remote", remote).Logger(),
		reader:  wire.NewReader(raw),
		writer:  wire.NewWriter(raw),
		out:     make(chan outItem, opts.OutboundQueue),
		inbound: make(chan wire.Frame, opts.InboundQueue),
		ctx:     cctx,
		cancel:  cancel,
	}
	if opts.PacketsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.PacketsPerSecond), max(opts.PacketBurst, 1))
	}
	c.state.Store(int32(protocol.StateHandshake))

	c.writerWG.Add(1)
	go c.writeLoop()
	go func() {
		<-cctx.Done()
		c.Close("context cancelled")
	}()
	return c
}

func (c *Connection) ID() ID                   { return c.id }
func (c *Connection) Remote() string           { return c.remote }
func (c *Connection) Log() *zerolog.Logger     { return &c.log }
func (c *Connection) Context() context.Context { return c.ctx }
func (c *Connection) Done() <-chan struct{}    { return c.ctx.Done() }
func (c *Connection) Registry() *protocol.Registry {
	return c.reg
}

// State returns the current protocol state.
func (c *Connection) State() protocol.State {
	return protocol.State(c.state.Load())
}

// SetState moves the connection to next. Only the handshake, login and
// close transitions are accepted, and a closing connection may only close.
func (c *Connection) SetState(next protocol.State) error {
	for {
		cur := c.State()
		if !validTransition(cur, next) || (c.closing.Load() && next != protocol.StateClosed) {
			return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur, next)
		}
		if c.state.CompareAndSwap(int32(cur), int32(next)) {
			c.log.Debug().Str("from", cur.String()).Str("to", next.String()).Msg("state transition")
			return nil
		}
	}
}

func validTransition(from, to protocol.State) bool {
	if from == protocol.StateClosed {
		return false
	}
	switch to {
	case protocol.StateClosed:
		return true
	case protocol.StateStatus, protocol.StateLogin:
		return from == protocol.StateHandshake
	case protocol.StatePlay:
		return from == protocol.StateLogin
	default:
		return false
	}
}

// Closed reports whether Close has run.
func (c *Connection) Closed() bool {
	return c.State() == protocol.StateClosed
}

// Closing reports whether the connection is closed or has a final packet
// queued by Disconnect. No further input should be handled once it is true.
func (c *Connection) Closing() bool {
	return c.closing.Load() || c.Closed()
}

// Close terminates the connection. Only the first call has an effect:
// queued outbound data is dropped and the socket is closed.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.reason.Store(reason)
		c.state.Store(int32(protocol.StateClosed))
		c.cancel()
		c.raw.Close()
		c.log.Debug().Str("reason", reason).Msg("connection closed")
	})
}

// CloseReason returns the reason given to the first Close call.
func (c *Connection) CloseReason() string {
	r, _ := c.reason.Load().(string)
	return r
}

// Wait blocks until the writer goroutine has exited.
func (c *Connection) Wait() {
	c.writerWG.Wait()
}

// ReadFrame reads the next inbound frame. It must only be called from the
// connection's reader goroutine.
func (c *Connection) ReadFrame() (wire.Frame, error) {
	f, err := c.reader.ReadFrame()
	if err != nil {
		return f, err
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return f, ErrRateLimited
	}
	return f, nil
}

// SetReadDeadline bounds the next reads on the socket.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// EnableEncryption installs the cipher pair. Inbound decryption applies to
// the next byte read; outbound encryption applies to every frame queued
// after this call. Call it from the reader goroutine.
func (c *Connection) EnableEncryption(enc, dec cipher.Stream) error {
	c.reader.SetCipher(dec)
	return c.push(outItem{cipher: enc})
}

// EnableCompression switches both directions to compressed framing with
// the given threshold. Call it from the reader goroutine after queueing
// login_compression.
func (c *Connection) EnableCompression(threshold int) error {
	c.reader.SetCompression(threshold)
	return c.push(outItem{compression: &threshold})
}

// Send marshals p for the current state and queues it for the writer
// immediately, bypassing the tick batch.
func (c *Connection) Send(p protocol.Packet) error {
	body, err := c.reg.Marshal(c.State(), p)
	if err != nil {
		return err
	}
	return c.SendRaw(body)
}

// SendRaw queues an encoded [id][payload] body for the writer.
func (c *Connection) SendRaw(body []byte) error {
	return c.push(outItem{body: body})
}

// Disconnect queues p and closes the connection once it has been written.
// The connection reports Closing from this call on.
func (c *Connection) Disconnect(p protocol.Packet, reason string) error {
	c.closing.Store(true)
	body, err := c.reg.Marshal(c.State(), p)
	if err != nil {
		c.Close(reason)
		return err
	}
	return c.push(outItem{body: body, closeAfter: true, closeReason: reason})
}

func (c *Connection) push(it outItem) error {
	if c.Closed() {
		return ErrClosed
	}
	select {
	case c.out <- it:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	default:
		c.Close("outbound queue full")
		return ErrOutboundFull
	}
}

func (c *Connection) writeLoop() {
	defer c.writerWG.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case it := <-c.out:
			if err := c.write(it); err != nil {
				if !c.Closed() {
					c.log.Debug().Err(err).Msg("write failed")
				}
				c.Close("write: " + err.Error())
				return
			}
			if it.closeAfter {
				c.Close(it.closeReason)
				return
			}
		}
	}
}

func (c *Connection) write(it outItem) error {
	switch {
	case it.cipher != nil:
		c.writer.SetCipher(it.cipher)
		return nil
	case it.compression != nil:
		c.writer.SetCompression(*it.compression)
		return nil
	}
	if c.opts.WriteTimeout > 0 {
		c.raw.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if it.batch != nil {
		return c.writer.WriteBodies(it.batch)
	}
	return c.writer.WriteBody(it.body)
}

// Queue appends an encoded body to the per-tick outbound batch. The batch
// is handed to the writer by Flush.
func (c *Connection) Queue(body []byte) {
	c.mu.Lock()
	c.batch = append(c.batch, body)
	c.mu.Unlock()
}

// QueuePacket marshals p for the current state and appends it to the batch.
func (c *Connection) QueuePacket(p protocol.Packet) error {
	body, err := c.reg.Marshal(c.State(), p)
	if err != nil {
		return err
	}
	c.Queue(body)
	return nil
}

// Pending returns the number of bodies waiting in the tick batch.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batch)
}

// Flush hands the tick batch to the writer as one write.
func (c *Connection) Flush() error {
	c.mu.Lock()
	batch := c.batch
	c.batch = nil
	c.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return c.push(outItem{batch: batch})
}

// Enqueue adds a play frame to the inbound queue. A full queue closes the
// connection.
func (c *Connection) Enqueue(f wire.Frame) error {
	if c.Closed() {
		return ErrClosed
	}
	select {
	case c.inbound <- f:
		return nil
	default:
		c.Close("inbound queue full")
		return ErrInboundFull
	}
}

// DrainInbound removes and returns every queued inbound frame in arrival
// order.
func (c *Connection) DrainInbound() []wire.Frame {
	var out []wire.Frame
	for {
		select {
		case f := <-c.inbound:
			out = append(out, f)
		default:
			return out
		}
	}
}
