// Package broadcast fans server-originated messages out to connections in
// the order they were enqueued.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"ionic/internal/conn"
	"ionic/internal/observability"
	"ionic/internal/protocol"
	"ionic/internal/text"
)

// DefaultMaxPending bounds messages waiting between two Process calls.
const DefaultMaxPending = 4096

// Recipient is anything that accepts encoded play packets.
type Recipient interface {
	ID() conn.ID
	Queue(body []byte)
}

// Targets lists the recipients a Process call may deliver to.
type Targets interface {
	Recipients() []Recipient
}

// Message is one broadcast. Packet is sent when set; otherwise Text is sent
// as system_chat with Overlay.
type Message struct {
	Text    text.Component
	Overlay bool
	Packet  protocol.Packet

	// Recipient selection. With no IDs and no Match every target receives
	// the message. Except is never delivered to.
	IDs    []conn.ID
	Match  func(Recipient) bool
	Except conn.ID
}

func (m Message) packet() protocol.Packet {
	if m.Packet != nil {
		return m.Packet
	}
	return &protocol.SystemChat{Message: m.Text, Overlay: m.Overlay}
}

func (m Message) wants(r Recipient) bool {
	id := r.ID()
	if m.Except != 0 && id == m.Except {
		return false
	}
	if len(m.IDs) > 0 {
		found := false
		for _, want := range m.IDs {
			if want == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return m.Match == nil || m.Match(r)
}

// Observer sees every processed message, after delivery.
type Observer func(Message)

// Queue is the broadcast queue owned by the game loop. Enqueue is safe
// from any goroutine; Process runs once per tick.
type Queue struct {
	reg        *protocol.Registry
	log        zerolog.Logger
	maxPending int

	mu        sync.Mutex
	pending   []Message
	dropped   uint64
	observers []Observer
}

// New creates an empty queue encoding with reg.
func New(reg *protocol.Registry, log zerolog.Logger) *Queue {
	return &Queue{
		reg:        reg,
		log:        log.With().Str("component", "broadcast").Logger(),
		maxPending: DefaultMaxPending,
	}
}

// SetMaxPending changes the bound on queued messages. Values below one are
// ignored.
func (q *Queue) SetMaxPending(n int) {
	if n < 1 {
		return
	}
	q.mu.Lock()
	q.maxPending = n
	q.mu.Unlock()
}

// Enqueue appends m. When the queue is full the message is dropped and
// false is returned.
func (q *Queue) Enqueue(m Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.maxPending {
		q.dropped++
		return false
	}
	q.pending = append(q.pending, m)
	return true
}

// Broadcast enqueues a system chat line for every player.
func (q *Queue) Broadcast(msg text.Component, overlay bool) bool {
	return q.Enqueue(Message{Text: msg, Overlay: overlay})
}

// Observe registers fn to see every processed message.
func (q *Queue) Observe(fn Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, fn)
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns the number of messages rejected by a full queue.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Process drains the queue in FIFO order. Each message is encoded once and
// the same bytes are queued on every matching recipient. It returns the
// number of messages processed.
func (q *Queue) Process(targets Targets) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	observers := q.observers
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	recipients := targets.Recipients()
	for _, m := range batch {
		body, err := q.reg.Marshal(protocol.StatePlay, m.packet())
		if err != nil {
			q.log.Error().Err(err).Str("packet", m.packet().Name()).Msg("broadcast encode failed")
			continue
		}
		n := 0
		for _, r := range recipients {
			if m.wants(r) {
				r.Queue(body)
				n++
			}
		}
		observability.RecordBroadcast(n)
		for _, fn := range observers {
			fn(m)
		}
	}
	return len(batch)
}

// Players adapts a connection registry to Targets, yielding connections in
// the play state in id order.
func Players(r *conn.Registry) Targets {
	return registryTargets{r}
}

type registryTargets struct {
	reg *conn.Registry
}

func (t registryTargets) Recipients() []Recipient {
	playing := t.reg.Playing()
	out := make([]Recipient, len(playing))
	for i, c := range playing {
		out[i] = c
	}
	return out
}
