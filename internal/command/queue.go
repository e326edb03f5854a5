package command

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// QueueConfig holds configuration for the command queue.
type QueueConfig struct {
	BufferSize int // invocations buffered between ticks
	MaxPerTick int // invocations executed per tick
}

// DefaultQueueConfig returns production defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		MaxPerTick: 64,
	}
}

// Queue buffers command invocations from the reader, console and admin
// goroutines until the tick executes them. Enqueue never blocks.
type Queue struct {
	pending    chan Invocation
	maxPerTick int
	log        zerolog.Logger

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewQueue creates a queue.
func NewQueue(cfg QueueConfig, log zerolog.Logger) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultQueueConfig().BufferSize
	}
	if cfg.MaxPerTick <= 0 {
		cfg.MaxPerTick = DefaultQueueConfig().MaxPerTick
	}
	return &Queue{
		pending:    make(chan Invocation, cfg.BufferSize),
		maxPerTick: cfg.MaxPerTick,
		log:        log.With().Str("component", "commands").Logger(),
	}
}

// Enqueue adds an invocation. It returns false when the queue is full and
// the invocation was dropped.
func (q *Queue) Enqueue(inv Invocation) bool {
	if inv.ReceivedAt.IsZero() {
		inv.ReceivedAt = time.Now()
	}
	select {
	case q.pending <- inv:
		q.enqueued.Add(1)
		return true
	default:
		if n := q.dropped.Add(1); n%100 == 1 {
			q.log.Warn().Uint64("dropped", n).Str("line", inv.Line).Msg("command queue full")
		}
		return false
	}
}

// Drain removes up to MaxPerTick invocations in arrival order.
func (q *Queue) Drain() []Invocation {
	var out []Invocation
	for len(out) < q.maxPerTick {
		select {
		case inv := <-q.pending:
			q.updateAvgWaitTime(time.Since(inv.ReceivedAt))
			q.processed.Add(1)
			out = append(out, inv)
		default:
			return out
		}
	}
	return out
}

func (q *Queue) updateAvgWaitTime(wait time.Duration) {
	current := q.avgWaitTime.Load()
	q.avgWaitTime.Store((current*9 + wait.Nanoseconds()) / 10)
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     q.processed.Load(),
		Dropped:       q.dropped.Load(),
		Pending:       uint64(len(q.pending)),
		BufferSize:    uint64(cap(q.pending)),
		AvgWaitTimeMs: float64(q.avgWaitTime.Load()) / 1e6,
	}
}

// QueueStats holds queue metrics.
type QueueStats struct {
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Dropped       uint64  `json:"dropped"`
	Pending       uint64  `json:"pending"`
	BufferSize    uint64  `json:"buffer_size"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms"`
}
