package sched

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ionic/internal/observability"
)

// LoopConfig tunes the fixed-rate loop.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
}

// DefaultLoopConfig returns 20 ticks per second with at most two ticks of
// elapsed time folded into one delta.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{TickRate: 20, CatchupMaxTicks: 2}
}

// Loop drives a Scheduler at a fixed rate.
type Loop struct {
	sched *Scheduler
	cfg   LoopConfig
	log   zerolog.Logger
	ticks atomic.Uint64
	now   func() time.Time

	// AfterTick, if set, is called on the loop goroutine after each tick.
	AfterTick func(number uint64, took time.Duration)
}

// NewLoop creates a loop for s.
func NewLoop(s *Scheduler, cfg LoopConfig, log zerolog.Logger) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 20
	}
	if cfg.CatchupMaxTicks < 1 {
		cfg.CatchupMaxTicks = 1
	}
	return &Loop{
		sched: s,
		cfg:   cfg,
		log:   log.With().Str("component", "loop").Logger(),
		now:   time.Now,
	}
}

// Interval is the target time between ticks.
func (l *Loop) Interval() time.Duration {
	return time.Second / time.Duration(l.cfg.TickRate)
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Run ticks until ctx is cancelled. Late ticks are not replayed; the delta
// passed to systems is clamped to CatchupMaxTicks intervals instead.
func (l *Loop) Run(ctx context.Context) {
	interval := l.Interval()
	maxDelta := interval * time.Duration(l.cfg.CatchupMaxTicks)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info().Int("tps", l.cfg.TickRate).Msg("simulation started")
	defer l.log.Info().Uint64("ticks", l.Ticks()).Msg("simulation stopped")

	last := l.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := l.now()
			delta := now.Sub(last)
			switch {
			case delta <= 0:
				delta = interval
			case delta > maxDelta:
				l.log.Debug().Dur("behind", delta-interval).Msg("tick delta clamped")
				delta = maxDelta
			}
			last = now
			l.Step(ctx, now, delta)
		}
	}
}

// Step runs a single tick synchronously.
func (l *Loop) Step(ctx context.Context, now time.Time, delta time.Duration) {
	n := l.ticks.Load() + 1
	start := time.Now()
	l.sched.RunTick(&Tick{Context: ctx, Number: n, Now: now, Delta: delta})
	took := time.Since(start)
	l.ticks.Store(n)

	observability.RecordTick(took, l.Interval())
	if took > l.Interval() {
		l.log.Warn().Uint64("tick", n).Dur("took", took).Msg("tick overran")
	}
	if l.AfterTick != nil {
		l.AfterTick(n, took)
	}
}
