package sched

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ionic/internal/observability"
)

const tracerName = "ionic/sched"

// Scheduler holds the groups of every phase. Groups are added during
// startup; RunTick must not overlap with Add.
type Scheduler struct {
	phases [numPhases][]Group
	runner *runner
	tracer trace.Tracer
}

// New creates an empty scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner: &runner{log: log.With().Str("component", "sched").Logger()},
		tracer: otel.Tracer(tracerName),
	}
}

// Add appends g to phase p. Groups of a phase run in the order added.
func (s *Scheduler) Add(p Phase, g Group) {
	s.phases[p] = append(s.phases[p], g)
}

// AddSystem adds a single system as its own group.
func (s *Scheduler) AddSystem(p Phase, sys System) {
	s.Add(p, NewChain(sys.Name, sys))
}

// Describe lists the system names of each phase in run order.
func (s *Scheduler) Describe() map[string][]string {
	out := make(map[string][]string, numPhases)
	for p := Phase(0); p < numPhases; p++ {
		for _, g := range s.phases[p] {
			out[p.String()] = append(out[p.String()], g.Systems()...)
		}
	}
	return out
}

// RunTick runs every phase once.
func (s *Scheduler) RunTick(t *Tick) {
	if t.Context == nil {
		t.Context = context.Background()
	}
	parent := t.Context
	ctx, span := s.tracer.Start(parent, "tick", trace.WithAttributes(
		attribute.Int64("ionic.tick", int64(t.Number)),
	))
	defer span.End()

	for p := Phase(0); p < numPhases; p++ {
		if len(s.phases[p]) == 0 {
			continue
		}
		pctx, pspan := s.tracer.Start(ctx, "phase."+p.String())
		t.Context = pctx
		for _, g := range s.phases[p] {
			g.run(t, s.runner)
		}
		pspan.End()
	}
	t.Context = parent
}

type runner struct {
	log zerolog.Logger
}

// call runs one system, converting a panic or error into a logged failure.
func (r *runner) call(t *Tick, sys System) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.RecordSystemFailure(sys.Name)
			r.log.Error().
				Str("system", sys.Name).
				Uint64("tick", t.Number).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("system panicked")
		}
	}()
	if err := sys.Run(t); err != nil {
		observability.RecordSystemFailure(sys.Name)
		r.log.Warn().Err(err).Str("system", sys.Name).Uint64("tick", t.Number).Msg("system failed")
	}
}
