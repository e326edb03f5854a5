// Package sched runs the simulation as a fixed-rate sequence of phases.
// Each phase holds groups of systems: a Chain runs its members strictly in
// order, a Set runs access-disjoint members concurrently.
package sched

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAccessConflict is returned by Set.AddParallel when a member's access
// overlaps an existing member.
var ErrAccessConflict = errors.New("sched: access conflict")

// Phase orders the groups of one tick.
type Phase uint8

const (
	PhaseInbound Phase = iota
	PhaseBackground
	PhasePhysics
	PhaseMobs
	PhaseFlush
	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhaseInbound:
		return "inbound"
	case PhaseBackground:
		return "background"
	case PhasePhysics:
		return "physics"
	case PhaseMobs:
		return "mobs"
	case PhaseFlush:
		return "flush"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Tick is passed to every system run during one tick.
type Tick struct {
	Context context.Context
	Number  uint64
	Now     time.Time
	Delta   time.Duration
}

// Access declares the resources a system reads and writes.
type Access struct {
	Reads  []string
	Writes []string
}

// Conflicts reports whether a and b may not run at the same time: one
// writes something the other reads or writes.
func (a Access) Conflicts(b Access) bool {
	return overlaps(a.Writes, b.Reads) || overlaps(a.Writes, b.Writes) || overlaps(b.Writes, a.Reads)
}

func overlaps(x, y []string) bool {
	for _, a := range x {
		for _, b := range y {
			if a == b {
				return true
			}
		}
	}
	return false
}

// System is one unit of tick work.
type System struct {
	Name   string
	Access Access
	Run    func(t *Tick) error
}
