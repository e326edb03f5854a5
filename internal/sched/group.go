package sched

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group is a named collection of systems run as one step of a phase.
type Group interface {
	Name() string
	Systems() []string
	run(t *Tick, r *runner)
}

// Chain runs its members in order. Each member sees every write made by
// the members before it.
type Chain struct {
	name    string
	members []System
}

// NewChain creates a chain of systems.
func NewChain(name string, systems ...System) *Chain {
	return &Chain{name: name, members: systems}
}

// Then appends a system to the end of the chain.
func (c *Chain) Then(s System) *Chain {
	c.members = append(c.members, s)
	return c
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Systems() []string {
	names := make([]string, len(c.members))
	for i, s := range c.members {
		names[i] = s.Name
	}
	return names
}

func (c *Chain) run(t *Tick, r *runner) {
	for _, s := range c.members {
		r.call(t, s)
	}
}

// Set runs its members in batches. Members of one batch have pairwise
// disjoint access and run concurrently; batches run one after another.
type Set struct {
	name    string
	batches [][]System
}

// NewSet creates an empty set.
func NewSet(name string) *Set {
	return &Set{name: name}
}

// Add places s in the first batch it does not conflict with, opening a new
// batch when every existing one conflicts.
func (s *Set) Add(sys System) *Set {
	for i, batch := range s.batches {
		if !conflictsAny(batch, sys) {
			s.batches[i] = append(batch, sys)
			return s
		}
	}
	s.batches = append(s.batches, []System{sys})
	return s
}

// AddParallel adds sys only if it can run concurrently with every existing
// member.
func (s *Set) AddParallel(sys System) error {
	for _, batch := range s.batches {
		for _, m := range batch {
			if m.Access.Conflicts(sys.Access) {
				return fmt.Errorf("%w: %s and %s in %s", ErrAccessConflict, sys.Name, m.Name, s.name)
			}
		}
	}
	s.Add(sys)
	return nil
}

// Batches returns member names grouped by batch.
func (s *Set) Batches() [][]string {
	out := make([][]string, len(s.batches))
	for i, batch := range s.batches {
		for _, m := range batch {
			out[i] = append(out[i], m.Name)
		}
	}
	return out
}

func (s *Set) Name() string { return s.name }

func (s *Set) Systems() []string {
	var names []string
	for _, b := range s.Batches() {
		names = append(names, b...)
	}
	return names
}

func (s *Set) run(t *Tick, r *runner) {
	for _, batch := range s.batches {
		if len(batch) == 1 {
			r.call(t, batch[0])
			continue
		}
		var g errgroup.Group
		for _, sys := range batch {
			g.Go(func() error {
				r.call(t, sys)
				return nil
			})
		}
		g.Wait()
	}
}

func conflictsAny(batch []System, sys System) bool {
	for _, m := range batch {
		if m.Access.Conflicts(sys.Access) {
			return true
		}
	}
	return false
}
