package systems

import (
	"math"

	"ionic/internal/codec"
	"ionic/internal/sched"
	"ionic/internal/world"
)

// Per-tick physics constants in blocks and blocks per tick.
const (
	Gravity          = 0.08
	AirDrag          = 0.98
	AirFriction      = 0.91
	GroundFriction   = 0.6 * 0.91
	TerminalVelocity = 3.92
	minVelocity      = 0.003
)

var physicsAccess = sched.Access{Reads: []string{ResBlocks}, Writes: []string{ResEntities}}

// Physics returns the physics chain. Players move client side and are
// skipped; every other entity falls, slows and lands on solid blocks.
func Physics(w *world.World) *sched.Chain {
	return sched.NewChain("physics",
		Unground(w),
		ApplyGravity(w),
		ApplyDrag(w),
		ApplyVelocity(w),
		Collisions(w),
	)
}

func simulated(e *world.Entity) bool {
	return e.Kind != world.KindPlayer
}

func blockAt(w *world.World, x float64, y int32, z float64) int32 {
	return w.Block(codec.Position{X: int32(math.Floor(x)), Y: y, Z: int32(math.Floor(z))})
}

// Unground clears OnGround for entities with nothing solid under them.
func Unground(w *world.World) sched.System {
	return sched.System{Name: "unground", Access: physicsAccess, Run: func(*sched.Tick) error {
		w.Each(func(_ world.Handle, e *world.Entity) {
			if !simulated(e) || !e.OnGround {
				return
			}
			below := int32(math.Floor(e.Pos.Y - 0.001))
			if e.Vel.Y > 0 || blockAt(w, e.Pos.X, below, e.Pos.Z) == world.BlockAir {
				e.OnGround = false
			}
		})
		return nil
	}}
}

// ApplyGravity accelerates airborne entities downwards.
func ApplyGravity(w *world.World) sched.System {
	return sched.System{Name: "gravity", Access: physicsAccess, Run: func(*sched.Tick) error {
		w.Each(func(_ world.Handle, e *world.Entity) {
			if !simulated(e) || e.OnGround {
				return
			}
			e.Vel.Y = math.Max(e.Vel.Y-Gravity, -TerminalVelocity)
		})
		return nil
	}}
}

// ApplyDrag damps velocity. Horizontal friction is stronger on the ground.
func ApplyDrag(w *world.World) sched.System {
	return sched.System{Name: "drag", Access: physicsAccess, Run: func(*sched.Tick) error {
		w.Each(func(_ world.Handle, e *world.Entity) {
			if !simulated(e) {
				return
			}
			friction := AirFriction
			if e.OnGround {
				friction = GroundFriction
			}
			e.Vel.X *= friction
			e.Vel.Z *= friction
			e.Vel.Y *= AirDrag
			if math.Abs(e.Vel.X) < minVelocity {
				e.Vel.X = 0
			}
			if math.Abs(e.Vel.Y) < minVelocity {
				e.Vel.Y = 0
			}
			if math.Abs(e.Vel.Z) < minVelocity {
				e.Vel.Z = 0
			}
		})
		return nil
	}}
}

// ApplyVelocity moves entities by their velocity.
func ApplyVelocity(w *world.World) sched.System {
	return sched.System{Name: "velocity", Access: physicsAccess, Run: func(*sched.Tick) error {
		w.Each(func(_ world.Handle, e *world.Entity) {
			if simulated(e) && !e.Vel.IsZero() {
				e.Pos = e.Pos.Add(e.Vel)
			}
		})
		return nil
	}}
}

// Collisions lands falling entities on the first solid block they passed
// through this tick.
func Collisions(w *world.World) sched.System {
	return sched.System{Name: "collisions", Access: physicsAccess, Run: func(*sched.Tick) error {
		w.Each(func(_ world.Handle, e *world.Entity) {
			if !simulated(e) || e.Vel.Y > 0 {
				return
			}
			prevY := e.Pos.Y - e.Vel.Y
			top := int32(math.Floor(prevY - 0.001))
			bottom := int32(math.Floor(e.Pos.Y))
			if bottom < world.MinBuildY {
				bottom = world.MinBuildY
			}
			for y := top; y >= bottom; y-- {
				if blockAt(w, e.Pos.X, y, e.Pos.Z) == world.BlockAir {
					continue
				}
				if e.Pos.Y <= float64(y+1) {
					e.Pos.Y = float64(y + 1)
					e.Vel.Y = 0
					e.OnGround = true
				}
				return
			}
		})
		return nil
	}}
}
