package systems

import (
	"math"
	"math/rand"

	"ionic/internal/sched"
	"ionic/internal/world"
)

const (
	pigSpeed      = 0.1
	pigStartOdds  = 60 // one in n idle ticks starts a walk
	pigMinWalk    = 20
	pigMaxWalk    = 60
	pigSpawnRange = 8.0
)

type wander struct {
	yaw   float64
	ticks int
}

// PigWander makes idle pigs occasionally walk in a random direction.
// The rng is seeded from Config.Seed so runs are reproducible.
func PigWander(env *Env) sched.System {
	rng := rand.New(rand.NewSource(env.Config.Seed))
	walks := make(map[world.Handle]*wander)

	return sched.System{
		Name:   "pig_wander",
		Access: sched.Access{Writes: []string{ResEntities}},
		Run: func(*sched.Tick) error {
			seen := make(map[world.Handle]bool, len(walks))
			env.World.Each(func(h world.Handle, e *world.Entity) {
				if e.Kind != world.KindPig {
					return
				}
				seen[h] = true
				wk := walks[h]
				if wk == nil {
					wk = &wander{}
					walks[h] = wk
				}
				if wk.ticks == 0 {
					if !e.OnGround || rng.Intn(pigStartOdds) != 0 {
						return
					}
					wk.yaw = rng.Float64() * 2 * math.Pi
					wk.ticks = pigMinWalk + rng.Intn(pigMaxWalk-pigMinWalk+1)
				}
				wk.ticks--
				e.Vel.X = -math.Sin(wk.yaw) * pigSpeed
				e.Vel.Z = math.Cos(wk.yaw) * pigSpeed
				e.Yaw = float32(wk.yaw * 180 / math.Pi)
			})
			for h := range walks {
				if !seen[h] {
					delete(walks, h)
				}
			}
			return nil
		},
	}
}

// SpawnPigs places n pigs on the surface around the origin.
func SpawnPigs(w *world.World, n int, seed int64) []world.Handle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]world.Handle, 0, n)
	for i := 0; i < n; i++ {
		pos := world.Vec3{
			X: (rng.Float64()*2 - 1) * pigSpawnRange,
			Y: w.SurfaceY(),
			Z: (rng.Float64()*2 - 1) * pigSpawnRange,
		}
		out = append(out, w.Spawn(world.Entity{
			Kind:     world.KindPig,
			Pos:      pos,
			SentPos:  pos,
			OnGround: true,
			Spawned:  true,
		}))
	}
	return out
}
