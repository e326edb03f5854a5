package systems

import (
	"sync"
	"sync/atomic"

	"ionic/internal/broadcast"
	"ionic/internal/conn"
	"ionic/internal/protocol"
	"ionic/internal/sched"
	"ionic/internal/text"
	"ionic/internal/world"
)

// JoinQueue hands connections that finished login to the tick.
type JoinQueue struct {
	mu      sync.Mutex
	pending []*conn.Connection
}

// Push queues c for spawning. Safe from any goroutine.
func (q *JoinQueue) Push(c *conn.Connection) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
}

// Drain returns the queued connections in arrival order.
func (q *JoinQueue) Drain() []*conn.Connection {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len returns the number of queued connections.
func (q *JoinQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

var teleportIDs atomic.Int32

// SpawnPoint is where players enter the world.
func SpawnPoint(w *world.World) world.Vec3 {
	return world.Vec3{X: 0.5, Y: w.SurfaceY(), Z: 0.5}
}

// Join spawns a player entity for every connection that finished login,
// teleports the client to it, and introduces it to everyone else.
func Join(env *Env) sched.System {
	return sched.System{
		Name:   "join",
		Access: sched.Access{Reads: []string{ResClock}, Writes: []string{ResEntities, ResConns, ResOutbound}},
		Run: func(t *sched.Tick) error {
			for _, c := range env.Joins.Drain() {
				if c.Closed() || c.State() != protocol.StatePlay {
					continue
				}
				if err := spawnPlayer(env, c, t); err != nil {
					c.Log().Error().Err(err).Msg("join failed")
					c.Close("protocol: join: " + err.Error())
				}
			}
			return nil
		},
	}
}

func spawnPlayer(env *Env, c *conn.Connection, t *sched.Tick) error {
	pos := SpawnPoint(env.World)
	h := env.World.Spawn(world.Entity{
		Kind:       world.KindPlayer,
		UUID:       c.UUID(),
		Username:   c.Username(),
		ConnID:     uint64(c.ID()),
		Pos:        pos,
		SentPos:    pos,
		OnGround:   true,
		SentGround: true,
		Spawned:    true,
	})
	self, _ := env.World.Get(h)

	id := teleportIDs.Add(1)
	c.SetPendingTeleport(id)
	if err := c.QueuePacket(&protocol.PlayerPosition{X: pos.X, Y: pos.Y, Z: pos.Z, TeleportID: id}); err != nil {
		return err
	}
	if err := c.QueuePacket(TimePacket(env.World)); err != nil {
		return err
	}

	var queueErr error
	env.World.Each(func(other world.Handle, e *world.Entity) {
		if other == h || !e.Spawned || queueErr != nil {
			return
		}
		queueErr = c.QueuePacket(AddEntityPacket(e))
	})
	if queueErr != nil {
		return queueErr
	}

	if err := Fanout(env, AddEntityPacket(self), c.ID()); err != nil {
		return err
	}
	c.SetEntity(h, t.Now)

	env.Broadcast.Enqueue(broadcast.Message{
		Text: text.Colored(c.Username()+" joined the game", "yellow"),
	})
	env.Log.Info().
		Str("player", c.Username()).
		Str("uuid", c.UUID().String()).
		Int32("entity", self.NetID).
		Uint64("conn", uint64(c.ID())).
		Msg("player joined")
	return nil
}
