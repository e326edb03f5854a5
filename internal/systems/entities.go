package systems

import (
	"math"

	"ionic/internal/codec"
	"ionic/internal/conn"
	"ionic/internal/protocol"
	"ionic/internal/sched"
	"ionic/internal/world"
)

// AddEntityPacket describes e for clients that have not seen it.
func AddEntityPacket(e *world.Entity) *protocol.AddEntity {
	yaw := codec.AngleByte(e.Yaw)
	return &protocol.AddEntity{
		EntityID: e.NetID,
		UUID:     e.UUID,
		Type:     e.Kind.NetworkType(),
		X:        e.Pos.X,
		Y:        e.Pos.Y,
		Z:        e.Pos.Z,
		Pitch:    codec.AngleByte(e.Pitch),
		Yaw:      yaw,
		Head:     yaw,
		VelX:     velocityUnits(e.Vel.X),
		VelY:     velocityUnits(e.Vel.Y),
		VelZ:     velocityUnits(e.Vel.Z),
	}
}

// velocityUnits converts blocks per tick to 1/8000 blocks per tick.
func velocityUnits(v float64) int16 {
	return int16(math.Max(math.Min(v*8000, math.MaxInt16), math.MinInt16))
}

// moveUnits converts a position delta to 1/4096 block units. ok is false
// when the delta does not fit a relative move.
func moveUnits(d float64) (int16, bool) {
	u := math.Round(d * 4096)
	if u > math.MaxInt16 || u < math.MinInt16 {
		return 0, false
	}
	return int16(u), true
}

// EntityMovePacket returns the packet announcing e's movement since the
// last announced position, and the position the client will now hold.
// It returns nil when nothing changed.
func EntityMovePacket(e *world.Entity) (protocol.Packet, world.Vec3) {
	delta := e.Pos.Sub(e.SentPos)
	if delta.IsZero() && e.OnGround == e.SentGround {
		return nil, e.SentPos
	}
	dx, okX := moveUnits(delta.X)
	dy, okY := moveUnits(delta.Y)
	dz, okZ := moveUnits(delta.Z)
	if okX && okY && okZ {
		sent := e.SentPos.Add(world.Vec3{
			X: float64(dx) / 4096,
			Y: float64(dy) / 4096,
			Z: float64(dz) / 4096,
		})
		return &protocol.MoveEntityPos{EntityID: e.NetID, DX: dx, DY: dy, DZ: dz, OnGround: e.OnGround}, sent
	}
	return &protocol.TeleportEntity{
		EntityID: e.NetID,
		X:        e.Pos.X,
		Y:        e.Pos.Y,
		Z:        e.Pos.Z,
		Yaw:      codec.AngleByte(e.Yaw),
		Pitch:    codec.AngleByte(e.Pitch),
		OnGround: e.OnGround,
	}, e.Pos
}

// EntityUpdates sends relative moves or teleports for every announced
// entity whose position or ground state changed. A player never receives
// its own movement.
func EntityUpdates(env *Env) sched.System {
	return sched.System{
		Name:   "entity_updates",
		Access: sched.Access{Reads: []string{ResConns}, Writes: []string{ResEntities, ResOutbound}},
		Run: func(*sched.Tick) error {
			var firstErr error
			env.World.Each(func(_ world.Handle, e *world.Entity) {
				if !e.Spawned {
					return
				}
				p, sent := EntityMovePacket(e)
				if p == nil {
					return
				}
				if err := Fanout(env, p, conn.ID(e.ConnID)); err != nil && firstErr == nil {
					firstErr = err
				}
				e.SentPos = sent
				e.SentGround = e.OnGround
			})
			return firstErr
		},
	}
}
