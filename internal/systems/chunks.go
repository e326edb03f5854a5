package systems

import (
	"ionic/internal/protocol"
	"ionic/internal/sched"
)

// ChunkSource supplies encoded level_chunk_with_light bodies ([id][payload]).
// A nil body means the chunk is not available and is skipped.
type ChunkSource interface {
	Chunk(x, z int32) []byte
}

// EmptyChunks is a ChunkSource with no chunks. Clients still receive the
// chunk center and the batch markers.
type EmptyChunks struct{}

func (EmptyChunks) Chunk(x, z int32) []byte { return nil }

// ChunkStreaming follows each player's chunk position. When it changes the
// client gets a new chunk center, a forget_level_chunk for every column that
// left its view and one batch holding the chunks that entered it.
func ChunkStreaming(env *Env) sched.System {
	return sched.System{
		Name:   "chunk_streaming",
		Access: sched.Access{Reads: []string{ResEntities}, Writes: []string{ResConns, ResOutbound}},
		Run: func(*sched.Tick) error {
			r := env.Config.ViewDistance
			for _, c := range env.Conns.Playing() {
				h, ok := c.Entity()
				if !ok {
					continue
				}
				e, ok := env.World.Get(h)
				if !ok {
					continue
				}
				cx, cz := e.Pos.ChunkX(), e.Pos.ChunkZ()
				ox, oz, had := c.ChunkCenter()
				if had && ox == cx && oz == cz {
					continue
				}
				c.SetChunkCenter(cx, cz)
				if err := c.QueuePacket(&protocol.SetChunkCacheCenter{ChunkX: cx, ChunkZ: cz}); err != nil {
					return err
				}
				if had {
					for _, f := range forgotten(ox, oz, cx, cz, r) {
						if err := c.QueuePacket(&f); err != nil {
							return err
						}
					}
				}

				var bodies [][]byte
				for x := cx - r; x <= cx+r; x++ {
					for z := cz - r; z <= cz+r; z++ {
						if had && inView(x, z, ox, oz, r) {
							continue
						}
						if body := env.Chunks.Chunk(x, z); body != nil {
							bodies = append(bodies, body)
						}
					}
				}
				if err := c.QueuePacket(&protocol.ChunkBatchStart{}); err != nil {
					return err
				}
				for _, b := range bodies {
					c.Queue(b)
				}
				if err := c.QueuePacket(&protocol.ChunkBatchFinished{BatchSize: int32(len(bodies))}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inView(x, z, cx, cz, r int32) bool {
	return x >= cx-r && x <= cx+r && z >= cz-r && z <= cz+r
}

// forgotten lists the columns of the view around (ox, oz) that are outside
// the view around (cx, cz).
func forgotten(ox, oz, cx, cz, r int32) []protocol.ForgetLevelChunk {
	var out []protocol.ForgetLevelChunk
	for x := ox - r; x <= ox+r; x++ {
		for z := oz - r; z <= oz+r; z++ {
			if !inView(x, z, cx, cz, r) {
				out = append(out, protocol.ForgetLevelChunk{ChunkX: x, ChunkZ: z})
			}
		}
	}
	return out
}
