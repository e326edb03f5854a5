package systems

import (
	"ionic/internal/command"
	"ionic/internal/protocol"
	"ionic/internal/sched"
)

// Inbound dispatches queued play frames. Connections are visited in id
// order and each connection's frames in arrival order. A fatal error
// closes the connection and drops its remaining frames.
func Inbound(env *Env) sched.System {
	return sched.System{
		Name:   "inbound",
		Access: sched.Access{Writes: []string{ResEntities, ResBlocks, ResClock, ResConns, ResOutbound}},
		Run: func(t *sched.Tick) error {
			for _, c := range env.Conns.Playing() {
				// Frames wait in the queue until the join system has
				// spawned the player.
				h, ok := c.Entity()
				if !ok {
					continue
				}
				frames := c.DrainInbound()
				sender := command.Player(h)
				for _, f := range frames {
					err := env.Dispatcher.Dispatch(t.Context, c, sender, f)
					if err == nil {
						continue
					}
					if protocol.IsFatal(err) {
						c.Log().Warn().Err(err).Msg("protocol violation")
						c.Close("protocol: " + err.Error())
						break
					}
				}
			}
			return nil
		},
	}
}

// Flush hands every connection's tick batch to its writer.
func Flush(env *Env) sched.System {
	return sched.System{
		Name:   "flush",
		Access: sched.Access{Reads: []string{ResConns}, Writes: []string{ResOutbound}},
		Run: func(*sched.Tick) error {
			for _, c := range env.Conns.All() {
				if c.Closed() {
					continue
				}
				if err := c.Flush(); err != nil {
					c.Log().Debug().Err(err).Msg("flush failed")
				}
			}
			return nil
		},
	}
}
