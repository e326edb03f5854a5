package systems

import (
	"strings"

	"ionic/internal/broadcast"
	"ionic/internal/conn"
	"ionic/internal/observability"
	"ionic/internal/protocol"
	"ionic/internal/sched"
	"ionic/internal/text"
	"ionic/internal/world"
)

// Close reasons set by the sweep. The part before the first colon is the
// metrics cause.
const (
	ReasonTimeout = "timeout: keep-alive not answered"
	ReasonFlagged = "protocol: "
)

// Sweep removes closed connections and their entities, and disconnects
// connections that timed out or were flagged by a handler.
func Sweep(env *Env) sched.System {
	return sched.System{
		Name:   "connection_sweep",
		Access: sched.Access{Writes: []string{ResConns, ResEntities, ResOutbound}},
		Run: func(t *sched.Tick) error {
			counts := map[protocol.State]int{}
			for _, c := range env.Conns.All() {
				if c.Closed() {
					removeConnection(env, c)
					continue
				}
				if c.State() == protocol.StatePlay && !c.Closing() {
					if reason, ok := c.Flagged(); ok {
						c.Disconnect(&protocol.Disconnect{Reason: text.Plain(reason)}, ReasonFlagged+reason)
					} else if c.KeepAliveExpired(t.Now, env.Config.KeepAliveTimeout) {
						c.Disconnect(&protocol.Disconnect{Reason: text.Plain("Timed out")}, ReasonTimeout)
					}
				}
				counts[c.State()]++
			}
			for _, s := range []protocol.State{protocol.StateHandshake, protocol.StateStatus, protocol.StateLogin, protocol.StatePlay} {
				observability.SetConnections(s.String(), counts[s])
			}
			observability.UpdateWorld(len(env.World.Players()), env.World.Len())
			return nil
		},
	}
}

func removeConnection(env *Env, c *conn.Connection) {
	env.Conns.Remove(c.ID())
	observability.RecordConnectionClosed(closeCause(c.CloseReason()))

	h, ok := c.Entity()
	if !ok {
		return
	}
	e, ok := env.World.Despawn(h)
	if !ok {
		return
	}
	if err := Fanout(env, &protocol.RemoveEntities{EntityIDs: []int32{e.NetID}}, c.ID()); err != nil {
		env.Log.Error().Err(err).Msg("remove_entities encode failed")
	}
	env.Broadcast.Enqueue(broadcast.Message{
		Text:   text.Colored(e.Username+" left the game", "yellow"),
		Except: c.ID(),
	})
	env.Log.Info().
		Str("player", e.Username).
		Uint64("conn", uint64(c.ID())).
		Str("reason", c.CloseReason()).
		Msg("player left")
}

func closeCause(reason string) string {
	cause, _, _ := strings.Cut(reason, ":")
	switch cause {
	case "timeout", "protocol", "eof", "kicked", "shutdown":
		return cause
	default:
		return "other"
	}
}

// KeepAlive sends a keep-alive to every playing connection whose last one
// was sent more than KeepAliveInterval ago and has been answered.
func KeepAlive(env *Env) sched.System {
	return sched.System{
		Name:   "keep_alive",
		Access: sched.Access{Writes: []string{ResConns, ResOutbound}},
		Run: func(t *sched.Tick) error {
			for _, c := range env.Conns.Playing() {
				last := c.LastKeepAlive()
				if !last.IsZero() && t.Now.Sub(last) < env.Config.KeepAliveInterval {
					continue
				}
				id := t.Now.UnixMilli()
				if err := c.BeginKeepAlive(id, t.Now); err != nil {
					continue
				}
				if err := c.QueuePacket(&protocol.KeepAlive{ID: id}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DayCycle advances world time and periodically syncs it to clients.
func DayCycle(env *Env) sched.System {
	return sched.System{
		Name:   "day_cycle",
		Access: sched.Access{Writes: []string{ResClock}},
		Run: func(t *sched.Tick) error {
			env.World.Tick()
			if env.Config.TimeSyncTicks > 0 && t.Number%env.Config.TimeSyncTicks == 0 {
				env.Broadcast.Enqueue(broadcast.Message{Packet: TimePacket(env.World)})
			}
			return nil
		},
	}
}

// TimePacket describes the world clock. A stopped day cycle is sent as a
// negative time of day.
func TimePacket(w *world.World) *protocol.SetTime {
	tod := w.TimeOfDay()
	if !w.DayCycle() {
		tod = -tod
		if tod == 0 {
			tod = -1
		}
	}
	return &protocol.SetTime{WorldAge: w.Age(), TimeOfDay: tod}
}

// ServerCommands runs the commands queued since the last tick.
func ServerCommands(env *Env) sched.System {
	return sched.System{
		Name: "server_commands",
		Access: sched.Access{
			Reads:  []string{ResConns},
			Writes: []string{ResEntities, ResBlocks, ResClock, ResOutbound},
		},
		Run: func(*sched.Tick) error {
			if env.Commands == nil || env.CommandEnv == nil {
				return nil
			}
			for _, inv := range env.Commands.Drain() {
				env.CommandEnv.Commands.Run(env.CommandEnv, inv)
			}
			return nil
		},
	}
}

// ProcessBroadcasts delivers queued broadcast messages.
func ProcessBroadcasts(env *Env) sched.System {
	return sched.System{
		Name:   "broadcast",
		Access: sched.Access{Reads: []string{ResConns}, Writes: []string{ResOutbound}},
		Run: func(*sched.Tick) error {
			env.Broadcast.Process(broadcast.Players(env.Conns))
			return nil
		},
	}
}
