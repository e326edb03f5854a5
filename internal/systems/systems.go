// Package systems holds the tick systems that make up the simulation and
// registers them with a scheduler.
package systems

import (
	"time"

	"github.com/rs/zerolog"

	"ionic/internal/broadcast"
	"ionic/internal/command"
	"ionic/internal/conn"
	"ionic/internal/dispatch"
	"ionic/internal/protocol"
	"ionic/internal/sched"
	"ionic/internal/world"
)

// Resources named in system access declarations.
const (
	ResEntities = "entities"
	ResBlocks   = "blocks"
	ResClock    = "clock"
	ResConns    = "conns"
	ResOutbound = "outbound"
)

// Config tunes the background systems.
type Config struct {
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	TimeSyncTicks     uint64
	ViewDistance      int32
	Pigs              int
	Seed              int64
}

// DefaultConfig returns the standard intervals.
func DefaultConfig() Config {
	return Config{
		KeepAliveInterval: 15 * time.Second,
		KeepAliveTimeout:  30 * time.Second,
		TimeSyncTicks:     20,
		ViewDistance:      8,
		Pigs:              4,
		Seed:              1,
	}
}

// Env is everything the systems touch.
type Env struct {
	Config     Config
	World      *world.World
	Conns      *conn.Registry
	Registry   *protocol.Registry
	Broadcast  *broadcast.Queue
	Commands   *command.Queue
	CommandEnv *command.Env
	Dispatcher *dispatch.Dispatcher
	Chunks     ChunkSource
	Joins      *JoinQueue
	LAN        *LANAnnouncer // nil disables LAN discovery
	Log        zerolog.Logger
}

// Register adds every system to s.
func Register(s *sched.Scheduler, env *Env) error {
	if env.Chunks == nil {
		env.Chunks = EmptyChunks{}
	}

	if env.Joins != nil {
		s.AddSystem(sched.PhaseInbound, Join(env))
	}
	s.AddSystem(sched.PhaseInbound, Inbound(env))

	bg := sched.NewSet("background")
	bg.Add(Sweep(env))
	bg.Add(DayCycle(env))
	bg.Add(KeepAlive(env))
	bg.Add(ServerCommands(env))
	bg.Add(ProcessBroadcasts(env))
	bg.Add(EntityUpdates(env))
	bg.Add(ChunkStreaming(env))
	if env.LAN != nil {
		bg.Add(LanPinger(env))
	}
	s.Add(sched.PhaseBackground, bg)

	s.Add(sched.PhasePhysics, Physics(env.World))

	mobs := sched.NewSet("mobs")
	if err := mobs.AddParallel(PigWander(env)); err != nil {
		return err
	}
	s.Add(sched.PhaseMobs, mobs)

	s.AddSystem(sched.PhaseFlush, Flush(env))
	return nil
}

// Fanout marshals p once and queues it on every joined connection except
// the one with id except.
func Fanout(env *Env, p protocol.Packet, except conn.ID) error {
	body, err := env.Registry.Marshal(protocol.StatePlay, p)
	if err != nil {
		return err
	}
	for _, c := range env.Conns.Playing() {
		if _, joined := c.Entity(); joined && c.ID() != except {
			c.Queue(body)
		}
	}
	return nil
}
