package command

import (
	"github.com/rs/zerolog"

	"ionic/internal/broadcast"
	"ionic/internal/conn"
	"ionic/internal/protocol"
	"ionic/internal/text"
	"ionic/internal/world"
)

// Env is what commands may touch. Commands run inside the tick, so World
// access needs no further synchronization.
type Env struct {
	World     *world.World
	Broadcast *broadcast.Queue
	Conns     *conn.Registry
	Commands  *Registry
	Log       zerolog.Logger

	// Console receives replies addressed to the server sender.
	Console func(text.Component)
}

// SenderName resolves the display name of sender.
func (e *Env) SenderName(s Sender) (string, error) {
	h, ok := s.Entity()
	if !ok {
		return "Server", nil
	}
	ent, ok := e.World.Get(h)
	if !ok {
		return "", ErrSenderGone
	}
	return ent.Username, nil
}

// SenderConn resolves a player sender's connection.
func (e *Env) SenderConn(s Sender) (*conn.Connection, error) {
	h, ok := s.Entity()
	if !ok {
		return nil, ErrPlayerOnly
	}
	ent, ok := e.World.Get(h)
	if !ok {
		return nil, ErrSenderGone
	}
	c, ok := e.Conns.Get(conn.ID(ent.ConnID))
	if !ok {
		return nil, ErrSenderGone
	}
	return c, nil
}

// Reply sends msg to the sender only.
func (e *Env) Reply(s Sender, msg text.Component) {
	if s.IsServer() {
		if e.Console != nil {
			e.Console(msg)
		} else {
			e.Log.Info().Str("reply", msg.String()).Msg("command")
		}
		return
	}
	c, err := e.SenderConn(s)
	if err != nil {
		return
	}
	if err := c.QueuePacket(&protocol.SystemChat{Message: msg}); err != nil {
		e.Log.Debug().Err(err).Msg("reply dropped")
	}
}
