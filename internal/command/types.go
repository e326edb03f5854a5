// Package command parses and executes server commands from players, the
// server console and the admin API.
package command

import (
	"errors"
	"time"

	"ionic/internal/conn"
	"ionic/internal/world"
)

var (
	ErrUnknownCommand   = errors.New("command: unknown command")
	ErrDuplicateCommand = errors.New("command: duplicate command name")
	ErrUsage            = errors.New("command: bad usage")
	ErrPlayerOnly       = errors.New("command: only players can run this")
	ErrSenderGone       = errors.New("command: sender no longer exists")
)

// Sender is who issued a command: the server itself or a player entity.
type Sender struct {
	player bool
	entity world.Handle
}

// Server is the console/admin sender.
func Server() Sender { return Sender{} }

// Player is a sender backed by a player entity.
func Player(h world.Handle) Sender { return Sender{player: true, entity: h} }

func (s Sender) IsServer() bool { return !s.player }

// Entity returns the player's entity handle.
func (s Sender) Entity() (world.Handle, bool) { return s.entity, s.player }

func (s Sender) String() string {
	if s.player {
		return "player"
	}
	return "server"
}

// Invocation is one command line waiting to run.
type Invocation struct {
	Sender     Sender
	Line       string // without a leading slash
	Conn       conn.ID
	ReceivedAt time.Time
}
