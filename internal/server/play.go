package server

import (
	"errors"
	"math"
	"time"

	"ionic/internal/broadcast"
	"ionic/internal/codec"
	"ionic/internal/command"
	"ionic/internal/dispatch"
	"ionic/internal/protocol"
	"ionic/internal/text"
	"ionic/internal/world"
)

// Movement and interaction bounds.
const (
	MaxHorizontal = 3.0e7
	MaxVertical   = 2.0e7
	BlockReach    = 6.0
	eyeHeight     = 1.62
)

var (
	ErrIllegalMove  = errors.New("server: illegal movement")
	ErrIllegalChat  = errors.New("server: illegal characters in chat")
	ErrBadHand      = errors.New("server: invalid hand")
	ErrNotJoined    = errors.New("server: sender has no entity")
	ErrChatThrottle = errors.New("server: chat rate limited")
	ErrBadBatchRate = errors.New("server: invalid chunk batch rate")
)

func (s *Server) registerPlay() error {
	d := s.dispatcher
	st := protocol.StatePlay
	errs := []error{
		dispatch.On(d, st, "teleport_confirm", s.onAcceptTeleportation),
		dispatch.On(d, st, "keep_alive", s.onKeepAlive),
		dispatch.On(d, st, "move_pos", s.onMovePlayerPos),
		dispatch.On(d, st, "move_pos_rot", s.onMovePlayerPosRot),
		dispatch.On(d, st, "block_break", s.onPlayerAction),
		dispatch.On(d, st, "swing", s.onSwing),
		dispatch.On(d, st, "chunk_rate", s.onChunkBatchReceived),
		dispatch.On(d, st, "container_close", s.onContainerClose),
		dispatch.On(d, st, "suggestions", s.onCommandSuggestion),
		dispatch.On(d, st, "chat_command", s.onChatCommand),
		dispatch.On(d, st, "chat", s.onChat),
	}
	return errors.Join(errs...)
}

func player(ctx *dispatch.Context) (*world.Entity, error) {
	h, ok := ctx.Sender.Entity()
	if !ok {
		return nil, ErrNotJoined
	}
	e, ok := ctx.Services.World.Get(h)
	if !ok {
		return nil, ErrNotJoined
	}
	return e, nil
}

func (s *Server) onAcceptTeleportation(ctx *dispatch.Context, p *protocol.AcceptTeleportation) error {
	if !ctx.Conn.ConfirmTeleport(p.TeleportID) {
		ctx.Log.Debug().Int32("teleport", p.TeleportID).Msg("stale teleport confirmation")
	}
	return nil
}

func (s *Server) onKeepAlive(ctx *dispatch.Context, p *protocol.KeepAlive) error {
	if err := ctx.Conn.AckKeepAlive(p.ID, time.Now()); err != nil {
		ctx.Conn.Flag("Invalid keep-alive")
		return err
	}
	return nil
}

func (s *Server) onMovePlayerPos(ctx *dispatch.Context, p *protocol.MovePlayerPos) error {
	return s.move(ctx, world.Vec3{X: p.X, Y: p.Y, Z: p.Z}, nil, p.OnGround)
}

func (s *Server) onMovePlayerPosRot(ctx *dispatch.Context, p *protocol.MovePlayerPosRot) error {
	return s.move(ctx, world.Vec3{X: p.X, Y: p.Y, Z: p.Z}, &[2]float32{p.Yaw, p.Pitch}, p.OnGround)
}

// move applies a client position. Updates sent before the client confirms
// a server teleport describe the old position and are dropped.
func (s *Server) move(ctx *dispatch.Context, pos world.Vec3, rot *[2]float32, onGround bool) error {
	if ctx.Conn.AwaitingTeleport() {
		return nil
	}
	if !validPosition(pos) || (rot != nil && !validRotation(rot[0], rot[1])) {
		ctx.Conn.Flag("Invalid move player packet received")
		return ErrIllegalMove
	}
	e, err := player(ctx)
	if err != nil {
		return err
	}
	e.Pos = pos
	e.OnGround = onGround
	if rot != nil {
		e.Yaw, e.Pitch = rot[0], rot[1]
	}
	return nil
}

func validPosition(p world.Vec3) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(p.X) <= MaxHorizontal && math.Abs(p.Z) <= MaxHorizontal && math.Abs(p.Y) <= MaxVertical
}

func validRotation(yaw, pitch float32) bool {
	y, p := float64(yaw), float64(pitch)
	return !math.IsNaN(y) && !math.IsInf(y, 0) && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// onPlayerAction breaks blocks when digging finishes within reach. Anything
// else gets the true block state back so the client stays in sync.
func (s *Server) onPlayerAction(ctx *dispatch.Context, p *protocol.PlayerAction) error {
	if p.Status != protocol.ActionFinishDigging {
		return nil
	}
	e, err := player(ctx)
	if err != nil {
		return err
	}
	w := ctx.Services.World
	if p.Location.Valid() && inReach(e.Pos, p.Location) && w.SetBlock(p.Location, world.BlockAir) {
		ctx.Services.Broadcast.Enqueue(broadcast.Message{
			Packet: &protocol.BlockUpdate{Location: p.Location, BlockStateID: world.BlockAir},
		})
		return nil
	}
	return ctx.Conn.QueuePacket(&protocol.BlockUpdate{Location: p.Location, BlockStateID: w.Block(p.Location)})
}

func inReach(from world.Vec3, pos codec.Position) bool {
	dx := float64(pos.X) + 0.5 - from.X
	dy := float64(pos.Y) + 0.5 - (from.Y + eyeHeight)
	dz := float64(pos.Z) + 0.5 - from.Z
	return dx*dx+dy*dy+dz*dz <= BlockReach*BlockReach
}

func (s *Server) onSwing(ctx *dispatch.Context, p *protocol.Swing) error {
	if p.Hand != 0 && p.Hand != 1 {
		ctx.Conn.Flag("Invalid hand")
		return ErrBadHand
	}
	return nil
}

func (s *Server) onChunkBatchReceived(ctx *dispatch.Context, p *protocol.ChunkBatchReceived) error {
	v := float64(p.ChunksPerTick)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		ctx.Conn.Flag("Invalid chunk batch acknowledgement")
		return ErrBadBatchRate
	}
	return nil
}

func (s *Server) onContainerClose(ctx *dispatch.Context, p *protocol.ContainerClose) error {
	if ctx.Conn.Window() == p.WindowID {
		ctx.Conn.OpenWindow(0)
	}
	return nil
}

func (s *Server) onCommandSuggestion(ctx *dispatch.Context, p *protocol.CommandSuggestion) error {
	start, length, matches := s.commands.Suggest(s.cmdEnv, p.Input)
	out := &protocol.CommandSuggestions{
		TransactionID: p.TransactionID,
		Start:         int32(start),
		Length:        int32(length),
	}
	for _, m := range matches {
		out.Matches = append(out.Matches, protocol.SuggestionMatch{Content: m})
	}
	return ctx.Conn.QueuePacket(out)
}

func (s *Server) onChatCommand(ctx *dispatch.Context, p *protocol.ChatCommand) error {
	if !s.allowChat(ctx) {
		return ErrChatThrottle
	}
	if !ctx.Services.Commands.Enqueue(command.Invocation{
		Sender:     ctx.Sender,
		Line:       p.Command,
		Conn:       ctx.Conn.ID(),
		ReceivedAt: time.Now(),
	}) {
		return ctx.Conn.QueuePacket(&protocol.SystemChat{Message: text.Colored("The server is busy, try again", "red")})
	}
	return nil
}

func (s *Server) onChat(ctx *dispatch.Context, p *protocol.Chat) error {
	if !s.allowChat(ctx) {
		return ErrChatThrottle
	}
	if !validChat(p.Message) {
		ctx.Conn.Flag("Illegal characters in chat")
		return ErrIllegalChat
	}
	line := command.SayLine(ctx.Conn.Username(), p.Message)
	ctx.Log.Info().Str("player", ctx.Conn.Username()).Str("message", p.Message).Msg("chat")
	ctx.Services.Broadcast.Broadcast(text.Plain(line), false)
	return nil
}

func (s *Server) allowChat(ctx *dispatch.Context) bool {
	if s.chat.Allow(ctx.Conn.Username()) {
		return true
	}
	ctx.Conn.QueuePacket(&protocol.SystemChat{Message: text.Colored("You are sending messages too quickly", "red")})
	return false
}

// validChat rejects section signs, DEL and control characters.
func validChat(msg string) bool {
	for _, r := range msg {
		if r == '§' || r < ' ' || r == 0x7f {
			return false
		}
	}
	return true
}
