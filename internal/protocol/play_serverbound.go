package protocol

import (
	"fmt"

	"ionic/internal/codec"
)

// AcceptTeleportation confirms a player_position teleport.
type AcceptTeleportation struct {
	TeleportID int32
}

func (*AcceptTeleportation) Name() string              { return "accept_teleportation" }
func (p *AcceptTeleportation) Encode(e *codec.Encoder) { e.WriteVarInt(p.TeleportID) }
func (p *AcceptTeleportation) Decode(d *codec.Decoder) (err error) {
	p.TeleportID, err = d.ReadVarInt()
	return err
}

// ChatCommand is an unsigned slash command without the leading slash.
type ChatCommand struct {
	Command string
}

func (*ChatCommand) Name() string              { return "chat_command" }
func (p *ChatCommand) Encode(e *codec.Encoder) { e.WriteString(p.Command) }
func (p *ChatCommand) Decode(d *codec.Decoder) (err error) {
	p.Command, err = d.ReadString(256)
	return err
}

// MessageSignatureLen is the fixed size of a chat signature.
const MessageSignatureLen = 256

// Chat is a player chat message. Signatures are carried but not verified.
type Chat struct {
	Message      string
	Timestamp    int64
	Salt         int64
	Signature    []byte // nil or MessageSignatureLen bytes
	MessageCount int32
	Acknowledged [3]byte
}

func (*Chat) Name() string { return "chat" }

func (p *Chat) Encode(e *codec.Encoder) {
	e.WriteString(p.Message)
	e.WriteInt64(p.Timestamp)
	e.WriteInt64(p.Salt)
	e.WriteBool(p.Signature != nil)
	if p.Signature != nil {
		e.WriteBytes(p.Signature)
	}
	e.WriteVarInt(p.MessageCount)
	e.WriteBytes(p.Acknowledged[:])
}

func (p *Chat) Decode(d *codec.Decoder) (err error) {
	if p.Message, err = d.ReadString(256); err != nil {
		return err
	}
	if p.Timestamp, err = d.ReadInt64(); err != nil {
		return err
	}
	if p.Salt, err = d.ReadInt64(); err != nil {
		return err
	}
	sig, err := codec.DecodeOptional(d, func(d *codec.Decoder) ([]byte, error) {
		b, err := d.ReadBytes(MessageSignatureLen)
		return append([]byte(nil), b...), err
	})
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if sig != nil {
		p.Signature = *sig
	}
	if p.MessageCount, err = d.ReadVarInt(); err != nil {
		return err
	}
	ack, err := d.ReadBytes(3)
	if err != nil {
		return err
	}
	copy(p.Acknowledged[:], ack)
	return nil
}

// ChunkBatchReceived reports the client's chunk processing rate.
type ChunkBatchReceived struct {
	ChunksPerTick float32
}

func (*ChunkBatchReceived) Name() string              { return "chunk_batch_received" }
func (p *ChunkBatchReceived) Encode(e *codec.Encoder) { e.WriteFloat32(p.ChunksPerTick) }
func (p *ChunkBatchReceived) Decode(d *codec.Decoder) (err error) {
	p.ChunksPerTick, err = d.ReadFloat32()
	return err
}

// CommandSuggestion asks for tab completions of a partial command.
type CommandSuggestion struct {
	TransactionID int32
	Input         string
}

func (*CommandSuggestion) Name() string { return "command_suggestion" }

func (p *CommandSuggestion) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.TransactionID)
	e.WriteString(p.Input)
}

func (p *CommandSuggestion) Decode(d *codec.Decoder) (err error) {
	if p.TransactionID, err = d.ReadVarInt(); err != nil {
		return err
	}
	p.Input, err = d.ReadString(32500)
	return err
}

// ContainerClose closes the open window. Window ids below 128 encode the
// same as a varint and as an unsigned byte.
type ContainerClose struct {
	WindowID int32
}

func (*ContainerClose) Name() string              { return "container_close" }
func (p *ContainerClose) Encode(e *codec.Encoder) { e.WriteVarInt(p.WindowID) }
func (p *ContainerClose) Decode(d *codec.Decoder) (err error) {
	p.WindowID, err = d.ReadVarInt()
	return err
}

// KeepAlive is used in both directions of the play state.
type KeepAlive struct {
	ID int64
}

func (*KeepAlive) Name() string              { return "keep_alive" }
func (p *KeepAlive) Encode(e *codec.Encoder) { e.WriteInt64(p.ID) }
func (p *KeepAlive) Decode(d *codec.Decoder) (err error) {
	p.ID, err = d.ReadInt64()
	return err
}

type MovePlayerPos struct {
	X, Y, Z  float64
	OnGround bool
}

func (*MovePlayerPos) Name() string { return "move_player_pos" }

func (p *MovePlayerPos) Encode(e *codec.Encoder) {
	e.WriteFloat64(p.X)
	e.WriteFloat64(p.Y)
	e.WriteFloat64(p.Z)
	e.WriteBool(p.OnGround)
}

func (p *MovePlayerPos) Decode(d *codec.Decoder) (err error) {
	if p.X, p.Y, p.Z, err = readVec3(d); err != nil {
		return err
	}
	p.OnGround, err = d.ReadBool()
	return err
}

type MovePlayerPosRot struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	OnGround   bool
}

func (*MovePlayerPosRot) Name() string { return "move_player_pos_rot" }

func (p *MovePlayerPosRot) Encode(e *codec.Encoder) {
	e.WriteFloat64(p.X)
	e.WriteFloat64(p.Y)
	e.WriteFloat64(p.Z)
	e.WriteFloat32(p.Yaw)
	e.WriteFloat32(p.Pitch)
	e.WriteBool(p.OnGround)
}

func (p *MovePlayerPosRot) Decode(d *codec.Decoder) (err error) {
	if p.X, p.Y, p.Z, err = readVec3(d); err != nil {
		return err
	}
	if p.Yaw, err = d.ReadFloat32(); err != nil {
		return err
	}
	if p.Pitch, err = d.ReadFloat32(); err != nil {
		return err
	}
	p.OnGround, err = d.ReadBool()
	return err
}

// Player action statuses.
const (
	ActionStartDigging   = 0
	ActionCancelDigging  = 1
	ActionFinishDigging  = 2
	ActionDropStack      = 3
	ActionDropItem       = 4
	ActionReleaseUseItem = 5
	ActionSwapItemInHand = 6
)

// PlayerAction reports digging and item actions against a block.
type PlayerAction struct {
	Status   int32
	Location codec.Position
	Face     uint8
	Sequence int32
}

func (*PlayerAction) Name() string { return "player_action" }

func (p *PlayerAction) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.Status)
	e.WritePosition(p.Location)
	e.WriteUint8(p.Face)
	e.WriteVarInt(p.Sequence)
}

func (p *PlayerAction) Decode(d *codec.Decoder) (err error) {
	if p.Status, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Location, err = d.ReadPosition(); err != nil {
		return err
	}
	if p.Face, err = d.ReadUint8(); err != nil {
		return err
	}
	if p.Face > 5 {
		return fmt.Errorf("face %d out of range", p.Face)
	}
	p.Sequence, err = d.ReadVarInt()
	return err
}

// Swing is an arm swing animation. Hand 0 is the main hand, 1 the off hand.
type Swing struct {
	Hand int32
}

func (*Swing) Name() string              { return "swing" }
func (p *Swing) Encode(e *codec.Encoder) { e.WriteVarInt(p.Hand) }
func (p *Swing) Decode(d *codec.Decoder) (err error) {
	if p.Hand, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Hand != 0 && p.Hand != 1 {
		return fmt.Errorf("hand %d out of range", p.Hand)
	}
	return nil
}

func readVec3(d *codec.Decoder) (x, y, z float64, err error) {
	if x, err = d.ReadFloat64(); err != nil {
		return
	}
	if y, err = d.ReadFloat64(); err != nil {
		return
	}
	z, err = d.ReadFloat64()
	return
}
