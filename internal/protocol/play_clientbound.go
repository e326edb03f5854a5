package protocol

import (
	"github.com/google/uuid"

	"ionic/internal/codec"
	"ionic/internal/text"
)

// AddEntity spawns a non-player or player entity on the client.
type AddEntity struct {
	EntityID         int32
	UUID             uuid.UUID
	Type             int32
	X, Y, Z          float64
	Pitch, Yaw, Head uint8 // rotation bytes, see codec.AngleByte
	Data             int32
	VelX, VelY, VelZ int16
}

func (*AddEntity) Name() string { return "add_entity" }

func (p *AddEntity) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.EntityID)
	e.WriteUUID(p.UUID)
	e.WriteVarInt(p.Type)
	e.WriteFloat64(p.X)
	e.WriteFloat64(p.Y)
	e.WriteFloat64(p.Z)
	e.WriteByte(p.Pitch)
	e.WriteByte(p.Yaw)
	e.WriteByte(p.Head)
	e.WriteVarInt(p.Data)
	e.WriteInt16(p.VelX)
	e.WriteInt16(p.VelY)
	e.WriteInt16(p.VelZ)
}

func (p *AddEntity) Decode(d *codec.Decoder) (err error) {
	if p.EntityID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.UUID, err = d.ReadUUID(); err != nil {
		return err
	}
	if p.Type, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.X, p.Y, p.Z, err = readVec3(d); err != nil {
		return err
	}
	rot, err := d.ReadBytes(3)
	if err != nil {
		return err
	}
	p.Pitch, p.Yaw, p.Head = rot[0], rot[1], rot[2]
	if p.Data, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.VelX, err = d.ReadInt16(); err != nil {
		return err
	}
	if p.VelY, err = d.ReadInt16(); err != nil {
		return err
	}
	p.VelZ, err = d.ReadInt16()
	return err
}

// BlockUpdate replaces one block on the client.
type BlockUpdate struct {
	Location     codec.Position
	BlockStateID int32
}

func (*BlockUpdate) Name() string { return "block_update" }

func (p *BlockUpdate) Encode(e *codec.Encoder) {
	e.WritePosition(p.Location)
	e.WriteVarInt(p.BlockStateID)
}

func (p *BlockUpdate) Decode(d *codec.Decoder) (err error) {
	if p.Location, err = d.ReadPosition(); err != nil {
		return err
	}
	p.BlockStateID, err = d.ReadVarInt()
	return err
}

type ChunkBatchStart struct{}

func (*ChunkBatchStart) Name() string                { return "chunk_batch_start" }
func (*ChunkBatchStart) Encode(*codec.Encoder)       {}
func (*ChunkBatchStart) Decode(*codec.Decoder) error { return nil }

// ChunkBatchFinished closes a batch of BatchSize chunks.
type ChunkBatchFinished struct {
	BatchSize int32
}

func (*ChunkBatchFinished) Name() string              { return "chunk_batch_finished" }
func (p *ChunkBatchFinished) Encode(e *codec.Encoder) { e.WriteVarInt(p.BatchSize) }
func (p *ChunkBatchFinished) Decode(d *codec.Decoder) (err error) {
	p.BatchSize, err = d.ReadVarInt()
	return err
}

// SuggestionMatch is one tab completion.
type SuggestionMatch struct {
	Content string
	Tooltip *text.Component
}

// CommandSuggestions answers a command_suggestion request.
type CommandSuggestions struct {
	TransactionID int32
	Start         int32
	Length        int32
	Matches       []SuggestionMatch
}

func (*CommandSuggestions) Name() string { return "command_suggestions" }

func (p *CommandSuggestions) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.TransactionID)
	e.WriteVarInt(p.Start)
	e.WriteVarInt(p.Length)
	codec.EncodeSequence(e, p.Matches, func(e *codec.Encoder, m SuggestionMatch) {
		e.WriteString(m.Content)
		codec.EncodeOptional(e, m.Tooltip, func(e *codec.Encoder, c text.Component) { c.Encode(e) })
	})
}

func (p *CommandSuggestions) Decode(d *codec.Decoder) (err error) {
	if p.TransactionID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Start, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Length, err = d.ReadVarInt(); err != nil {
		return err
	}
	p.Matches, err = codec.DecodeSequence(d, 0, func(d *codec.Decoder) (SuggestionMatch, error) {
		var m SuggestionMatch
		var err error
		if m.Content, err = d.ReadString(0); err != nil {
			return m, err
		}
		m.Tooltip, err = codec.DecodeOptional(d, text.Decode)
		return m, err
	})
	return err
}

// ContainerSetContent replaces every slot of a window.
type ContainerSetContent struct {
	WindowID    int32
	StateID     int32
	Slots       []Slot
	CarriedItem Slot
}

func (*ContainerSetContent) Name() string { return "container_set_content" }

func (p *ContainerSetContent) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.WindowID)
	e.WriteVarInt(p.StateID)
	codec.EncodeSequence(e, p.Slots, EncodeSlot)
	EncodeSlot(e, p.CarriedItem)
}

func (p *ContainerSetContent) Decode(d *codec.Decoder) (err error) {
	if p.WindowID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.StateID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Slots, err = codec.DecodeSequence(d, 0, DecodeSlot); err != nil {
		return err
	}
	p.CarriedItem, err = DecodeSlot(d)
	return err
}

// Disconnect closes a play connection with a reason.
type Disconnect struct {
	Reason text.Component
}

func (*Disconnect) Name() string              { return "disconnect" }
func (p *Disconnect) Encode(e *codec.Encoder) { p.Reason.Encode(e) }
func (p *Disconnect) Decode(d *codec.Decoder) (err error) {
	p.Reason, err = text.Decode(d)
	return err
}

// MoveEntityPos moves an entity by deltas in 1/4096ths of a block.
type MoveEntityPos struct {
	EntityID   int32
	DX, DY, DZ int16
	OnGround   bool
}

func (*MoveEntityPos) Name() string { return "move_entity_pos" }

func (p *MoveEntityPos) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.EntityID)
	e.WriteInt16(p.DX)
	e.WriteInt16(p.DY)
	e.WriteInt16(p.DZ)
	e.WriteBool(p.OnGround)
}

func (p *MoveEntityPos) Decode(d *codec.Decoder) (err error) {
	if p.EntityID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.DX, err = d.ReadInt16(); err != nil {
		return err
	}
	if p.DY, err = d.ReadInt16(); err != nil {
		return err
	}
	if p.DZ, err = d.ReadInt16(); err != nil {
		return err
	}
	p.OnGround, err = d.ReadBool()
	return err
}

// OpenScreen opens a container window.
type OpenScreen struct {
	WindowID   int32
	WindowType int32
	Title      text.Component
}

func (*OpenScreen) Name() string { return "open_screen" }

func (p *OpenScreen) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.WindowID)
	e.WriteVarInt(p.WindowType)
	p.Title.Encode(e)
}

func (p *OpenScreen) Decode(d *codec.Decoder) (err error) {
	if p.WindowID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.WindowType, err = d.ReadVarInt(); err != nil {
		return err
	}
	p.Title, err = text.Decode(d)
	return err
}

// PlayerPosition teleports the receiving player. The client answers with
// accept_teleportation carrying TeleportID.
type PlayerPosition struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	Flags      uint8
	TeleportID int32
}

func (*PlayerPosition) Name() string { return "player_position" }

func (p *PlayerPosition) Encode(e *codec.Encoder) {
	e.WriteFloat64(p.X)
	e.WriteFloat64(p.Y)
	e.WriteFloat64(p.Z)
	e.WriteFloat32(p.Yaw)
	e.WriteFloat32(p.Pitch)
	e.WriteUint8(p.Flags)
	e.WriteVarInt(p.TeleportID)
}

func (p *PlayerPosition) Decode(d *codec.Decoder) (err error) {
	if p.X, p.Y, p.Z, err = readVec3(d); err != nil {
		return err
	}
	if p.Yaw, err = d.ReadFloat32(); err != nil {
		return err
	}
	if p.Pitch, err = d.ReadFloat32(); err != nil {
		return err
	}
	if p.Flags, err = d.ReadUint8(); err != nil {
		return err
	}
	p.TeleportID, err = d.ReadVarInt()
	return err
}

// RemoveEntities despawns entities by network id.
type RemoveEntities struct {
	EntityIDs []int32
}

func (*RemoveEntities) Name() string { return "remove_entities" }

func (p *RemoveEntities) Encode(e *codec.Encoder) {
	codec.EncodeSequence(e, p.EntityIDs, codec.WriteVarIntElem)
}

func (p *RemoveEntities) Decode(d *codec.Decoder) (err error) {
	p.EntityIDs, err = codec.DecodeSequence(d, 0, codec.VarIntElem)
	return err
}

// ForgetLevelChunk unloads one column on the client. Z precedes X on the
// wire.
type ForgetLevelChunk struct {
	ChunkX, ChunkZ int32
}

func (*ForgetLevelChunk) Name() string { return "forget_level_chunk" }

func (p *ForgetLevelChunk) Encode(e *codec.Encoder) {
	e.WriteInt32(p.ChunkZ)
	e.WriteInt32(p.ChunkX)
}

func (p *ForgetLevelChunk) Decode(d *codec.Decoder) (err error) {
	if p.ChunkZ, err = d.ReadInt32(); err != nil {
		return err
	}
	p.ChunkX, err = d.ReadInt32()
	return err
}

// SetChunkCacheCenter moves the client's chunk view center.
type SetChunkCacheCenter struct {
	ChunkX, ChunkZ int32
}

func (*SetChunkCacheCenter) Name() string { return "set_chunk_cache_center" }

func (p *SetChunkCacheCenter) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.ChunkX)
	e.WriteVarInt(p.ChunkZ)
}

func (p *SetChunkCacheCenter) Decode(d *codec.Decoder) (err error) {
	if p.ChunkX, err = d.ReadVarInt(); err != nil {
		return err
	}
	p.ChunkZ, err = d.ReadVarInt()
	return err
}

// SetTime updates world age and time of day. A negative time of day stops
// the client's own daylight advance.
type SetTime struct {
	WorldAge  int64
	TimeOfDay int64
}

func (*SetTime) Name() string { return "set_time" }

func (p *SetTime) Encode(e *codec.Encoder) {
	e.WriteInt64(p.WorldAge)
	e.WriteInt64(p.TimeOfDay)
}

func (p *SetTime) Decode(d *codec.Decoder) (err error) {
	if p.WorldAge, err = d.ReadInt64(); err != nil {
		return err
	}
	p.TimeOfDay, err = d.ReadInt64()
	return err
}

// SystemChat shows a server message in chat, or above the hotbar when
// Overlay is set.
type SystemChat struct {
	Message text.Component
	Overlay bool
}

func (*SystemChat) Name() string { return "system_chat" }

func (p *SystemChat) Encode(e *codec.Encoder) {
	p.Message.Encode(e)
	e.WriteBool(p.Overlay)
}

func (p *SystemChat) Decode(d *codec.Decoder) (err error) {
	if p.Message, err = text.Decode(d); err != nil {
		return err
	}
	p.Overlay, err = d.ReadBool()
	return err
}

// TeleportEntity sets an entity's absolute position.
type TeleportEntity struct {
	EntityID   int32
	X, Y, Z    float64
	Yaw, Pitch uint8
	OnGround   bool
}

func (*TeleportEntity) Name() string { return "teleport_entity" }

func (p *TeleportEntity) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.EntityID)
	e.WriteFloat64(p.X)
	e.WriteFloat64(p.Y)
	e.WriteFloat64(p.Z)
	e.WriteByte(p.Yaw)
	e.WriteByte(p.Pitch)
	e.WriteBool(p.OnGround)
}

func (p *TeleportEntity) Decode(d *codec.Decoder) (err error) {
	if p.EntityID, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.X, p.Y, p.Z, err = readVec3(d); err != nil {
		return err
	}
	if p.Yaw, err = d.ReadByte(); err != nil {
		return err
	}
	if p.Pitch, err = d.ReadByte(); err != nil {
		return err
	}
	p.OnGround, err = d.ReadBool()
	return err
}
