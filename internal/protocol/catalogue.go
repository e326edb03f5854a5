package protocol

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry holding the full catalogue.
// It is built on first use and never modified afterwards.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterCatalogue(defaultRegistry)
	})
	return defaultRegistry
}

// RegisterCatalogue registers every packet the server speaks.
// It panics on a duplicate key, which is a programming error.
func RegisterCatalogue(r *Registry) {
	const in, out = Serverbound, Clientbound

	r.MustRegister(
		desc(StateHandshake, in, C2SIntention, func() Packet { return &Intention{} }),

		desc(StateStatus, in, C2SStatusRequest, func() Packet { return &StatusRequest{} }),
		desc(StateStatus, in, C2SPingRequest, func() Packet { return &PingRequest{} }),
		desc(StateStatus, out, S2CStatusResponse, func() Packet { return &StatusResponse{} }),
		desc(StateStatus, out, S2CPongResponse, func() Packet { return &PongResponse{} }),

		desc(StateLogin, in, C2SHello, func() Packet { return &Hello{} }),
		desc(StateLogin, in, C2SKey, func() Packet { return &Key{} }),
		desc(StateLogin, in, C2SCustomQueryAnswer, func() Packet { return &CustomQueryAnswer{} }),
		desc(StateLogin, in, C2SLoginAcknowledged, func() Packet { return &LoginAcknowledged{} }),
		desc(StateLogin, out, S2CLoginDisconnect, func() Packet { return &LoginDisconnect{} }),
		desc(StateLogin, out, S2CHello, func() Packet { return &EncryptionRequest{} }),
		desc(StateLogin, out, S2CGameProfile, func() Packet { return &GameProfile{} }),
		desc(StateLogin, out, S2CLoginCompression, func() Packet { return &LoginCompression{} }),

		desc(StatePlay, in, C2SAcceptTeleportation, func() Packet { return &AcceptTeleportation{} }),
		desc(StatePlay, in, C2SChatCommand, func() Packet { return &ChatCommand{} }),
		desc(StatePlay, in, C2SChat, func() Packet { return &Chat{} }),
		desc(StatePlay, in, C2SChunkBatchReceived, func() Packet { return &ChunkBatchReceived{} }),
		desc(StatePlay, in, C2SCommandSuggestion, func() Packet { return &CommandSuggestion{} }),
		desc(StatePlay, in, C2SContainerClose, func() Packet { return &ContainerClose{} }),
		desc(StatePlay, in, C2SKeepAlive, func() Packet { return &KeepAlive{} }),
		desc(StatePlay, in, C2SMovePlayerPos, func() Packet { return &MovePlayerPos{} }),
		desc(StatePlay, in, C2SMovePlayerPosRot, func() Packet { return &MovePlayerPosRot{} }),
		desc(StatePlay, in, C2SPlayerAction, func() Packet { return &PlayerAction{} }),
		desc(StatePlay, in, C2SSwing, func() Packet { return &Swing{} }),

		desc(StatePlay, out, S2CAddEntity, func() Packet { return &AddEntity{} }),
		desc(StatePlay, out, S2CBlockUpdate, func() Packet { return &BlockUpdate{} }),
		desc(StatePlay, out, S2CChunkBatchFinished, func() Packet { return &ChunkBatchFinished{} }),
		desc(StatePlay, out, S2CChunkBatchStart, func() Packet { return &ChunkBatchStart{} }),
		desc(StatePlay, out, S2CCommandSuggestions, func() Packet { return &CommandSuggestions{} }),
		desc(StatePlay, out, S2CContainerSetContent, func() Packet { return &ContainerSetContent{} }),
		desc(StatePlay, out, S2CDisconnect, func() Packet { return &Disconnect{} }),
		desc(StatePlay, out, S2CForgetLevelChunk, func() Packet { return &ForgetLevelChunk{} }),
		desc(StatePlay, out, S2CKeepAlive, func() Packet { return &KeepAlive{} }),
		desc(StatePlay, out, S2CMoveEntityPos, func() Packet { return &MoveEntityPos{} }),
		desc(StatePlay, out, S2COpenScreen, func() Packet { return &OpenScreen{} }),
		desc(StatePlay, out, S2CPlayerPosition, func() Packet { return &PlayerPosition{} }),
		desc(StatePlay, out, S2CRemoveEntities, func() Packet { return &RemoveEntities{} }),
		desc(StatePlay, out, S2CSetChunkCacheCenter, func() Packet { return &SetChunkCacheCenter{} }),
		desc(StatePlay, out, S2CSetTime, func() Packet { return &SetTime{} }),
		desc(StatePlay, out, S2CSystemChat, func() Packet { return &SystemChat{} }),
		desc(StatePlay, out, S2CTeleportEntity, func() Packet { return &TeleportEntity{} }),
	)
}
