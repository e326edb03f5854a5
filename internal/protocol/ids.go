package protocol

// Pinned protocol version.
const (
	ProtocolVersion = 767
	VersionName     = "1.21.1"
)

const (
	// Handshake (C→S)
	C2SIntention = 0x00

	// Status (C→S)
	C2SStatusRequest = 0x00
	C2SPingRequest   = 0x01

	// Status (S→C)
	S2CStatusResponse = 0x00
	S2CPongResponse   = 0x01

	// Login (C→S)
	C2SHello             = 0x00
	C2SKey               = 0x01
	C2SCustomQueryAnswer = 0x02
	C2SLoginAcknowledged = 0x03

	// Login (S→C)
	S2CLoginDisconnect  = 0x00
	S2CHello            = 0x01
	S2CGameProfile      = 0x02
	S2CLoginCompression = 0x03

	// Play (C→S)
	C2SAcceptTeleportation = 0x00
	C2SChatCommand         = 0x04
	C2SChat                = 0x06
	C2SChunkBatchReceived  = 0x08
	C2SCommandSuggestion   = 0x0B
	C2SContainerClose      = 0x0F
	C2SKeepAlive           = 0x18
	C2SMovePlayerPos       = 0x1A
	C2SMovePlayerPosRot    = 0x1B
	C2SPlayerAction        = 0x24
	C2SSwing               = 0x36

	// Play (S→C)
	S2CAddEntity           = 0x01
	S2CBlockUpdate         = 0x09
	S2CChunkBatchFinished  = 0x0C
	S2CChunkBatchStart     = 0x0D
	S2CCommandSuggestions  = 0x10
	S2CContainerSetContent = 0x13
	S2CDisconnect          = 0x1D
	S2CForgetLevelChunk    = 0x21
	S2CKeepAlive           = 0x26
	S2CMoveEntityPos       = 0x2E
	S2COpenScreen          = 0x33
	S2CPlayerPosition      = 0x40
	S2CRemoveEntities      = 0x42
	S2CSetChunkCacheCenter = 0x54
	S2CSetTime             = 0x64
	S2CSystemChat          = 0x6C
	S2CTeleportEntity      = 0x70
)
