package conn

import (
	"time"

	"github.com/google/uuid"

	"ionic/internal/world"
)

// SetIdentity records the player's name and UUID after login.
func (c *Connection) SetIdentity(name string, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = name
	c.uuid = id
}

func (c *Connection) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Connection) UUID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uuid
}

// SetEntity binds the player's entity once it has joined the world.
func (c *Connection) SetEntity(h world.Handle, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entity = h
	c.joinedAt = now
	c.lastAck = now
}

// Entity returns the player's entity handle, if joined.
func (c *Connection) Entity() (world.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity, c.entity.Valid()
}

// Flag marks the connection for removal by the next sweep. The first
// reason wins.
func (c *Connection) Flag(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flagged == "" {
		c.flagged = reason
	}
}

// Flagged returns the reason given to Flag.
func (c *Connection) Flagged() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flagged, c.flagged != ""
}

// BeginKeepAlive records an outgoing keep-alive. It fails while a previous
// one is unanswered.
func (c *Connection) BeginKeepAlive(id int64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keepAlive {
		return ErrKeepAlivePending
	}
	c.keepAlive = true
	c.keepID = id
	c.keepSent = now
	return nil
}

// AckKeepAlive matches a client reply. A wrong id flags the connection.
func (c *Connection) AckKeepAlive(id int64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keepAlive || id != c.keepID {
		if c.flagged == "" {
			c.flagged = "bad keep-alive"
		}
		return ErrUnexpectedKeepID
	}
	c.keepAlive = false
	c.lastAck = now
	return nil
}

// KeepAliveExpired reports whether an outstanding keep-alive is older than
// timeout.
func (c *Connection) KeepAliveExpired(now time.Time, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAlive && now.Sub(c.keepSent) > timeout
}

// LastKeepAlive returns when the last keep-alive was sent, or the zero time.
func (c *Connection) LastKeepAlive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepSent
}

// Latency is the round trip of the last answered keep-alive.
func (c *Connection) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keepAlive || c.keepSent.IsZero() || c.lastAck.Before(c.keepSent) {
		return 0
	}
	return c.lastAck.Sub(c.keepSent)
}

// SetPendingTeleport records the id the client must confirm.
func (c *Connection) SetPendingTeleport(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teleport = id
}

// ConfirmTeleport clears a matching pending teleport.
func (c *Connection) ConfirmTeleport(id int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.teleport == 0 || c.teleport != id {
		return false
	}
	c.teleport = 0
	return true
}

// AwaitingTeleport reports whether a teleport is unconfirmed. Movement is
// ignored until it is.
func (c *Connection) AwaitingTeleport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teleport != 0
}

// ChunkCenter returns the last chunk center sent to the client.
func (c *Connection) ChunkCenter() (x, z int32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunkX, c.chunkZ, c.hasChunk
}

// SetChunkCenter records the chunk center sent to the client.
func (c *Connection) SetChunkCenter(x, z int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunkX, c.chunkZ, c.hasChunk = x, z, true
}

// OpenWindow records the container window the client has open; 0 is none.
func (c *Connection) OpenWindow(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = id
}

// Window returns the open window id.
func (c *Connection) Window() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// JoinedAt returns when the player entered the world.
func (c *Connection) JoinedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinedAt
}
