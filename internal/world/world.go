// Package world holds the simulation state: an entity arena addressed by
// generation-checked handles, block overrides on a flat terrain, and the
// world clock.
package world

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ionic/internal/codec"
)

// Kind is an entity type.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindPig
)

// Registry ids for add_entity in protocol 767.
const (
	EntityTypePig    int32 = 95
	EntityTypePlayer int32 = 128
)

// NetworkType returns the add_entity type id for k.
func (k Kind) NetworkType() int32 {
	switch k {
	case KindPig:
		return EntityTypePig
	default:
		return EntityTypePlayer
	}
}

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindPig:
		return "pig"
	default:
		return "unknown"
	}
}

// Vec3 is a position or velocity in blocks.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) IsZero() bool         { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// ChunkX and ChunkZ return the chunk column containing v.
func (v Vec3) ChunkX() int32 { return int32(math.Floor(v.X)) >> 4 }
func (v Vec3) ChunkZ() int32 { return int32(math.Floor(v.Z)) >> 4 }

// Handle addresses an entity. The zero Handle is never valid.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was issued by Spawn. A valid handle may still be
// stale.
func (h Handle) Valid() bool { return h.gen != 0 }

// Entity is one simulated object.
type Entity struct {
	NetID int32
	UUID  uuid.UUID
	Kind  Kind

	Pos        Vec3
	Vel        Vec3
	Yaw, Pitch float32
	OnGround   bool

	// Players only.
	Username string
	ConnID   uint64

	// Last state sent to clients by entity-update emission.
	SentPos    Vec3
	SentGround bool
	Spawned    bool
}

type slot struct {
	gen    uint32
	alive  bool
	entity Entity
}

// World is the simulation state. Spawn, Despawn and block writes lock;
// entity fields are owned by whichever tick system declared write access.
type World struct {
	mu       sync.RWMutex
	slots    []slot
	free     []uint32
	byNetID  map[int32]Handle
	nextNet  int32
	blocks   map[codec.Position]int32
	groundY  int32
	age      int64
	dayTime  int64
	dayCycle bool
}

// New creates an empty world whose terrain top is at groundY.
func New(groundY int32) *World {
	return &World{
		byNetID:  make(map[int32]Handle),
		nextNet:  1,
		blocks:   make(map[codec.Position]int32),
		groundY:  groundY,
		dayCycle: true,
	}
}

// Spawn adds e, assigns it a network id and returns its handle.
func (w *World) Spawn(e Entity) Handle {
	w.mu.Lock()
	defer w.mu.Unlock()

	e.NetID = w.nextNet
	w.nextNet++
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}

	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		w.slots = append(w.slots, slot{})
		idx = uint32(len(w.slots) - 1)
	}
	s := &w.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.alive = true
	s.entity = e

	h := Handle{index: idx, gen: s.gen}
	w.byNetID[e.NetID] = h
	return h
}

// Despawn removes the entity. It returns false for stale handles.
func (w *World) Despawn(h Handle) (Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.slot(h)
	if s == nil {
		return Entity{}, false
	}
	e := s.entity
	s.alive = false
	s.entity = Entity{}
	delete(w.byNetID, e.NetID)
	w.free = append(w.free, h.index)
	return e, true
}

func (w *World) slot(h Handle) *slot {
	if !h.Valid() || int(h.index) >= len(w.slots) {
		return nil
	}
	s := &w.slots[h.index]
	if !s.alive || s.gen != h.gen {
		return nil
	}
	return s
}

// Get returns the live entity for h. Stale handles fail.
func (w *World) Get(h Handle) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.slot(h)
	if s == nil {
		return nil, false
	}
	return &s.entity, true
}

// Alive reports whether h still refers to a live entity.
func (w *World) Alive(h Handle) bool {
	_, ok := w.Get(h)
	return ok
}

// ByNetID finds an entity by network id.
func (w *World) ByNetID(id int32) (Handle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.byNetID[id]
	return h, ok
}

// Each calls fn for every live entity in slot order.
func (w *World) Each(fn func(Handle, *Entity)) {
	w.mu.RLock()
	handles := make([]Handle, 0, len(w.byNetID))
	for i := range w.slots {
		if w.slots[i].alive {
			handles = append(handles, Handle{index: uint32(i), gen: w.slots[i].gen})
		}
	}
	w.mu.RUnlock()

	for _, h := range handles {
		if e, ok := w.Get(h); ok {
			fn(h, e)
		}
	}
}

// Players returns handles of all player entities ordered by network id.
func (w *World) Players() []Handle {
	var out []Handle
	var ids []int32
	w.Each(func(h Handle, e *Entity) {
		if e.Kind == KindPlayer {
			out = append(out, h)
			ids = append(ids, e.NetID)
		}
	})
	sort.Sort(byNet{out, ids})
	return out
}

type byNet struct {
	h   []Handle
	ids []int32
}

func (b byNet) Len() int           { return len(b.h) }
func (b byNet) Less(i, j int) bool { return b.ids[i] < b.ids[j] }
func (b byNet) Swap(i, j int) {
	b.h[i], b.h[j] = b.h[j], b.h[i]
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byNetID)
}
