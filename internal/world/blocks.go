package world

import "ionic/internal/codec"

// Block state ids for protocol 767.
const (
	BlockAir     int32 = 0
	BlockStone   int32 = 1
	BlockGrass   int32 = 9
	BlockDirt    int32 = 10
	BlockBedrock int32 = 79
)

// Build height of the overworld.
const (
	MinBuildY = -64
	MaxBuildY = 319
)

// GroundY returns the y of the topmost terrain block.
func (w *World) GroundY() int32 {
	return w.groundY
}

// SurfaceY returns the height entities stand on.
func (w *World) SurfaceY() float64 {
	return float64(w.groundY) + 1
}

// Block returns the state at pos: an override if one was set, otherwise
// the flat terrain.
func (w *World) Block(pos codec.Position) int32 {
	w.mu.RLock()
	id, ok := w.blocks[pos]
	w.mu.RUnlock()
	if ok {
		return id
	}
	return w.terrain(pos.Y)
}

func (w *World) terrain(y int32) int32 {
	switch {
	case y > w.groundY:
		return BlockAir
	case y == w.groundY:
		return BlockGrass
	case y <= MinBuildY:
		return BlockBedrock
	case y >= w.groundY-3:
		return BlockDirt
	default:
		return BlockStone
	}
}

// SetBlock overrides the block at pos. It returns false when pos is outside
// the build height.
func (w *World) SetBlock(pos codec.Position, id int32) bool {
	if !pos.Valid() || pos.Y < MinBuildY || pos.Y > MaxBuildY {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if id == w.terrain(pos.Y) {
		delete(w.blocks, pos)
	} else {
		w.blocks[pos] = id
	}
	return true
}

// Overrides returns the number of blocks that differ from terrain.
func (w *World) Overrides() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.blocks)
}
