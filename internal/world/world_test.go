package world

import (
	"testing"

	"ionic/internal/codec"
)

// TestStaleHandleFails verifies a despawned handle never resolves, even
// after its slot is reused
func TestStaleHandleFails(t *testing.T) {
	w := New(64)
	a := w.Spawn(Entity{Kind: KindPig})
	if _, ok := w.Get(a); !ok {
		t.Fatal("fresh handle did not resolve")
	}
	if _, ok := w.Despawn(a); !ok {
		t.Fatal("despawn failed")
	}
	if _, ok := w.Get(a); ok {
		t.Error("stale handle resolved")
	}
	if _, ok := w.Despawn(a); ok {
		t.Error("double despawn succeeded")
	}

	b := w.Spawn(Entity{Kind: KindPlayer, Username: "alex"})
	if b.index != a.index {
		t.Fatalf("slot not reused: %d vs %d", b.index, a.index)
	}
	if _, ok := w.Get(a); ok {
		t.Error("stale handle resolved to reused slot")
	}
	if e, ok := w.Get(b); !ok || e.Username != "alex" {
		t.Errorf("new handle = %+v, %v", e, ok)
	}
	if (Handle{}).Valid() || w.Alive(Handle{}) {
		t.Error("zero handle is valid")
	}
}

// TestNetworkIDs verifies ids are unique and indexed
func TestNetworkIDs(t *testing.T) {
	w := New(64)
	a := w.Spawn(Entity{Kind: KindPig})
	b := w.Spawn(Entity{Kind: KindPig})
	ea, _ := w.Get(a)
	eb, _ := w.Get(b)
	if ea.NetID == eb.NetID {
		t.Fatalf("duplicate net id %d", ea.NetID)
	}
	if h, ok := w.ByNetID(eb.NetID); !ok || h != b {
		t.Errorf("ByNetID = %v, %v", h, ok)
	}
	w.Despawn(b)
	if _, ok := w.ByNetID(eb.NetID); ok {
		t.Error("despawned net id still indexed")
	}
	if w.Len() != 1 {
		t.Errorf("Len = %d", w.Len())
	}
}

// TestPlayersOrdered verifies Players returns only players by net id
func TestPlayersOrdered(t *testing.T) {
	w := New(64)
	first := w.Spawn(Entity{Kind: KindPlayer})
	w.Spawn(Entity{Kind: KindPig})
	second := w.Spawn(Entity{Kind: KindPlayer})

	got := w.Players()
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Errorf("Players = %v", got)
	}
}

// TestBlocks verifies terrain and overrides
func TestBlocks(t *testing.T) {
	w := New(64)
	surface := codec.Position{X: 3, Y: 64, Z: -7}
	if got := w.Block(surface); got != BlockGrass {
		t.Errorf("surface = %d", got)
	}
	if got := w.Block(codec.Position{Y: 65}); got != BlockAir {
		t.Errorf("above = %d", got)
	}
	if got := w.Block(codec.Position{Y: MinBuildY}); got != BlockBedrock {
		t.Errorf("floor = %d", got)
	}

	if !w.SetBlock(surface, BlockAir) {
		t.Fatal("SetBlock failed")
	}
	if w.Block(surface) != BlockAir || w.Overrides() != 1 {
		t.Errorf("override not applied")
	}
	w.SetBlock(surface, BlockGrass)
	if w.Overrides() != 0 {
		t.Error("restoring terrain kept an override")
	}
	if w.SetBlock(codec.Position{Y: MaxBuildY + 1}, BlockStone) {
		t.Error("SetBlock above build height succeeded")
	}
}

// TestClock verifies day wrapping and the cycle toggle
func TestClock(t *testing.T) {
	w := New(64)
	w.SetTimeOfDay(DayLength - 1)
	w.Tick()
	if w.TimeOfDay() != 0 || w.Age() != 1 {
		t.Errorf("time = %d age = %d", w.TimeOfDay(), w.Age())
	}
	w.SetDayCycle(false)
	w.Tick()
	if w.TimeOfDay() != 0 || w.Age() != 2 {
		t.Errorf("stopped cycle advanced: %d", w.TimeOfDay())
	}
	w.SetTimeOfDay(-1000)
	if w.TimeOfDay() != DayLength-1000 {
		t.Errorf("negative time = %d", w.TimeOfDay())
	}
}

// TestChunkCoords verifies floor division for negative positions
func TestChunkCoords(t *testing.T) {
	tests := []struct {
		x    float64
		want int32
	}{
		{0, 0}, {15.9, 0}, {16, 1}, {-0.5, -1}, {-16, -1}, {-16.1, -2},
	}
	for _, tt := range tests {
		if got := (Vec3{X: tt.x}).ChunkX(); got != tt.want {
			t.Errorf("ChunkX(%v) = %d, want %d", tt.x, got, tt.want)
		}
	}
}
