package atlas

import (
	"testing"
)

func TestReserveRoundsToTileMultiple(t *testing.T) {
	a := NewShadowAtlas(1024, 128)

	slot, ok := a.ReserveTiles(200, 200, "light-0")
	if !ok {
		t.Fatal("reservation failed on an empty atlas")
	}
	if slot.Width != 256 {
		t.Errorf("width: got %d, want 256", slot.Width)
	}
	if slot.X%128 != 0 || slot.Y%128 != 0 {
		t.Errorf("slot not tile-aligned: %+v", slot)
	}
}

func TestReserveNoOverlap(t *testing.T) {
	a := NewShadowAtlas(1024, 128)

	var slots []Slot
	for i := 0; i < 8; i++ {
		slot, ok := a.ReserveTiles(256, 256, "light-0")
		if !ok {
			t.Fatalf("reservation %d failed; total area fits the atlas", i)
		}
		slots = append(slots, slot)
	}

	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if slotsOverlap(slots[i], slots[j]) {
				t.Errorf("slots %d and %d overlap: %+v %+v", i, j, slots[i], slots[j])
			}
		}
	}
}

func TestReserveExhaustion(t *testing.T) {
	a := NewShadowAtlas(512, 128)

	// 4 half-size slots fill the atlas exactly.
	for i := 0; i < 4; i++ {
		if _, ok := a.ReserveTiles(256, 256, "light-0"); !ok {
			t.Fatalf("reservation %d failed before the atlas is full", i)
		}
	}

	if _, ok := a.ReserveTiles(128, 128, "light-x"); ok {
		t.Error("reservation succeeded on a full atlas")
	}
	if a.FreeTiles() != 0 {
		t.Errorf("free tiles: got %d, want 0", a.FreeTiles())
	}
}

func TestReserveTooLarge(t *testing.T) {
	a := NewShadowAtlas(512, 128)
	if _, ok := a.ReserveTiles(1024, 1024, "light-0"); ok {
		t.Error("reservation larger than the atlas succeeded")
	}
	if _, ok := a.ReserveTiles(0, 0, "light-0"); ok {
		t.Error("zero-size reservation succeeded")
	}
}

func TestClearIsIdempotentReset(t *testing.T) {
	a := NewShadowAtlas(512, 128)

	first, ok := a.ReserveTiles(512, 512, "light-0")
	if !ok {
		t.Fatal("initial full-size reservation failed")
	}

	a.Clear()

	second, ok := a.ReserveTiles(512, 512, "light-0")
	if !ok {
		t.Fatal("reservation after Clear failed; atlas was not reset")
	}
	if first != second {
		t.Errorf("reservation after Clear differs from a fresh atlas: %+v vs %+v", first, second)
	}
}

func TestReserveDeterministic(t *testing.T) {
	sizes := []int{512, 128, 256, 128, 384}

	run := func() []Slot {
		a := NewShadowAtlas(1024, 128)
		var out []Slot
		for _, s := range sizes {
			slot, _ := a.ReserveTiles(s, s, "light-0")
			out = append(out, slot)
		}
		return out
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("request %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestReservationsRecordOwners(t *testing.T) {
	a := NewShadowAtlas(1024, 128)

	s0, _ := a.ReserveTiles(512, 512, "light-0")
	s1, _ := a.ReserveTiles(256, 256, "light-1")
	if _, ok := a.ReserveTiles(4096, 4096, "light-2"); ok {
		t.Fatal("oversized reservation succeeded")
	}

	got := a.Reservations()
	if len(got) != 2 {
		t.Fatalf("want 2 reservations, got %d", len(got))
	}
	if got[0].Owner != "light-0" || got[0].Slot != s0 {
		t.Errorf("reservation 0: %+v", got[0])
	}
	if got[1].Owner != "light-1" || got[1].Slot != s1 {
		t.Errorf("reservation 1: %+v", got[1])
	}

	a.Clear()
	if len(a.Reservations()) != 0 {
		t.Error("Clear must drop the reservation records")
	}
}

func TestResolutionForDistance(t *testing.T) {
	a := NewShadowAtlas(2048, 128)

	tests := []struct {
		name     string
		distance float32
		maxSize  int
		want     int
	}{
		{"At camera", 0, 1024, 1024},
		{"At falloff", ShadowDistanceFalloff, 1024, 128},
		{"Beyond falloff", 100, 1024, 128},
		{"Halfway", ShadowDistanceFalloff / 2, 1024, 512},
		{"Max clamped to atlas", 0, 4096, 2048},
	}

	for _, tc := range tests {
		got := a.ResolutionForDistance(tc.distance, tc.maxSize)
		if got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
		if got <= 0 || got%a.TileSize() != 0 {
			t.Errorf("%s: %d is not a positive tile multiple", tc.name, got)
		}
	}
}

func slotsOverlap(a, b Slot) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Width && b.Y < a.Y+a.Width
}
