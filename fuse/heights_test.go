package fuse

import "testing"

func TestHeightTable_Lookup(t *testing.T) {
	ht := NewHeightTable()
	ht.Load([]HeightEntry{
		{FirstID: 40, LastID: 49, DistancePerPixel: 4.0, Z: 4.0},
		{FirstID: 0, LastID: 9, DistancePerPixel: 1.0, Z: 2.5},
		{FirstID: 10, LastID: 39, DistancePerPixel: 2.0, Z: 3.0},
	})

	cases := []struct {
		id   int
		want float64
	}{
		{0, 1.0},
		{9, 1.0},
		{10, 2.0},
		{39, 2.0},
		{40, 4.0},
		{49, 4.0},
		{50, 0.0}, // past every span
		{100, 0.0},
	}
	for _, tc := range cases {
		if got := ht.DistancePerPixel(tc.id); got != tc.want {
			t.Errorf("DistancePerPixel(%d) = %g, want %g", tc.id, got, tc.want)
		}
	}
}

func TestHeightTable_SortedOnLoad(t *testing.T) {
	ht := NewHeightTable()
	ht.Load([]HeightEntry{
		{FirstID: 100, LastID: 199, DistancePerPixel: 3.0},
		{FirstID: 0, LastID: 99, DistancePerPixel: 1.0},
	})
	entries := ht.Entries()
	if entries[0].FirstID != 0 || entries[1].FirstID != 100 {
		t.Errorf("entries not sorted by FirstID: %+v", entries)
	}
}

// Overlapping spans are not rejected; after sorting, the span with the
// lower FirstID wins.
func TestHeightTable_OverlapFirstMatchWins(t *testing.T) {
	ht := NewHeightTable()
	ht.Load([]HeightEntry{
		{FirstID: 5, LastID: 20, DistancePerPixel: 9.0},
		{FirstID: 0, LastID: 10, DistancePerPixel: 1.0},
	})
	if got := ht.DistancePerPixel(7); got != 1.0 {
		t.Errorf("overlapping lookup = %g, want 1.0 (first span after sort)", got)
	}
	if got := ht.DistancePerPixel(15); got != 9.0 {
		t.Errorf("lookup past first span = %g, want 9.0", got)
	}
}

func TestHeightTable_Empty(t *testing.T) {
	ht := NewHeightTable()
	if got := ht.DistancePerPixel(1); got != 0 {
		t.Errorf("empty table lookup = %g, want 0", got)
	}
	if _, ok := ht.Lookup(1); ok {
		t.Error("empty table Lookup reported a match")
	}
}
