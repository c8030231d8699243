package fuse

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

// buildTriangleMap builds the standard right-triangle test map and runs
// pose propagation.
func buildTriangleMap(t *testing.T) *Map {
	t.Helper()
	m := NewMap(testHeights(t), nil)
	m.CreateArc(1, 0, 10, 2, math.Pi, 0.5)
	m.CreateArc(2, -math.Pi/2, 10, 3, math.Pi/2, 0.25)
	m.CreateArc(1, -math.Pi/4, 14.142135623730951, 3, 3*math.Pi/4, 1.5)
	m.Update()
	return m
}

func TestMapSaveRestore_RoundTrip(t *testing.T) {
	m1 := buildTriangleMap(t)
	path := filepath.Join(t.TempDir(), "map.xml")

	if err := m1.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m2, err := RestoreMap(path, testHeights(t), nil)
	if err != nil {
		t.Fatalf("RestoreMap: %v", err)
	}

	m1.Sort()
	m2.Sort()
	if m1.Compare(m2) != 0 {
		t.Fatal("restored map does not compare equal")
	}

	// Structural compare ignores numeric fields; check them with the
	// round-trip tolerances.
	for i := range m1.Tags {
		t1, t2 := m1.Tags[i], m2.Tags[i]
		if !almostEqual(t1.X, t2.X, 1e-3) || !almostEqual(t1.Y, t2.Y, 1e-3) {
			t.Errorf("tag %d position drifted: (%g,%g) vs (%g,%g)", t1.ID, t1.X, t1.Y, t2.X, t2.Y)
		}
		if !almostEqual(t1.Twist, t2.Twist, 1e-6*(1+math.Abs(t1.Twist))) {
			t.Errorf("tag %d twist drifted: %g vs %g", t1.ID, t1.Twist, t2.Twist)
		}
		if t1.HopCount != t2.HopCount {
			t.Errorf("tag %d hop count drifted: %d vs %d", t1.ID, t1.HopCount, t2.HopCount)
		}
	}
	for i := range m1.Arcs {
		a1, a2 := m1.Arcs[i], m2.Arcs[i]
		if !almostEqual(a1.Distance, a2.Distance, 1e-3) {
			t.Errorf("arc [%d,%d] distance drifted: %g vs %g", a1.FromTag.ID, a1.ToTag.ID, a1.Distance, a2.Distance)
		}
		if !almostEqual(a1.FromTwist, a2.FromTwist, 1e-6*(1+math.Abs(a1.FromTwist))) ||
			!almostEqual(a1.ToTwist, a2.ToTwist, 1e-6*(1+math.Abs(a1.ToTwist))) {
			t.Errorf("arc [%d,%d] twists drifted", a1.FromTag.ID, a1.ToTag.ID)
		}
		if !almostEqual(a1.Goodness, a2.Goodness, 1e-9) {
			t.Errorf("arc [%d,%d] goodness drifted: %g vs %g", a1.FromTag.ID, a1.ToTag.ID, a1.Goodness, a2.Goodness)
		}
		if a1.InTree != a2.InTree {
			t.Errorf("arc [%d,%d] InTree drifted", a1.FromTag.ID, a1.ToTag.ID)
		}
	}
}

func TestMapWrite_Format(t *testing.T) {
	m := buildTriangleMap(t)
	var sb strings.Builder
	if err := m.Write(&sb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		`Tags_Count="3"`,
		`Arcs_Count="3"`,
		`From_Tag_Id="1"`,
		`To_Tag_Id="2"`,
		`In_Tree="1"`,
		`In_Tree="0"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("map XML missing %s:\n%s", want, out)
		}
	}
}

func TestReadMap_Malformed(t *testing.T) {
	cases := []struct {
		name string
		xml  string
	}{
		{"truncated", `<Map Tags_Count="1" Arcs_Count="0">`},
		{"tag count mismatch", `<Map Tags_Count="2" Arcs_Count="0"><Tag Id="1" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/></Map>`},
		{"arc count mismatch", `<Map Tags_Count="0" Arcs_Count="1"></Map>`},
		{"non-canonical arc", `<Map Tags_Count="2" Arcs_Count="1">` +
			`<Tag Id="1" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
			`<Tag Id="2" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
			`<Arc From_Tag_Id="2" From_Twist="0" Distance="1" To_Tag_Id="1" To_Twist="0" Goodness="0" In_Tree="0"/></Map>`},
		{"duplicate tag", `<Map Tags_Count="2" Arcs_Count="0">` +
			`<Tag Id="1" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
			`<Tag Id="1" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/></Map>`},
		{"duplicate arc", `<Map Tags_Count="2" Arcs_Count="2">` +
			`<Tag Id="1" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
			`<Tag Id="2" Twist="0" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
			`<Arc From_Tag_Id="1" From_Twist="0" Distance="1" To_Tag_Id="2" To_Twist="0" Goodness="0" In_Tree="0"/>` +
			`<Arc From_Tag_Id="1" From_Twist="0" Distance="1" To_Tag_Id="2" To_Twist="0" Goodness="0" In_Tree="0"/></Map>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadMap(strings.NewReader(tc.xml), nil, nil); err == nil {
				t.Error("malformed map XML accepted")
			}
		})
	}
}

func TestReadMap_TwistsStoredInDegrees(t *testing.T) {
	doc := `<Map Tags_Count="2" Arcs_Count="1">` +
		`<Tag Id="1" Twist="90" X="0" Y="0" Diagonal="0" Hop_Count="0"/>` +
		`<Tag Id="2" Twist="-45" X="1" Y="2" Diagonal="0" Hop_Count="1"/>` +
		`<Arc From_Tag_Id="1" From_Twist="180" Distance="3" To_Tag_Id="2" To_Twist="-90" Goodness="0.5" In_Tree="1"/></Map>`

	m, err := ReadMap(strings.NewReader(doc), nil, nil)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if !almostEqual(m.TagLookup(1).Twist, math.Pi/2, 1e-9) {
		t.Errorf("tag 1 twist = %g, want pi/2", m.TagLookup(1).Twist)
	}
	if !almostEqual(m.TagLookup(2).Twist, -math.Pi/4, 1e-9) {
		t.Errorf("tag 2 twist = %g, want -pi/4", m.TagLookup(2).Twist)
	}
	arc := m.Arcs[0]
	if !almostEqual(arc.FromTwist, math.Pi, 1e-9) || !almostEqual(arc.ToTwist, -math.Pi/2, 1e-9) {
		t.Errorf("arc twists (%g,%g), want (pi, -pi/2)", arc.FromTwist, arc.ToTwist)
	}
	if !arc.InTree {
		t.Error("In_Tree flag lost on load")
	}
}

func TestHeightsSaveRestore_RoundTrip(t *testing.T) {
	ht := NewHeightTable()
	ht.Load([]HeightEntry{
		{FirstID: 0, LastID: 31, DistancePerPixel: 2.4679, Z: 2.71},
		{FirstID: 32, LastID: 63, DistancePerPixel: 3.1, Z: 3.05},
	})

	path := filepath.Join(t.TempDir(), "heights.xml")
	if err := SaveHeights(path, ht); err != nil {
		t.Fatalf("SaveHeights: %v", err)
	}
	restored, err := RestoreHeights(path)
	if err != nil {
		t.Fatalf("RestoreHeights: %v", err)
	}

	want := ht.Entries()
	got := restored.Entries()
	if len(got) != len(want) {
		t.Fatalf("%d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadHeights_Malformed(t *testing.T) {
	cases := []struct {
		name string
		xml  string
	}{
		{"count mismatch", `<Map_Tag_Heights Count="2"><Tag_Height First_Id="0" Last_Id="9" Distance_Per_Pixel="1" Z="2"/></Map_Tag_Heights>`},
		{"inverted span", `<Map_Tag_Heights Count="1"><Tag_Height First_Id="9" Last_Id="0" Distance_Per_Pixel="1" Z="2"/></Map_Tag_Heights>`},
		{"not xml", `{"count": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadHeights(strings.NewReader(tc.xml)); err == nil {
				t.Error("malformed height XML accepted")
			}
		})
	}
}

func TestReadHeights_SortsEntries(t *testing.T) {
	doc := `<Map_Tag_Heights Count="2">` +
		`<Tag_Height First_Id="50" Last_Id="99" Distance_Per_Pixel="2" Z="3"/>` +
		`<Tag_Height First_Id="0" Last_Id="49" Distance_Per_Pixel="1" Z="2"/></Map_Tag_Heights>`
	ht, err := ReadHeights(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadHeights: %v", err)
	}
	entries := ht.Entries()
	if entries[0].FirstID != 0 || entries[1].FirstID != 50 {
		t.Errorf("entries not sorted on load: %+v", entries)
	}
}
