package fuse

import (
	"math"
	"testing"
)

func TestTagAttachArc_RejectsDuplicates(t *testing.T) {
	m := NewMap(nil, nil)
	tag := m.TagLookup(1)
	arc := m.ArcLookup(tag, m.TagLookup(2))

	tag.AttachArc(arc)
	tag.AttachArc(arc)
	if len(tag.Arcs) != 1 {
		t.Errorf("incidence list has %d entries, want 1", len(tag.Arcs))
	}
}

func TestTagCompare(t *testing.T) {
	m := NewMap(nil, nil)
	a := m.TagLookup(3)
	b := m.TagLookup(8)
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("tag id ordering broken")
	}
}

// UpdateViaArc with the parent on the canonical from side.
func TestUpdateViaArc_ParentIsFrom(t *testing.T) {
	m := NewMap(nil, nil)
	parent := m.TagLookup(1)
	child := m.TagLookup(2)
	arc := m.ArcLookup(parent, child)
	// World layout: parent at (5,5) twist pi/4, child 10 units along the
	// parent's positive X axis, child twist pi/4.
	// from_twist = t_parent - bearing = 0; to_twist = t_child + pi - bearing.
	arc.Update(0, 10, NormalizeAngle(math.Pi/4+math.Pi-math.Pi/4), 0)

	parent.X, parent.Y, parent.Twist = 5, 5, math.Pi/4

	child.UpdateViaArc(arc)
	wantX := 5 + 10*math.Cos(math.Pi/4)
	wantY := 5 + 10*math.Sin(math.Pi/4)
	if !almostEqual(child.X, wantX, 1e-9) || !almostEqual(child.Y, wantY, 1e-9) {
		t.Errorf("child at (%g,%g), want (%g,%g)", child.X, child.Y, wantX, wantY)
	}
	if !almostEqual(child.Twist, math.Pi/4, 1e-9) {
		t.Errorf("child twist = %g, want pi/4", child.Twist)
	}
}

// UpdateViaArc with the parent on the canonical to side must be the exact
// inverse of the from-side composition.
func TestUpdateViaArc_ParentIsTo(t *testing.T) {
	m := NewMap(nil, nil)
	from := m.TagLookup(1)
	to := m.TagLookup(2)
	arc := m.ArcLookup(from, to)
	arc.Update(0.3, 7, -1.1, 0)

	// Pose the from tag, derive the to tag, then re-derive the from tag
	// from the to tag: it must land back where it started.
	from.X, from.Y, from.Twist = 2, -3, 0.9
	to.UpdateViaArc(arc)

	gotX, gotY, gotTwist := to.X, to.Y, to.Twist
	from.X, from.Y, from.Twist = 0, 0, 0
	from.UpdateViaArc(arc)

	if !almostEqual(from.X, 2, 1e-9) || !almostEqual(from.Y, -3, 1e-9) {
		t.Errorf("round-trip position drifted to (%g,%g), want (2,-3)", from.X, from.Y)
	}
	if !almostEqual(NormalizeAngle(from.Twist-0.9), 0, 1e-9) {
		t.Errorf("round-trip twist drifted to %g, want 0.9", from.Twist)
	}

	// And the to pose must be unchanged by the second composition.
	if to.X != gotX || to.Y != gotY || to.Twist != gotTwist {
		t.Error("to tag pose mutated unexpectedly")
	}
}

func TestUpdateViaArc_PanicsOnForeignTag(t *testing.T) {
	m := NewMap(nil, nil)
	arc := m.ArcLookup(m.TagLookup(1), m.TagLookup(2))
	stranger := m.TagLookup(3)

	defer func() {
		if recover() == nil {
			t.Error("UpdateViaArc accepted a tag that is not an endpoint")
		}
	}()
	stranger.UpdateViaArc(arc)
}

func TestTagWorldSize(t *testing.T) {
	tag := &Tag{Diagonal: 100, DistancePerPixel: 2.0}
	dx, dy := tag.WorldSize()
	want := 200.0 / math.Sqrt2
	if !almostEqual(dx, want, 1e-9) || !almostEqual(dy, want, 1e-9) {
		t.Errorf("WorldSize = (%g,%g), want (%g,%g)", dx, dy, want, want)
	}
}

func TestTagBoundingBoxUpdate(t *testing.T) {
	box := NewBoundingBox()
	(&Tag{X: -5, Y: 10}).BoundingBoxUpdate(box)
	(&Tag{X: 15, Y: -20}).BoundingBoxUpdate(box)

	if box.MinX != -5 || box.MaxX != 15 || box.MinY != -20 || box.MaxY != 10 {
		t.Errorf("bounding box = %+v", *box)
	}
	if box.Width() != 20 || box.Height() != 30 {
		t.Errorf("extent = (%g,%g), want (20,30)", box.Width(), box.Height())
	}
}

func TestBoundingBoxEmpty(t *testing.T) {
	box := NewBoundingBox()
	if !box.Empty() {
		t.Error("fresh box should be empty")
	}
	if box.Width() != 0 || box.Height() != 0 {
		t.Error("empty box extent should be 0")
	}
	box.Extend(1, 1)
	if box.Empty() {
		t.Error("box with a point should not be empty")
	}
	box.Reset()
	if !box.Empty() {
		t.Error("reset box should be empty")
	}
}
