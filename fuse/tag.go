package fuse

import (
	"fmt"
	"math"
)

// Tag represents one ceiling fiducial marker in the map.
//
// The marker's local frame is anchored to its bottom edge: the vector from
// the lower-left corner to the lower-right corner is the tag X axis, and
// Twist is the angle from the floor X axis to the tag X axis. Twist is kept
// normalized to (-pi, pi].
//
// X and Y are absolute floor-plane coordinates in the same distance unit as
// the height table's distance-per-pixel factors. Arcs holds every Arc that
// has this tag as an endpoint.
type Tag struct {
	ID               int
	X                float64
	Y                float64
	Twist            float64
	Diagonal         float64 // tag diagonal in camera pixels, from detection
	DistancePerPixel float64
	Z                float64
	Arcs             []*Arc

	// Traversal scratch, owned by Map.Update.
	HopCount int
	visit    uint64
}

// newTag creates a tag with the height band resolved from the height table.
// An id outside every height span gets DistancePerPixel 0; measurements for
// such a tag collapse to zero distance until the table is populated.
func newTag(id int, heights *HeightTable) *Tag {
	tag := &Tag{ID: id}
	if heights != nil {
		if entry, ok := heights.Lookup(id); ok {
			tag.DistancePerPixel = entry.DistancePerPixel
			tag.Z = entry.Z
		}
	}
	return tag
}

// AttachArc adds arc to the tag's incidence list. Attaching the same arc
// twice is a no-op.
func (t *Tag) AttachArc(arc *Arc) {
	for _, existing := range t.Arcs {
		if existing == arc {
			return
		}
	}
	t.Arcs = append(t.Arcs, arc)
}

// Compare orders tags by ascending ID and returns -1, 0, or 1.
func (t *Tag) Compare(other *Tag) int {
	switch {
	case t.ID < other.ID:
		return -1
	case t.ID > other.ID:
		return 1
	}
	return 0
}

// UpdateViaArc assigns this tag's pose from the other endpoint of arc,
// which must already carry a valid pose. The arc twists are both referred
// to the line segment joining the two tag centers (the to side rotated by
// pi), so the composition is symmetric in the two endpoints:
//
//	bearing  = parent.Twist - twist on the parent's side
//	C.Twist  = bearing + twist on the child's side + pi
func (t *Tag) UpdateViaArc(arc *Arc) {
	var parent *Tag
	var bearing float64
	switch t {
	case arc.ToTag:
		parent = arc.FromTag
		bearing = NormalizeAngle(parent.Twist - arc.FromTwist)
		t.Twist = NormalizeAngle(bearing + arc.ToTwist + math.Pi)
	case arc.FromTag:
		parent = arc.ToTag
		bearing = NormalizeAngle(parent.Twist - arc.ToTwist)
		t.Twist = NormalizeAngle(bearing + arc.FromTwist + math.Pi)
	default:
		panic(fmt.Sprintf("fuse: tag %d is not an endpoint of arc [%d,%d]",
			t.ID, arc.FromTag.ID, arc.ToTag.ID))
	}
	t.X = parent.X + arc.Distance*math.Cos(bearing)
	t.Y = parent.Y + arc.Distance*math.Sin(bearing)
}

// WorldSize returns the tag's edge lengths (dx, dy) in floor units, derived
// from the pixel diagonal of a square fiducial.
func (t *Tag) WorldSize() (float64, float64) {
	edge := t.Diagonal * t.DistancePerPixel / math.Sqrt2
	return edge, edge
}

// BoundingBoxUpdate grows box to include the tag's position.
func (t *Tag) BoundingBoxUpdate(box *BoundingBox) {
	box.Extend(t.X, t.Y)
}
