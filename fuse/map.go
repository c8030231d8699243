package fuse

import (
	"math"
	"sort"
)

// TagAnnounce is called each time pose propagation assigns a tag's pose.
// x, y, z locate the tag center, twist is the tag orientation in radians,
// and dx, dy, dz describe the physical tag size before twist is applied.
// A single Update call may announce every tag in the map.
type TagAnnounce func(id int, x, y, z, twist, dx, dy, dz float64)

// CameraTag is one fiducial detection inside a camera frame: the resolved
// map tag plus the detection's pixel center, pixel twist, and pixel
// diagonal in image coordinates.
type CameraTag struct {
	Tag      *Tag
	X        float64
	Y        float64
	Twist    float64
	Diagonal float64
}

// Map is the fusion engine. It owns every Tag, Arc, and height entry, and
// incrementally fuses pairwise detections into an edge-weighted graph from
// which Update derives an absolute pose for every reachable tag.
//
// Map is not safe for concurrent use; callers that ingest from multiple
// goroutines must serialize access externally, e.g. with a mutex held
// around every Map call.
type Map struct {
	Tags    []*Tag
	Arcs    []*Arc
	Heights *HeightTable

	tagsByID  map[int]*Tag
	arcIndex  map[arcKey]*Arc
	pending   []*Arc
	visit     uint64
	isChanged bool
	announce  TagAnnounce
}

// NewMap creates an empty map. announce may be nil when no pose consumer is
// wired up; a nil heights is replaced by an empty table, and tags created
// before the table is populated resolve to a zero distance-per-pixel.
func NewMap(heights *HeightTable, announce TagAnnounce) *Map {
	if heights == nil {
		heights = NewHeightTable()
	}
	return &Map{
		Heights:  heights,
		tagsByID: make(map[int]*Tag),
		arcIndex: make(map[arcKey]*Arc),
		announce: announce,
	}
}

// SetAnnounce replaces the pose announce callback.
func (m *Map) SetAnnounce(announce TagAnnounce) {
	m.announce = announce
}

// IsChanged reports whether the map has mutated since the last Update.
func (m *Map) IsChanged() bool {
	return m.isChanged
}

// TagLookup returns the tag with the given id, creating it on first
// reference with its height band resolved from the height table.
func (m *Map) TagLookup(id int) *Tag {
	if tag, ok := m.tagsByID[id]; ok {
		return tag
	}
	tag := newTag(id, m.Heights)
	m.tagsByID[id] = tag
	m.Tags = append(m.Tags, tag)
	m.isChanged = true
	return tag
}

// ArcLookup returns the arc joining from and to, creating an unmeasured
// sentinel arc on first reference. At most one arc ever exists per
// unordered tag pair.
func (m *Map) ArcLookup(from, to *Tag) *Arc {
	key := newArcKey(from.ID, to.ID)
	if arc, ok := m.arcIndex[key]; ok {
		return arc
	}
	arc := newArc(from, 0.0, 0.0, to, 0.0, SentinelGoodness)
	m.registerArc(key, arc)
	return arc
}

// CreateArc looks up or creates the arc joining the two tag ids and loads
// the given measurement into it. It is the restore path used by the XML
// loader and by tests that build maps directly; the twists are interpreted
// against the canonical (lower id first) orientation and are not swapped.
func (m *Map) CreateArc(fromID int, fromTwist, distance float64, toID int, toTwist, goodness float64) *Arc {
	from := m.TagLookup(fromID)
	to := m.TagLookup(toID)
	arc := m.ArcLookup(from, to)
	arc.Update(fromTwist, distance, toTwist, goodness)
	m.isChanged = true
	return arc
}

// registerArc records a freshly created arc in the edge index and the
// engine's arc list and marks the map dirty.
func (m *Map) registerArc(key arcKey, arc *Arc) {
	m.arcIndex[key] = arc
	m.Arcs = append(m.Arcs, arc)
	m.isChanged = true
}

// ArcUpdate fuses one pairwise detection into the map. cameraFrom and
// cameraTo are two tags seen together in a single frame of the given pixel
// dimensions. The measurement quality is the absolute difference of the two
// detections' radial distances from the image center: radial lens
// distortion grows away from the optical axis, so a pair seen at equal
// radii is the most trustworthy. The stored arc is overwritten only when
// the new measurement is strictly better.
//
// Returns 1 when the arc was updated and 0 otherwise.
func (m *Map) ArcUpdate(cameraFrom, cameraTo *CameraTag, width, height int) int {
	if cameraFrom.Tag.ID == cameraTo.Tag.ID {
		return 0
	}
	// Keep the canonical orientation so the twists land on the right
	// endpoints of the stored arc.
	if cameraFrom.Tag.ID > cameraTo.Tag.ID {
		cameraFrom, cameraTo = cameraTo, cameraFrom
	}
	fromTag := cameraFrom.Tag
	toTag := cameraTo.Tag

	if cameraFrom.Diagonal > 0 {
		fromTag.Diagonal = cameraFrom.Diagonal
	}
	if cameraTo.Diagonal > 0 {
		toTag.Diagonal = cameraTo.Diagonal
	}

	arc := m.ArcLookup(fromTag, toTag)

	halfWidth := float64(width) / 2.0
	halfHeight := float64(height) / 2.0

	// Polar coordinates of each detection relative to the image center.
	fromDx := cameraFrom.X - halfWidth
	fromDy := cameraFrom.Y - halfHeight
	fromRho := math.Hypot(fromDx, fromDy)
	fromPhi := math.Atan2(fromDy, fromDx)

	toDx := cameraTo.X - halfWidth
	toDy := cameraTo.Y - halfHeight
	toRho := math.Hypot(toDx, toDy)
	toPhi := math.Atan2(toDy, toDx)

	goodness := math.Abs(fromRho - toRho)
	if goodness >= arc.Goodness {
		return 0
	}

	// Project both tag centers onto the floor plane as if the camera sat
	// at the floor origin. The two tags may sit at different ceiling
	// heights, so each uses its own distance-per-pixel factor.
	fromFloorX := fromTag.DistancePerPixel * fromRho * math.Cos(fromPhi)
	fromFloorY := fromTag.DistancePerPixel * fromRho * math.Sin(fromPhi)
	toFloorX := toTag.DistancePerPixel * toRho * math.Cos(toPhi)
	toFloorY := toTag.DistancePerPixel * toRho * math.Sin(toPhi)
	distance := math.Hypot(fromFloorX-toFloorX, fromFloorY-toFloorY)

	// Both twists are referred to the pixel-frame angle of the segment
	// joining the two detections; the to side is rotated by pi so that
	// the arc is symmetric under endpoint exchange.
	arcAngle := math.Atan2(cameraTo.Y-cameraFrom.Y, cameraTo.X-cameraFrom.X)
	fromTwist := NormalizeAngle(cameraFrom.Twist - arcAngle)
	toTwist := NormalizeAngle(cameraTo.Twist + math.Pi - arcAngle)

	arc.Update(fromTwist, distance, toTwist, goodness)
	m.isChanged = true
	return 1
}

// Update assigns an absolute pose to every tag reachable from the origin.
//
// The lowest-id tag is pinned to (0, 0, 0) and a spanning tree is grown
// outward over the shortest available arcs: the frontier of candidate arcs
// is kept sorted longest-first so the tail always holds the shortest arc,
// with distance ties broken toward the lowest endpoint hop count. Each tree
// arc poses its new endpoint by composing the planar transform along the
// arc; arcs joining two already-posed tags are cross arcs and are marked
// out of the tree. Tags not reachable from the origin keep their previous
// pose.
//
// Update is a no-op when nothing changed since the last call.
func (m *Map) Update() {
	if !m.isChanged {
		return
	}
	m.visit++
	visit := m.visit

	sort.SliceStable(m.Tags, func(i, j int) bool {
		return m.Tags[i].ID < m.Tags[j].ID
	})
	if len(m.Tags) == 0 {
		m.isChanged = false
		return
	}

	origin := m.Tags[0]
	origin.X = 0.0
	origin.Y = 0.0
	origin.Twist = 0.0
	origin.HopCount = 0
	origin.visit = visit
	m.announceTag(origin)

	pending := append(m.pending[:0], origin.Arcs...)
	sortPendingArcs(pending)

	for len(pending) > 0 {
		arc := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if arc.visit == visit {
			continue
		}
		arc.visit = visit

		fromIsNew := arc.FromTag.visit != visit
		toIsNew := arc.ToTag.visit != visit
		switch {
		case !fromIsNew && !toIsNew:
			// Both endpoints already posed: cross arc.
			arc.InTree = false
		case fromIsNew && toIsNew:
			// Frontier arcs are always incident to a posed tag.
			panic("fuse: frontier arc has two unvisited endpoints")
		default:
			child, parent := arc.FromTag, arc.ToTag
			if toIsNew {
				child, parent = parent, child
			}
			child.HopCount = parent.HopCount + 1
			child.visit = visit
			pending = append(pending, child.Arcs...)
			arc.InTree = true
			child.UpdateViaArc(arc)
			m.announceTag(child)
			sortPendingArcs(pending)
		}
	}

	m.pending = pending[:0]
	m.isChanged = false
}

// sortPendingArcs keeps the frontier ordered longest-first so the shortest
// arc with the lowest-hop neighborhood sits at the tail.
func sortPendingArcs(pending []*Arc) {
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DistanceCompare(pending[j]) < 0
	})
}

// announceTag reports a freshly assigned pose to the announce callback.
func (m *Map) announceTag(tag *Tag) {
	if m.announce == nil {
		return
	}
	dx, dy := tag.WorldSize()
	m.announce(tag.ID, tag.X, tag.Y, tag.Z, tag.Twist, dx, dy, 0.0)
}

// Sort orders the tag list by id and the arc list by canonical id pair, a
// consistent order for persistence and comparison.
func (m *Map) Sort() {
	sort.SliceStable(m.Tags, func(i, j int) bool {
		return m.Tags[i].Compare(m.Tags[j]) < 0
	})
	sort.SliceStable(m.Arcs, func(i, j int) bool {
		return m.Arcs[i].Compare(m.Arcs[j]) < 0
	})
}

// Compare orders two maps structurally: by tag count, then tag-by-tag, then
// arc count, then arc-by-arc, in each map's current list order. Callers
// interested in equality should Sort both maps first. Numeric pose fields
// do not participate; two maps compare equal when they hold the same tag
// ids and the same arc id pairs.
func (m *Map) Compare(other *Map) int {
	switch {
	case len(m.Tags) < len(other.Tags):
		return -1
	case len(m.Tags) > len(other.Tags):
		return 1
	}
	for i, tag := range m.Tags {
		if result := tag.Compare(other.Tags[i]); result != 0 {
			return result
		}
	}
	switch {
	case len(m.Arcs) < len(other.Arcs):
		return -1
	case len(m.Arcs) > len(other.Arcs):
		return 1
	}
	for i, arc := range m.Arcs {
		if result := arc.Compare(other.Arcs[i]); result != 0 {
			return result
		}
	}
	return 0
}
