package fuse

// SentinelGoodness marks an arc that has never carried a real measurement.
// Any observed goodness is smaller and replaces it.
const SentinelGoodness = 123456789.0

// Arc is an undirected edge between two tags: the relative pose measured
// when both tags were seen in a single camera frame.
//
// The endpoints are kept in canonical order, FromTag.ID < ToTag.ID.
// FromTwist and ToTwist are both measured against the line segment joining
// the two tag centers; the to side is rotated by pi so that the pair is
// symmetric under endpoint exchange. Distance is the floor-plane distance
// between the tag centers. Goodness is the quality metric of the stored
// measurement, smaller is better.
type Arc struct {
	FromTag   *Tag
	ToTag     *Tag
	FromTwist float64
	ToTwist   float64
	Distance  float64
	Goodness  float64
	InTree    bool

	// Traversal scratch, owned by Map.Update.
	visit uint64
}

// arcKey identifies an arc by its canonical endpoint id pair.
type arcKey struct {
	fromID int
	toID   int
}

// newArcKey canonicalizes an unordered id pair.
func newArcKey(id1, id2 int) arcKey {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return arcKey{fromID: id1, toID: id2}
}

// newArc builds an arc between from and to, swapping the endpoints and
// their twists when needed so the canonical ordering holds, and attaches
// the arc to both endpoints' incidence lists.
func newArc(from *Tag, fromTwist, distance float64, to *Tag, toTwist, goodness float64) *Arc {
	if from.ID > to.ID {
		from, to = to, from
		fromTwist, toTwist = toTwist, fromTwist
	}
	arc := &Arc{
		FromTag:   from,
		ToTag:     to,
		FromTwist: fromTwist,
		ToTwist:   toTwist,
		Distance:  distance,
		Goodness:  goodness,
	}
	from.AttachArc(arc)
	to.AttachArc(arc)
	return arc
}

// Update overwrites the stored measurement in place. The endpoints are
// untouched; the canonical ordering must already hold.
func (a *Arc) Update(fromTwist, distance, toTwist, goodness float64) {
	a.FromTwist = fromTwist
	a.Distance = distance
	a.ToTwist = toTwist
	a.Goodness = goodness
}

// Compare orders arcs lexicographically by (FromTag.ID, ToTag.ID) and
// returns -1, 0, or 1.
func (a *Arc) Compare(other *Arc) int {
	if result := a.FromTag.Compare(other.FromTag); result != 0 {
		return result
	}
	return a.ToTag.Compare(other.ToTag)
}

// Equal reports whether both arcs join the same tag pair.
func (a *Arc) Equal(other *Arc) bool {
	return a.Compare(other) == 0
}

// minHopCount returns the smaller hop count of the two endpoints.
func (a *Arc) minHopCount() int {
	if a.FromTag.HopCount < a.ToTag.HopCount {
		return a.FromTag.HopCount
	}
	return a.ToTag.HopCount
}

// DistanceCompare orders arcs by descending distance, breaking ties by
// descending minimum endpoint hop count. A list sorted ascending under this
// order keeps at its tail the shortest arc whose neighborhood is closest to
// the spanning-tree origin, which is the arc the frontier pops next.
func (a *Arc) DistanceCompare(other *Arc) int {
	switch {
	case a.Distance > other.Distance:
		return -1
	case a.Distance < other.Distance:
		return 1
	}
	switch ah, oh := a.minHopCount(), other.minHopCount(); {
	case ah > oh:
		return -1
	case ah < oh:
		return 1
	}
	return 0
}
