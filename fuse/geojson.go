package fuse

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// DefaultTrajectoryTolerance is the Douglas-Peucker tolerance, in floor
// units, applied to the robot trajectory before export.
const DefaultTrajectoryTolerance = 25.0

// FeatureCollection exports the map as GeoJSON: one Point feature per tag
// and one LineString feature per arc, in planar floor coordinates. Web
// frontends consume this directly. Call Update first if the map is dirty,
// otherwise exported poses are stale.
func (m *Map) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, tag := range m.Tags {
		f := geojson.NewFeature(orb.Point{tag.X, tag.Y})
		f.Properties["kind"] = "tag"
		f.Properties["id"] = tag.ID
		f.Properties["twist"] = tag.Twist
		f.Properties["z"] = tag.Z
		f.Properties["hopCount"] = tag.HopCount
		fc.Append(f)
	}

	for _, arc := range m.Arcs {
		line := orb.LineString{
			{arc.FromTag.X, arc.FromTag.Y},
			{arc.ToTag.X, arc.ToTag.Y},
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "arc"
		f.Properties["fromId"] = arc.FromTag.ID
		f.Properties["toId"] = arc.ToTag.ID
		f.Properties["distance"] = arc.Distance
		f.Properties["goodness"] = arc.Goodness
		f.Properties["inTree"] = arc.InTree
		fc.Append(f)
	}

	return fc
}

// TrajectoryLineString converts a robot trajectory to a simplified
// LineString. tolerance is the Douglas-Peucker threshold in floor units; 0
// disables simplification. The second return value is the planar length of
// the simplified path.
func TrajectoryLineString(trajectory []Location, tolerance float64) (orb.LineString, float64) {
	line := make(orb.LineString, 0, len(trajectory))
	for _, loc := range trajectory {
		line = append(line, orb.Point{loc.X, loc.Y})
	}
	if tolerance > 0 && len(line) > 2 {
		line = simplify.DouglasPeucker(tolerance).Simplify(line).(orb.LineString)
	}
	return line, planar.Length(line)
}

// TrajectoryFeature exports a robot trajectory as a GeoJSON LineString
// feature with bearing samples preserved in the properties.
func TrajectoryFeature(trajectory []Location, tolerance float64) *geojson.Feature {
	line, length := TrajectoryLineString(trajectory, tolerance)
	f := geojson.NewFeature(line)
	f.Properties["kind"] = "trajectory"
	f.Properties["points"] = len(trajectory)
	f.Properties["length"] = length
	if n := len(trajectory); n > 0 {
		f.Properties["lastBearing"] = trajectory[n-1].Bearing
	}
	return f
}
