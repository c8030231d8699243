package fuse

import "math"

// NormalizeAngle shifts an angle in radians into the range (-pi, pi].
func NormalizeAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

// DegreesToRadians converts an angle stored in degrees (the on-disk unit)
// to radians (the in-memory unit).
func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// RadiansToDegrees converts an angle in radians to degrees for persistence.
func RadiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}
