package fuse

import (
	"sync"
	"time"
)

// maxTrajectoryPoints bounds the retained robot trajectory; older points
// are dropped.
const maxTrajectoryPoints = 10000

// Tracker collects the fusion engine's outputs for concurrent consumers.
// The engine itself is single-threaded; Tracker is the boundary where the
// service goroutine hands announced poses and trajectory points to the
// HTTP handlers and renderers.
type Tracker struct {
	mu         sync.RWMutex
	poses      map[int]*TagPose
	trajectory []Location
	frameCount map[string]int
	lastFrame  map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		poses:      make(map[int]*TagPose),
		frameCount: make(map[string]int),
		lastFrame:  make(map[string]time.Time),
	}
}

// Announce returns a TagAnnounce callback that records every announced pose
// in the tracker. Wire it into the Map (possibly chained with a Publisher).
func (tr *Tracker) Announce() TagAnnounce {
	return func(id int, x, y, z, twist, dx, dy, dz float64) {
		tr.RecordPose(TagPose{
			ID: id, X: x, Y: y, Z: z, Twist: twist,
			Dx: dx, Dy: dy, Dz: dz,
			Timestamp: time.Now().Unix(),
		})
	}
}

// RecordPose stores the latest pose for a tag.
func (tr *Tracker) RecordPose(pose TagPose) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	p := pose
	tr.poses[pose.ID] = &p
}

// GetPoses returns a copy of all recorded tag poses.
func (tr *Tracker) GetPoses() map[int]*TagPose {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	result := make(map[int]*TagPose, len(tr.poses))
	for id, pose := range tr.poses {
		p := *pose
		result[id] = &p
	}
	return result
}

// RecordLocation appends one robot trajectory point, evicting the oldest
// point once the trajectory cap is reached.
func (tr *Tracker) RecordLocation(loc Location) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.trajectory) >= maxTrajectoryPoints {
		tr.trajectory = tr.trajectory[1:]
	}
	tr.trajectory = append(tr.trajectory, loc)
}

// GetTrajectory returns a copy of the recorded robot trajectory in arrival
// order.
func (tr *Tracker) GetTrajectory() []Location {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	result := make([]Location, len(tr.trajectory))
	copy(result, tr.trajectory)
	return result
}

// ClearTrajectory discards the recorded trajectory.
func (tr *Tracker) ClearTrajectory() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.trajectory = nil
}

// RecordFrame counts one ingested frame for the given camera.
func (tr *Tracker) RecordFrame(cameraID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.frameCount[cameraID]++
	tr.lastFrame[cameraID] = time.Now()
}

// FrameStats returns per-camera frame counts and last arrival times.
func (tr *Tracker) FrameStats() (map[string]int, map[string]time.Time) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	counts := make(map[string]int, len(tr.frameCount))
	for id, n := range tr.frameCount {
		counts[id] = n
	}
	last := make(map[string]time.Time, len(tr.lastFrame))
	for id, t := range tr.lastFrame {
		last[id] = t
	}
	return counts, last
}

// HasPoses reports whether any tag pose has been announced yet.
func (tr *Tracker) HasPoses() bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.poses) > 0
}

// ChainAnnounce fans one announce callback out to several consumers, nil
// entries skipped.
func ChainAnnounce(callbacks ...TagAnnounce) TagAnnounce {
	return func(id int, x, y, z, twist, dx, dy, dz float64) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(id, x, y, z, twist, dx, dy, dz)
			}
		}
	}
}
