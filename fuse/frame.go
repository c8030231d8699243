package fuse

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Detection is one decoded fiducial observation inside a frame: the tag id
// plus the pixel center, the pixel twist in radians, and the pixel diagonal
// of the tag outline.
type Detection struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Twist    float64 `json:"twist"`
	Diagonal float64 `json:"diagonal,omitempty"`
}

// Frame is one camera frame's worth of detections, as published by a
// detector process. The fusion engine never sees pixels; frames arrive
// already decoded.
type Frame struct {
	Camera    string      `json:"camera"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Tags      []Detection `json:"tags"`
}

// DecodeFrame decodes a detection frame payload. Detectors publish either
// raw JSON or zlib-compressed JSON; the format is probed from the leading
// byte.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	jsonBytes := data
	if data[0] != '{' {
		inflated, err := inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown frame format: not JSON or zlib-compressed")
		}
		jsonBytes = inflated
	}

	return ParseFrameJSON(jsonBytes)
}

// ParseFrameJSON parses a detection frame from JSON and validates the frame
// geometry.
func ParseFrameJSON(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("parsing frame JSON: %w", err)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("frame has invalid dimensions %dx%d", frame.Width, frame.Height)
	}
	for i, d := range frame.Tags {
		if d.ID < 0 {
			return nil, fmt.Errorf("frame tag[%d] has negative id %d", i, d.ID)
		}
	}
	return &frame, nil
}

// ParseFrameFile reads and parses a recorded detection frame file, used by
// the replay mode.
func ParseFrameFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame file: %w", err)
	}
	return DecodeFrame(data)
}

// inflateZlib decompresses a zlib stream.
func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating zlib stream: %w", err)
	}
	return out, nil
}

// IngestFrame fuses every unordered pair of detections in the frame into
// the map and returns the number of arcs that improved. Detections sharing
// an id (a misread frame) contribute nothing for that pair.
func (m *Map) IngestFrame(frame *Frame) int {
	cameraTags := make([]*CameraTag, 0, len(frame.Tags))
	for _, d := range frame.Tags {
		cameraTags = append(cameraTags, &CameraTag{
			Tag:      m.TagLookup(d.ID),
			X:        d.X,
			Y:        d.Y,
			Twist:    NormalizeAngle(d.Twist),
			Diagonal: d.Diagonal,
		})
	}

	updated := 0
	for i := range cameraTags {
		for j := i + 1; j < len(cameraTags); j++ {
			updated += m.ArcUpdate(cameraTags[i], cameraTags[j], frame.Width, frame.Height)
		}
	}
	return updated
}
