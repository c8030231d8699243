package fuse

import "math"

// BoundingBox accumulates the axis-aligned extent of a set of floor points.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBoundingBox returns an empty bounding box that any first point resets.
func NewBoundingBox() *BoundingBox {
	return &BoundingBox{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
	}
}

// Reset empties the bounding box.
func (b *BoundingBox) Reset() {
	*b = *NewBoundingBox()
}

// Extend grows the box to include (x, y).
func (b *BoundingBox) Extend(x, y float64) {
	if x < b.MinX {
		b.MinX = x
	}
	if y < b.MinY {
		b.MinY = y
	}
	if x > b.MaxX {
		b.MaxX = x
	}
	if y > b.MaxY {
		b.MaxY = y
	}
}

// Empty reports whether Extend has never been called since the last reset.
func (b *BoundingBox) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Width returns the X extent, or 0 for an empty box.
func (b *BoundingBox) Width() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxX - b.MinX
}

// Height returns the Y extent, or 0 for an empty box.
func (b *BoundingBox) Height() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxY - b.MinY
}
