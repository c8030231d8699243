package fuse

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Edge and overlay colors follow the long-standing map conventions:
// spanning-tree arcs red, cross arcs green, axes cyan, robot trajectory
// purple over black bearing triangles.
var (
	axisColor       = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	treeArcColor    = color.RGBA{R: 200, G: 0, B: 0, A: 255}
	crossArcColor   = color.RGBA{R: 0, G: 160, B: 0, A: 255}
	tagColor        = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	trajectoryColor = color.RGBA{R: 160, G: 0, B: 160, A: 255}
)

// Trajectory triangle glyph dimensions in floor units.
const (
	bearingTriangleNose = 40.0
	bearingTriangleTail = 20.0
)

// MapRenderer renders a fused tag map as vector graphics: axes, oriented
// tag glyphs, arcs colored by spanning-tree membership, and an optional
// robot trajectory overlay.
type MapRenderer struct {
	Map         *Map
	Trajectory  []Location
	Padding     float64           // Padding in floor units
	GridSpacing float64           // Grid line spacing in floor units; 0 disables
	Resolution  canvas.Resolution // Resolution for PNG output (default: 300 DPI)
	TagRadius   float64           // Tag glyph radius in floor units
	Labels      bool              // Draw tag id labels on PNG output
}

// NewMapRenderer creates a renderer with default settings. Callers should
// run Map.Update first so poses are current.
func NewMapRenderer(m *Map) *MapRenderer {
	return &MapRenderer{
		Map:         m,
		Padding:     500.0,
		GridSpacing: 1000.0,
		Resolution:  canvas.DPI(300),
		TagRadius:   60.0,
		Labels:      true,
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// bounds returns the world-space bounding box over tag positions and
// trajectory points, padded. An empty map yields a small box around the
// origin so renders never degenerate.
func (r *MapRenderer) bounds() *BoundingBox {
	box := NewBoundingBox()
	for _, tag := range r.Map.Tags {
		tag.BoundingBoxUpdate(box)
	}
	for _, loc := range r.Trajectory {
		box.Extend(loc.X, loc.Y)
	}
	if box.Empty() {
		box.Extend(0, 0)
	}
	return box
}

// RenderToSVG writes the map as an SVG to the provided writer
func (r *MapRenderer) RenderToSVG(w io.Writer) error {
	box := r.bounds()
	width := box.Width() + 2*r.Padding
	height := box.Height() + 2*r.Padding

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, box, width, height)

	if err := svgRenderer.Close(); err != nil {
		return fmt.Errorf("closing SVG renderer: %w", err)
	}
	return nil
}

// RenderToPNG writes the map as a PNG to the provided writer
func (r *MapRenderer) RenderToPNG(w io.Writer) error {
	box := r.bounds()
	width := box.Width() + 2*r.Padding
	height := box.Height() + 2*r.Padding

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, box, width, height)

	if r.Labels {
		r.drawTagLabels(rast, box, height)
	}

	// Rasterizer implements draw.Image, which embeds image.Image
	return png.Encode(w, rast)
}

// renderToCanvas renders the map to a canvas renderer (shared logic for SVG and PNG)
func (r *MapRenderer) renderToCanvas(renderer canvasRenderer, box *BoundingBox, width, height float64) {
	// White background
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(x, y float64) (float64, float64) {
		return (x - box.MinX) + r.Padding, (y - box.MinY) + r.Padding
	}

	strokeStyle := func(c color.RGBA, w float64) canvas.Style {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = w
		return style
	}

	line := func(x1, y1, x2, y2 float64, style canvas.Style) {
		p := &canvas.Path{}
		cx1, cy1 := toCanvas(x1, y1)
		cx2, cy2 := toCanvas(x2, y2)
		p.MoveTo(cx1, cy1)
		p.LineTo(cx2, cy2)
		renderer.RenderPath(p, style, canvas.Identity)
	}

	// Grid lines
	if r.GridSpacing > 0 {
		gridStyle := strokeStyle(color.RGBA{R: 210, G: 210, B: 210, A: 255}, 2.0)
		gridStyle.Dashes = []float64{10.0, 10.0}
		for x := math.Floor(box.MinX/r.GridSpacing) * r.GridSpacing; x <= box.MaxX; x += r.GridSpacing {
			line(x, box.MinY, x, box.MaxY, gridStyle)
		}
		for y := math.Floor(box.MinY/r.GridSpacing) * r.GridSpacing; y <= box.MaxY; y += r.GridSpacing {
			line(box.MinX, y, box.MaxX, y, gridStyle)
		}
	}

	// X/Y axes through the origin
	axisStyle := strokeStyle(axisColor, 6.0)
	line(box.MinX, 0, box.MaxX, 0, axisStyle)
	line(0, box.MinY, 0, box.MaxY, axisStyle)

	// Arcs: red inside the spanning tree, green cross arcs, drawn in arc
	// list order
	treeStyle := strokeStyle(treeArcColor, 10.0)
	crossStyle := strokeStyle(crossArcColor, 6.0)
	for _, arc := range r.Map.Arcs {
		style := crossStyle
		if arc.InTree {
			style = treeStyle
		}
		line(arc.FromTag.X, arc.FromTag.Y, arc.ToTag.X, arc.ToTag.Y, style)
	}

	// Tag glyphs: circle plus a tick along the tag's twist
	tagStroke := strokeStyle(tagColor, 8.0)
	for _, tag := range r.Map.Tags {
		cx, cy := toCanvas(tag.X, tag.Y)
		circle := canvas.Circle(r.TagRadius).Translate(cx, cy)
		renderer.RenderPath(circle, tagStroke, canvas.Identity)

		tickX := tag.X + 1.8*r.TagRadius*math.Cos(tag.Twist)
		tickY := tag.Y + 1.8*r.TagRadius*math.Sin(tag.Twist)
		line(tag.X, tag.Y, tickX, tickY, tagStroke)
	}

	// Robot trajectory: bearing triangles connected by a polyline
	trajStyle := strokeStyle(trajectoryColor, 6.0)
	triangleStyle := strokeStyle(color.RGBA{A: 255}, 4.0)
	lastX, lastY := 0.0, 0.0
	for i, loc := range r.Trajectory {
		noseAngle := math.Pi * 0.75
		x0 := loc.X + bearingTriangleNose*math.Cos(loc.Bearing)
		y0 := loc.Y + bearingTriangleNose*math.Sin(loc.Bearing)
		x1 := loc.X + bearingTriangleTail*math.Cos(loc.Bearing+noseAngle)
		y1 := loc.Y + bearingTriangleTail*math.Sin(loc.Bearing+noseAngle)
		x2 := loc.X + bearingTriangleTail*math.Cos(loc.Bearing-noseAngle)
		y2 := loc.Y + bearingTriangleTail*math.Sin(loc.Bearing-noseAngle)
		line(x0, y0, x1, y1, triangleStyle)
		line(x1, y1, x2, y2, triangleStyle)
		line(x2, y2, x0, y0, triangleStyle)

		if i > 0 {
			line(lastX, lastY, loc.X, loc.Y, trajStyle)
		}
		lastX, lastY = loc.X, loc.Y
	}
}

// drawTagLabels stamps each tag's id next to its glyph on the rasterized
// image. Vector output skips labels; tdewolff/canvas text would require a
// loaded font face there.
func (r *MapRenderer) drawTagLabels(img *rasterizer.Rasterizer, box *BoundingBox, height float64) {
	dpmm := r.Resolution.DPMM()

	// Deterministic draw order
	tags := make([]*Tag, len(r.Map.Tags))
	copy(tags, r.Map.Tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })

	for _, tag := range tags {
		cx := (tag.X - box.MinX) + r.Padding
		cy := (tag.Y - box.MinY) + r.Padding
		// Canvas is y-up, images are y-down
		px := int((cx + 1.5*r.TagRadius) * dpmm)
		py := int((height - cy) * dpmm)

		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{A: 255}),
			Face: basicfont.Face7x13,
			Dot:  fixed.Point26_6{X: fixed.I(px), Y: fixed.I(py)},
		}
		d.DrawString(fmt.Sprintf("%d", tag.ID))
	}
}
