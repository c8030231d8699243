package fuse

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Map files carry a <Map> root with per-tag and per-arc elements. Twists
// are stored in degrees on disk and converted to radians at load. The
// canonical arc ordering (From_Tag_Id < To_Tag_Id) must already hold on
// disk; the loader rejects files that violate it instead of re-swapping,
// since swapping would also have to conjugate the stored twists.

type xmlMap struct {
	XMLName   xml.Name `xml:"Map"`
	TagsCount int      `xml:"Tags_Count,attr"`
	ArcsCount int      `xml:"Arcs_Count,attr"`
	Tags      []xmlTag `xml:"Tag"`
	Arcs      []xmlArc `xml:"Arc"`
}

type xmlTag struct {
	ID       int     `xml:"Id,attr"`
	Twist    float64 `xml:"Twist,attr"`
	X        float64 `xml:"X,attr"`
	Y        float64 `xml:"Y,attr"`
	Diagonal float64 `xml:"Diagonal,attr"`
	HopCount int     `xml:"Hop_Count,attr"`
}

type xmlArc struct {
	FromTagID int     `xml:"From_Tag_Id,attr"`
	FromTwist float64 `xml:"From_Twist,attr"`
	Distance  float64 `xml:"Distance,attr"`
	ToTagID   int     `xml:"To_Tag_Id,attr"`
	ToTwist   float64 `xml:"To_Twist,attr"`
	Goodness  float64 `xml:"Goodness,attr"`
	InTree    int     `xml:"In_Tree,attr"`
}

// Write serializes the map as XML. The map is sorted first so output order
// is consistent between runs.
func (m *Map) Write(w io.Writer) error {
	m.Sort()

	doc := xmlMap{
		TagsCount: len(m.Tags),
		ArcsCount: len(m.Arcs),
	}
	for _, tag := range m.Tags {
		doc.Tags = append(doc.Tags, xmlTag{
			ID:       tag.ID,
			Twist:    RadiansToDegrees(tag.Twist),
			X:        tag.X,
			Y:        tag.Y,
			Diagonal: tag.Diagonal,
			HopCount: tag.HopCount,
		})
	}
	for _, arc := range m.Arcs {
		inTree := 0
		if arc.InTree {
			inTree = 1
		}
		doc.Arcs = append(doc.Arcs, xmlArc{
			FromTagID: arc.FromTag.ID,
			FromTwist: RadiansToDegrees(arc.FromTwist),
			Distance:  arc.Distance,
			ToTagID:   arc.ToTag.ID,
			ToTwist:   RadiansToDegrees(arc.ToTwist),
			Goodness:  arc.Goodness,
			InTree:    inTree,
		})
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", " ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encoding map XML: %w", err)
	}
	// Encode does not emit a trailing newline.
	_, err := io.WriteString(w, "\n")
	return err
}

// Save writes the map XML to the named file.
func (m *Map) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating map file: %w", err)
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadMap parses a map XML document into a fresh Map. Structural problems
// (malformed XML, count mismatches, non-canonical arcs, duplicate ids) fail
// the whole load; no partially loaded map is returned, so a caller's
// existing map is never disturbed by a bad file.
func ReadMap(r io.Reader, heights *HeightTable, announce TagAnnounce) (*Map, error) {
	var doc xmlMap
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing map XML: %w", err)
	}
	if len(doc.Tags) != doc.TagsCount {
		return nil, fmt.Errorf("map XML: Tags_Count=%d but %d <Tag> elements", doc.TagsCount, len(doc.Tags))
	}
	if len(doc.Arcs) != doc.ArcsCount {
		return nil, fmt.Errorf("map XML: Arcs_Count=%d but %d <Arc> elements", doc.ArcsCount, len(doc.Arcs))
	}

	m := NewMap(heights, announce)
	for _, xt := range doc.Tags {
		if _, ok := m.tagsByID[xt.ID]; ok {
			return nil, fmt.Errorf("map XML: duplicate tag id %d", xt.ID)
		}
		tag := m.TagLookup(xt.ID)
		tag.Twist = DegreesToRadians(xt.Twist)
		tag.X = xt.X
		tag.Y = xt.Y
		tag.Diagonal = xt.Diagonal
		tag.HopCount = xt.HopCount
	}
	for _, xa := range doc.Arcs {
		if xa.FromTagID >= xa.ToTagID {
			return nil, fmt.Errorf("map XML: arc [%d,%d] is not in canonical order", xa.FromTagID, xa.ToTagID)
		}
		key := newArcKey(xa.FromTagID, xa.ToTagID)
		if _, ok := m.arcIndex[key]; ok {
			return nil, fmt.Errorf("map XML: duplicate arc [%d,%d]", xa.FromTagID, xa.ToTagID)
		}
		arc := m.CreateArc(
			xa.FromTagID, DegreesToRadians(xa.FromTwist), xa.Distance,
			xa.ToTagID, DegreesToRadians(xa.ToTwist), xa.Goodness)
		arc.InTree = xa.InTree != 0
	}
	return m, nil
}

// RestoreMap reads a map XML file from disk.
func RestoreMap(path string, heights *HeightTable, announce TagAnnounce) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map file: %w", err)
	}
	defer f.Close()
	return ReadMap(f, heights, announce)
}

// Height table files carry a <Map_Tag_Heights> root with one <Tag_Height>
// element per id span.

type xmlHeights struct {
	XMLName xml.Name    `xml:"Map_Tag_Heights"`
	Count   int         `xml:"Count,attr"`
	Entries []xmlHeight `xml:"Tag_Height"`
}

type xmlHeight struct {
	FirstID          int     `xml:"First_Id,attr"`
	LastID           int     `xml:"Last_Id,attr"`
	DistancePerPixel float64 `xml:"Distance_Per_Pixel,attr"`
	Z                float64 `xml:"Z,attr"`
}

// ReadHeights parses a height table XML document.
func ReadHeights(r io.Reader) (*HeightTable, error) {
	var doc xmlHeights
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing height table XML: %w", err)
	}
	if len(doc.Entries) != doc.Count {
		return nil, fmt.Errorf("height table XML: Count=%d but %d <Tag_Height> elements", doc.Count, len(doc.Entries))
	}
	entries := make([]HeightEntry, 0, len(doc.Entries))
	for _, xh := range doc.Entries {
		if xh.FirstID > xh.LastID {
			return nil, fmt.Errorf("height table XML: span [%d,%d] is inverted", xh.FirstID, xh.LastID)
		}
		entries = append(entries, HeightEntry{
			FirstID:          xh.FirstID,
			LastID:           xh.LastID,
			DistancePerPixel: xh.DistancePerPixel,
			Z:                xh.Z,
		})
	}
	ht := NewHeightTable()
	ht.Load(entries)
	return ht, nil
}

// RestoreHeights reads a height table XML file from disk.
func RestoreHeights(path string) (*HeightTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening height table file: %w", err)
	}
	defer f.Close()
	return ReadHeights(f)
}

// WriteHeights serializes a height table as XML.
func WriteHeights(w io.Writer, ht *HeightTable) error {
	doc := xmlHeights{Count: len(ht.Entries())}
	for _, entry := range ht.Entries() {
		doc.Entries = append(doc.Entries, xmlHeight{
			FirstID:          entry.FirstID,
			LastID:           entry.LastID,
			DistancePerPixel: entry.DistancePerPixel,
			Z:                entry.Z,
		})
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", " ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encoding height table XML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// SaveHeights writes the height table XML to the named file.
func SaveHeights(path string, ht *HeightTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating height table file: %w", err)
	}
	if err := WriteHeights(f, ht); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
