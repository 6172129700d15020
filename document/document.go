package document

// Point is a single coordinate in a freehand stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawable item on the canvas: a shape, a freehand stroke,
// a text block or a sticky note. The sync engine never edits individual
// fields; elements travel as part of a full snapshot and are replaced
// wholesale.
type Element struct {
	ID           string  `json:"id"`
	Tool         string  `json:"tool,omitempty"`
	X1           float64 `json:"x1"`
	Y1           float64 `json:"y1"`
	X2           float64 `json:"x2"`
	Y2           float64 `json:"y2"`
	Points       []Point `json:"points,omitempty"`
	Text         string  `json:"text,omitempty"`
	StrokeWidth  float64 `json:"strokeWidth,omitempty"`
	StrokeColor  string  `json:"strokeColor,omitempty"`
	StrokeStyle  string  `json:"strokeStyle,omitempty"`
	Fill         string  `json:"fill,omitempty"`
	Opacity      float64 `json:"opacity,omitempty"`
	LastModified int64   `json:"lastModified,omitempty"`
}

// Snapshot is the complete ordered element list of a document at one
// instant. Order is paint order. Snapshots are the unit of transmission,
// storage and undo; the engine never sends or stores diffs.
type Snapshot []Element

// Clone returns a copy that shares no mutable state with the receiver.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	for i := range out {
		if out[i].Points != nil {
			pts := make([]Point, len(out[i].Points))
			copy(pts, out[i].Points)
			out[i].Points = pts
		}
	}
	return out
}
