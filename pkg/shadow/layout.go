package shadow

// Point is a position in the parent's coordinate space, in density
// independent points.
type Point struct {
	X float64
	Y float64
}

// Add returns the component-wise sum of p and q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a width/height extent in points.
type Size struct {
	Width  float64
	Height float64
}

// Rect is an origin plus a size.
type Rect struct {
	Origin Point
	Size   Size
}

// LayoutMetrics is the layout result attached to a node: the frame the
// layout pass computed for it, relative to the nearest ancestor that forms
// a view. Comparable by value.
type LayoutMetrics struct {
	Frame Rect
}

// EmptyLayoutMetrics marks a node the layout pass did not measure (for
// example raw text runs). The negative size keeps it distinct from a real
// zero-sized frame.
var EmptyLayoutMetrics = LayoutMetrics{Frame: Rect{Size: Size{Width: -1, Height: -1}}}
