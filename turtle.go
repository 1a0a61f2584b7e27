package ellex

import "math"

// Line is one drawn segment of a turtle's trail.
type Line struct {
	X1, Y1 float64
	X2, Y2 float64
	Color  string
}

// Turtle is the drawing state for turtle graphics: a position, a heading in
// degrees (0 pointing up, increasing clockwise), a pen, and the lines drawn
// so far. The zero Turtle is not ready; use NewTurtle.
type Turtle struct {
	X, Y    float64
	Angle   float64
	PenDown bool
	Color   string

	lines []Line
}

// NewTurtle returns a turtle at the origin, facing up, pen down, drawing in
// black.
func NewTurtle() *Turtle {
	return &Turtle{PenDown: true, Color: "black"}
}

// Forward moves the turtle dist units along its heading, drawing a line if
// the pen is down. Negative dist moves backward.
func (t *Turtle) Forward(dist float64) {
	rad := t.Angle * math.Pi / 180
	nx := t.X + dist*math.Sin(rad)
	ny := t.Y + dist*math.Cos(rad)
	if t.PenDown {
		t.lines = append(t.lines, Line{X1: t.X, Y1: t.Y, X2: nx, Y2: ny, Color: t.Color})
	}
	t.X, t.Y = nx, ny
}

// TurnRight rotates the heading clockwise by degrees.
func (t *Turtle) TurnRight(degrees float64) {
	t.Angle = math.Mod(t.Angle+degrees, 360)
	if t.Angle < 0 {
		t.Angle += 360
	}
}

// TurnLeft rotates the heading counterclockwise by degrees.
func (t *Turtle) TurnLeft(degrees float64) {
	t.TurnRight(-degrees)
}

// Up lifts the pen; subsequent moves draw nothing.
func (t *Turtle) Up() { t.PenDown = false }

// Down lowers the pen.
func (t *Turtle) Down() { t.PenDown = true }

// SetColor changes the drawing color for subsequent lines.
func (t *Turtle) SetColor(color string) { t.Color = color }

// Goto moves the turtle to (x, y), drawing a line if the pen is down.
func (t *Turtle) Goto(x, y float64) {
	if t.PenDown {
		t.lines = append(t.lines, Line{X1: t.X, Y1: t.Y, X2: x, Y2: y, Color: t.Color})
	}
	t.X, t.Y = x, y
}

// Home returns the turtle to the origin facing up without drawing.
func (t *Turtle) Home() {
	t.X, t.Y, t.Angle = 0, 0, 0
}

// Lines returns the drawn segments in drawing order.
func (t *Turtle) Lines() []Line { return t.lines }

// ClearDrawing discards the drawn lines, leaving position and pen state.
func (t *Turtle) ClearDrawing() { t.lines = nil }

// Reset restores the turtle to its initial state and clears the drawing.
func (t *Turtle) Reset() {
	*t = Turtle{PenDown: true, Color: "black"}
}
