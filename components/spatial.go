package components

import "math"

// Position represents an entity's world position.
type Position struct {
	X, Y float32
}

// Velocity represents an entity's velocity in units per second.
type Velocity struct {
	X, Y float32
}

// DistanceTo returns the euclidean distance between two positions.
func (p Position) DistanceTo(o Position) float32 {
	dx := o.X - p.X
	dy := o.Y - p.Y
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

// Direction returns the unit vector from p toward o, or zero if they coincide.
func (p Position) Direction(o Position) Velocity {
	d := p.DistanceTo(o)
	if d == 0 {
		return Velocity{}
	}
	return Velocity{X: (o.X - p.X) / d, Y: (o.Y - p.Y) / d}
}
