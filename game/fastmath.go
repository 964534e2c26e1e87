package game

import "math"

// Wander headings are drawn every few ticks for every host; these avoid
// the float32->float64 round trip Go's math package requires.

// normalizeAngle wraps angle to [-pi, pi] with single-step correction.
// Safe for inputs within one turn of the range.
func normalizeAngle(a float32) float32 {
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// fastSin approximates sin(x) using a polynomial. Accurate to ~0.001 for x in [-2π, 2π].
func fastSin(x float32) float32 {
	x = normalizeAngle(x)
	const pi = math.Pi
	const pi2 = pi * pi
	y := 4 * x * (pi - absf(x)) / pi2
	return 0.225*(y*absf(y)-y) + y
}

// fastCos approximates cos(x) using fastSin.
func fastCos(x float32) float32 {
	return fastSin(x + math.Pi/2)
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// heading returns the velocity of magnitude speed pointing along angle.
func heading(angle, speed float32) (x, y float32) {
	return fastCos(angle) * speed, fastSin(angle) * speed
}
