package input

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

// Point is a 2D position in viewport pixels.
type Point struct {
	X float64
	Y float64
}

// Distance returns the euclidean distance to another point.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Lerp interpolates linearly toward another point.
func (p Point) Lerp(o Point, t float64) Point {
	return Point{X: p.X + (o.X-p.X)*t, Y: p.Y + (o.Y-p.Y)*t}
}

// cubicBezier evaluates the curve defined by the four control points at t.
func cubicBezier(p0, p1, p2, p3 Point, t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// arcLengthPoints samples the curve into n points spaced evenly by arc
// length rather than by parameter, so pointer speed stays uniform along
// curved segments. The first and last points are exactly p0 and p3.
func arcLengthPoints(p0, p1, p2, p3 Point, n int) []Point {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []Point{p0}
	}

	const samples = 100
	lengths := make([]float64, samples+1)
	prev := p0
	for i := 1; i <= samples; i++ {
		t := float64(i) / samples
		cur := cubicBezier(p0, p1, p2, p3, t)
		lengths[i] = lengths[i-1] + prev.Distance(cur)
		prev = cur
	}
	total := lengths[samples]

	points := make([]Point, 0, n)
	points = append(points, p0)
	for i := 1; i < n-1; i++ {
		target := total * float64(i) / float64(n-1)

		// Binary search for the sample bracketing the target length.
		lo, hi := 0, samples
		for lo < hi {
			mid := (lo + hi) / 2
			if lengths[mid] < target {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		idx := lo
		if idx == 0 {
			idx = 1
		}

		// Interpolate t between the bracketing samples.
		segLen := lengths[idx] - lengths[idx-1]
		frac := 0.0
		if segLen > 0 {
			frac = (target - lengths[idx-1]) / segLen
		}
		t := (float64(idx-1) + frac) / samples
		points = append(points, cubicBezier(p0, p1, p2, p3, t))
	}
	points = append(points, p3)
	return points
}

// PathConfig controls pointer path generation.
type PathConfig struct {
	MinPoints       int
	MaxPoints       int
	JitterIntensity float64
}

// DefaultPathConfig matches typical hand movement granularity.
func DefaultPathConfig() PathConfig {
	return PathConfig{MinPoints: 20, MaxPoints: 50, JitterIntensity: 0.3}
}

// PathGenerator produces human-plausible pointer trajectories.
type PathGenerator struct {
	cfg   PathConfig
	rng   *rand.Rand
	noise *perlin.Perlin
	tick  float64
}

// NewPathGenerator builds a generator around the given rng.
func NewPathGenerator(cfg PathConfig, rng *rand.Rand) *PathGenerator {
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = 20
	}
	if cfg.MaxPoints < cfg.MinPoints {
		cfg.MaxPoints = cfg.MinPoints
	}
	return &PathGenerator{
		cfg:   cfg,
		rng:   rng,
		noise: perlin.NewPerlin(2, 2, 3, rng.Int63()),
	}
}

// PointCount derives the sample count for a movement of the given distance.
func (g *PathGenerator) PointCount(distance float64) int {
	n := int(math.Ceil(distance / 10))
	if n < g.cfg.MinPoints {
		n = g.cfg.MinPoints
	}
	if n > g.cfg.MaxPoints {
		n = g.cfg.MaxPoints
	}
	return n
}

// HumanPath generates n points from start to end along a curved,
// decelerating trajectory. Endpoints are exact.
func (g *PathGenerator) HumanPath(start, end Point, n int) []Point {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []Point{start}
	case n == 2:
		return []Point{start, end}
	}

	dist := start.Distance(end)

	// Short hops don't arc, they just tremble a little.
	if dist < 10 {
		points := make([]Point, 0, n)
		points = append(points, start)
		for i := 1; i < n-1; i++ {
			t := float64(i) / float64(n-1)
			p := start.Lerp(end, t)
			p.X += (g.rng.Float64() - 0.5) * 0.5
			p.Y += (g.rng.Float64() - 0.5) * 0.5
			points = append(points, p)
		}
		points = append(points, end)
		return points
	}

	// Arc the curve to one side of the straight line.
	arc := dist * (0.1 + g.rng.Float64()*0.2)
	if g.rng.Float64() < 0.5 {
		arc = -arc
	}

	// Unit perpendicular of the movement direction.
	px := -(end.Y - start.Y) / dist
	py := (end.X - start.X) / dist

	cp1t := 0.2 + g.rng.Float64()*0.15
	cp2t := 0.65 + g.rng.Float64()*0.15
	cp1Arc := arc * (0.5 + g.rng.Float64()*0.5)
	cp2Arc := arc * (0.3 + g.rng.Float64()*0.4)

	cp1 := start.Lerp(end, cp1t)
	cp1.X += px * cp1Arc
	cp1.Y += py * cp1Arc
	cp2 := start.Lerp(end, cp2t)
	cp2.X += px * cp2Arc
	cp2.Y += py * cp2Arc

	points := arcLengthPoints(start, cp1, cp2, end, n)
	g.applyEasing(points, end)
	g.applyJitter(points)
	points[0] = start
	points[len(points)-1] = end
	return points
}

// applyEasing pulls the last 30% of the path toward the target, simulating
// the deceleration and micro-correction phase of a real hand movement.
func (g *PathGenerator) applyEasing(points []Point, end Point) {
	n := len(points)
	if n < 3 {
		return
	}
	from := int(float64(n) * 0.7)
	for i := from; i < n-1; i++ {
		progress := float64(i-from) / float64(n-from)
		correction := 1 - progress*0.1
		nudge := (1 - correction) * 0.1
		points[i].X += (end.X - points[i].X) * nudge
		points[i].Y += (end.Y - points[i].Y) * nudge
	}
	points[n-1] = end
}

// applyJitter adds low-amplitude perlin wobble to interior points.
// Endpoints stay untouched so targets are hit exactly.
func (g *PathGenerator) applyJitter(points []Point) {
	if g.cfg.JitterIntensity <= 0 {
		return
	}
	for i := 1; i < len(points)-1; i++ {
		g.tick += 0.13
		points[i].X += g.noise.Noise1D(g.tick) * g.cfg.JitterIntensity
		points[i].Y += g.noise.Noise1D(g.tick+57.3) * g.cfg.JitterIntensity
	}
}
