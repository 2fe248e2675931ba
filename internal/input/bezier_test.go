package input

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(seed int64) *PathGenerator {
	return NewPathGenerator(DefaultPathConfig(), rand.New(rand.NewSource(seed)))
}

func TestHumanPathEndpointsAreExact(t *testing.T) {
	g := newTestGenerator(1)
	start := Point{X: 100, Y: 100}
	end := Point{X: 800, Y: 450}

	path := g.HumanPath(start, end, 35)
	require.Len(t, path, 35)
	assert.Equal(t, start, path[0])
	assert.Equal(t, end, path[len(path)-1])
}

func TestHumanPathDegenerateCounts(t *testing.T) {
	g := newTestGenerator(2)
	start := Point{X: 0, Y: 0}
	end := Point{X: 500, Y: 500}

	assert.Nil(t, g.HumanPath(start, end, 0))
	assert.Equal(t, []Point{start}, g.HumanPath(start, end, 1))
	assert.Equal(t, []Point{start, end}, g.HumanPath(start, end, 2))
}

func TestHumanPathShortDistanceIsNearlyLinear(t *testing.T) {
	g := newTestGenerator(3)
	start := Point{X: 10, Y: 10}
	end := Point{X: 14, Y: 13}

	path := g.HumanPath(start, end, 10)
	require.Len(t, path, 10)
	assert.Equal(t, start, path[0])
	assert.Equal(t, end, path[9])

	// Interior points stay within the wobble envelope of the segment.
	for i := 1; i < 9; i++ {
		tt := float64(i) / 9
		expected := start.Lerp(end, tt)
		assert.InDelta(t, expected.X, path[i].X, 0.5)
		assert.InDelta(t, expected.Y, path[i].Y, 0.5)
	}
}

func TestHumanPathCurves(t *testing.T) {
	g := newTestGenerator(4)
	start := Point{X: 0, Y: 0}
	end := Point{X: 1000, Y: 0}

	path := g.HumanPath(start, end, 40)

	// A straight horizontal move should bow away from y=0 somewhere.
	var maxDeviation float64
	for _, p := range path {
		if d := p.Y; d > maxDeviation || -d > maxDeviation {
			if d < 0 {
				d = -d
			}
			maxDeviation = d
		}
	}
	assert.Greater(t, maxDeviation, 1.0)
}

func TestHumanPathProgressesMonotonically(t *testing.T) {
	g := newTestGenerator(5)
	start := Point{X: 0, Y: 0}
	end := Point{X: 900, Y: 300}

	path := g.HumanPath(start, end, 30)

	// Arc-length spacing keeps successive steps comparable in size; no
	// step should dwarf the mean.
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Distance(path[i])
	}
	mean := total / float64(len(path)-1)
	for i := 1; i < len(path); i++ {
		assert.Less(t, path[i-1].Distance(path[i]), mean*3)
	}
}

func TestPointCountClampsToConfig(t *testing.T) {
	g := newTestGenerator(6)
	assert.Equal(t, 20, g.PointCount(5))
	assert.Equal(t, 30, g.PointCount(300))
	assert.Equal(t, 50, g.PointCount(10000))
}

func TestPathDeterministicUnderSeed(t *testing.T) {
	a := newTestGenerator(77)
	b := newTestGenerator(77)
	start := Point{X: 5, Y: 5}
	end := Point{X: 600, Y: 400}
	assert.Equal(t, a.HumanPath(start, end, 25), b.HumanPath(start, end, 25))
}
