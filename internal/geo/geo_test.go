package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(12.97, 77.59, 12.97, 77.59))
	assert.Equal(t, 0.0, Haversine(0, 0, 0, 0))
}

func TestHaversine_Symmetric(t *testing.T) {
	points := [][4]float64{
		{12.9716, 77.5946, 19.0760, 72.8777},
		{-33.86, 151.21, 51.50, -0.12},
		{0, 0, 0, 1},
	}
	for _, p := range points {
		ab := Haversine(p[0], p[1], p[2], p[3])
		ba := Haversine(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestHaversine_OneDegreeAtEquator(t *testing.T) {
	assert.InDelta(t, 111.19, Haversine(0, 0, 0, 1), 0.01)
}

func TestHaversine_BangaloreToMumbai(t *testing.T) {
	assert.InDelta(t, 845, Haversine(12.9716, 77.5946, 19.0760, 72.8777), 5)
}
