package field

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfansharif/canopy/internal/geom"
)

func rect(w, h float64) geom.Rect {
	return geom.Rect{Left: -w / 2, Right: w / 2, Top: h / 2, Bottom: -h / 2, Width: w, Height: h}
}

func TestPlanLayout_Example(t *testing.T) {
	l, err := PlanLayout(rect(20, 10), 2, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 11, l.Columns)
	assert.Equal(t, 11, l.Rows)
	assert.Equal(t, 121, l.InstanceCount)
	assert.Equal(t, 2.0, l.HorizontalSpacing)
	assert.Equal(t, 1.0, l.VerticalSpacing)
}

func TestPlanLayout_Formula(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		w, h := 0.1+rng.Float64()*50, 0.1+rng.Float64()*50
		sx, sy := 0.05+rng.Float64()*3, 0.05+rng.Float64()*3
		m := rng.Intn(4)

		l, err := PlanLayout(rect(w, h), sx, sy, m)
		require.NoError(t, err)

		assert.Equal(t, int(math.Ceil(w/sx))+m, l.Columns)
		assert.Equal(t, int(math.Ceil(h/sy))+m, l.Rows)
		assert.Equal(t, l.Columns*l.Rows, l.InstanceCount)

		// Coverage: the grid spans the viewport, and with a margin the
		// staggered rows reach the right edge within half a spacing unit.
		assert.GreaterOrEqual(t, float64(l.Columns-1)*sx, w-sx-1e-9)
		if m >= 1 {
			evenLast := float64(l.Columns-1) * sx
			oddLast := evenLast - sx/2
			assert.GreaterOrEqual(t, evenLast, w-1e-9)
			assert.LessOrEqual(t, w-oddLast, sx/2+1e-9)
		}
	}
}

func TestPlanLayout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		sx, sy float64
		margin int
		target error
	}{
		{"zero horizontal", 0, 1, 1, ErrInvalidSpacing},
		{"negative vertical", 1, -1, 1, ErrInvalidSpacing},
		{"NaN spacing", math.NaN(), 1, 1, ErrInvalidSpacing},
		{"infinite spacing", 1, math.Inf(1), 1, ErrInvalidSpacing},
		{"negative margin", 1, 1, -1, ErrInvalidMargin},
		{"too fine", 1e-9, 1e-9, 0, ErrTooManyInstances},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PlanLayout(rect(20, 10), tc.sx, tc.sy, tc.margin)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestLayout_Index(t *testing.T) {
	l := Layout{Columns: 7, Rows: 3, InstanceCount: 21}
	seen := make(map[int]bool)
	for y := 0; y < l.Rows; y++ {
		for x := 0; x < l.Columns; x++ {
			i := l.Index(x, y)
			assert.False(t, seen[i], "index %d assigned twice", i)
			seen[i] = true

			assert.GreaterOrEqual(t, i, 0)
			assert.Less(t, i, l.InstanceCount)
		}
	}
	assert.Len(t, seen, l.InstanceCount)
	assert.True(t, l.Valid())
	assert.False(t, Layout{}.Valid())
}

func TestSpacingFor(t *testing.T) {
	sx, sy := SpacingFor(geom.Size{X: 0.7, Y: 1, Z: 0.15}, 1, 0.46)
	assert.InDelta(t, 0.7, sx, 1e-12)
	assert.InDelta(t, 0.46, sy, 1e-12)
}
