package polygonize

import (
	"testing"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
	"ashfall/pkg/equalarea"
)

func maskFromRows(rows ...string) *models.BinaryMask {
	m := models.NewBinaryMask(len(rows[0]), len(rows))
	for r, line := range rows {
		for c, ch := range line {
			m.Set(c, r, ch == '#')
		}
	}
	return m
}

// unitTransform maps pixel corners to x = col, y = height - row.
func unitTransform(m *models.BinaryMask) models.Affine {
	return models.FromBounds(models.Bounds{MaxX: float64(m.Width), MaxY: float64(m.Height)}, m.Width, m.Height)
}

func ringArea(p *geom.Polygon, k int) float64 {
	return signedAreaFlat(p.LinearRing(k).FlatCoords())
}

func TestTraceSinglePixel(t *testing.T) {
	m := maskFromRows("...", ".#.", "...")
	polys := Trace(m, unitTransform(m))
	require.Len(t, polys, 1)

	p := polys[0]
	assert.Equal(t, SRID, p.SRID())
	assert.Equal(t, 1, p.NumLinearRings())
	assert.Equal(t, 5, p.LinearRing(0).NumCoords())
	assert.InDelta(t, 1.0, ringArea(p, 0), 1e-12)
	assert.Equal(t, models.Bounds{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}, flatBounds(p.FlatCoords(), 2))
}

func TestTraceDropsCollinearVertices(t *testing.T) {
	m := maskFromRows(
		"......",
		".####.",
		".####.",
		"......",
	)
	polys := Trace(m, unitTransform(m))
	require.Len(t, polys, 1)
	assert.Equal(t, 5, polys[0].LinearRing(0).NumCoords())
	assert.InDelta(t, 8.0, ringArea(polys[0], 0), 1e-12)
}

func TestTraceHoleOrientation(t *testing.T) {
	m := maskFromRows(
		".....",
		".###.",
		".#.#.",
		".###.",
		".....",
	)
	polys := Trace(m, unitTransform(m))
	require.Len(t, polys, 1)

	p := polys[0]
	require.Equal(t, 2, p.NumLinearRings())
	assert.InDelta(t, 9.0, ringArea(p, 0), 1e-12, "exterior counter-clockwise")
	assert.InDelta(t, -1.0, ringArea(p, 1), 1e-12, "hole clockwise")
	assert.InDelta(t, 8.0, p.Area(), 1e-12)

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(p))
	assert.False(t, Contains(mp, 2.5, 2.5))
	assert.True(t, Contains(mp, 1.5, 2.5))
	assert.False(t, Contains(mp, 0.5, 0.5))
}

func TestTraceKeepsDiagonalComponentsApart(t *testing.T) {
	m := maskFromRows(
		"....",
		".#..",
		"..#.",
		"....",
	)
	polys := Trace(m, unitTransform(m))
	require.Len(t, polys, 2)
	for _, p := range polys {
		assert.InDelta(t, 1.0, ringArea(p, 0), 1e-12)
	}

	mp, err := Dissolve(polys)
	require.NoError(t, err)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.NoError(t, Validate(mp))
}

func TestTraceNorthUpGeoTransform(t *testing.T) {
	g, err := models.NewGrid(models.Bounds{MinX: 110, MinY: -12, MaxX: 114, MaxY: -8}, 5, 5)
	require.NoError(t, err)
	m := models.NewBinaryMask(5, 5)
	m.Set(2, 2, true)

	polys := Trace(m, g.Transform())
	require.Len(t, polys, 1)
	b := flatBounds(polys[0].FlatCoords(), 2)
	assert.InDelta(t, 111.5, b.MinX, 1e-12)
	assert.InDelta(t, 112.5, b.MaxX, 1e-12)
	assert.InDelta(t, -10.5, b.MinY, 1e-12)
	assert.InDelta(t, -9.5, b.MaxY, 1e-12)
	assert.Greater(t, ringArea(polys[0], 0), 0.0)
}

func TestRegionEmptyMask(t *testing.T) {
	m := models.NewBinaryMask(4, 4)
	_, err := Region(m, unitTransform(m))
	require.Error(t, err)
	assert.True(t, eris.Is(err, models.ErrInvalidGeometry))
}

func TestRegionAreaIsAdditive(t *testing.T) {
	g, err := models.NewGrid(models.Bounds{MinX: 110, MinY: -15, MaxX: 125, MaxY: 0}, 61, 61)
	require.NoError(t, err)
	tr := g.Transform()

	a := models.NewBinaryMask(g.NX, g.NY)
	b := models.NewBinaryMask(g.NX, g.NY)
	for row := 5; row < 20; row++ {
		for col := 5; col < 18; col++ {
			a.Set(col, row, true)
		}
	}
	for row := 30; row < 50; row++ {
		for col := 35; col < 55; col++ {
			if (col-45)*(col-45)+(row-40)*(row-40) <= 64 {
				b.Set(col, row, true)
			}
		}
	}
	both := a.Clone()
	for i, v := range b.Bits {
		both.Bits[i] = both.Bits[i] || v
	}

	proj := equalarea.EPSG6933()
	ra, err := Region(a, tr)
	require.NoError(t, err)
	rb, err := Region(b, tr)
	require.NoError(t, err)
	rboth, err := Region(both, tr)
	require.NoError(t, err)

	assert.Equal(t, 2, rboth.NumPolygons())
	assert.InEpsilon(t, AreaKM2(ra, proj)+AreaKM2(rb, proj), AreaKM2(rboth, proj), 1e-9)

	// pixel count times pixel size, within the variation across rows
	px := proj.PixelKM2(tr, 0, 12)
	assert.InEpsilon(t, float64(a.Count())*px, AreaKM2(ra, proj), 0.02)
}

func TestDissolveUnionsOverlappingParts(t *testing.T) {
	sq := func(x0, y0 float64) *geom.Polygon {
		return geom.NewPolygonFlat(geom.XY, []float64{
			x0, y0, x0 + 1, y0, x0 + 1, y0 + 1, x0, y0 + 1, x0, y0,
		}, []int{10})
	}
	mp, err := Dissolve([]*geom.Polygon{sq(0, 0), sq(0.5, 0), sq(5, 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, 2.5, mp.Area(), 1e-9)
	assert.NoError(t, Validate(mp))

	_, err = Dissolve(nil)
	assert.True(t, eris.Is(err, models.ErrInvalidGeometry))
}

func TestFromPolygonalNesting(t *testing.T) {
	p := ctgeom.Polygon{
		{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
		{{X: 2, Y: 2}, {X: 2, Y: 8}, {X: 8, Y: 8}, {X: 8, Y: 2}},
		{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}},
		{{X: 20, Y: 0}, {X: 21, Y: 0}, {X: 21, Y: 1}, {X: 20, Y: 1}},
	}
	polys := FromPolygonal(p)
	require.Len(t, polys, 3)

	total := 0.0
	holes := 0
	for _, poly := range polys {
		total += poly.Area()
		holes += poly.NumLinearRings() - 1
		assert.Greater(t, ringArea(poly, 0), 0.0)
		for k := 1; k < poly.NumLinearRings(); k++ {
			assert.Less(t, ringArea(poly, k), 0.0)
		}
	}
	assert.Equal(t, 1, holes)
	assert.InDelta(t, 100-36+4+1, total, 1e-9)
}

func TestValidateRejectsBadRings(t *testing.T) {
	bowtie := geom.NewMultiPolygonFlat(geom.XY, []float64{0, 0, 2, 2, 2, 0, 0, 2, 0, 0}, [][]int{{10}})
	err := Validate(bowtie)
	require.Error(t, err)
	assert.True(t, eris.Is(err, models.ErrInvalidGeometry))

	open := geom.NewMultiPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1}, [][]int{{8}})
	assert.True(t, eris.Is(Validate(open), models.ErrInvalidGeometry))

	short := geom.NewMultiPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 0, 0}, [][]int{{6}})
	assert.True(t, eris.Is(Validate(short), models.ErrInvalidGeometry))

	flat := geom.NewMultiPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 2, 0, 0, 0}, [][]int{{8}})
	assert.True(t, eris.Is(Validate(flat), models.ErrInvalidGeometry))

	assert.True(t, eris.Is(Validate(geom.NewMultiPolygon(geom.XY)), models.ErrInvalidGeometry))
}
