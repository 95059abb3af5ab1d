package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"ashfall/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadObservations(t *testing.T) {
	csv := "Site,LONGITUDE,latitude,Thickness_cm\n" +
		"A,118.0,-8.25,120\n" +
		"B, 118.5 ,-8.0,0\n" +
		"\n" +
		"C,119,-9,\n" +
		"D,117.2,-7.9,3.5\n"

	obs, err := ReadObservations(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, models.Observation{Lon: 118, Lat: -8.25, ThicknessCM: 120}, obs[0])
	assert.True(t, obs[1].Dry())
	assert.Equal(t, 3.5, obs[2].ThicknessCM)
}

func TestReadObservationsErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing thickness column", "longitude,latitude\n1,2\n"},
		{"bad number", "longitude,latitude,thickness_cm\n1,abc,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadObservations(strings.NewReader(tt.csv))
			assert.Error(t, err)
		})
	}
}

func TestLoadObservations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "obs.csv", "Longitude,Latitude,Thickness_cm\n118,-8.25,10\n")
	obs, err := LoadObservations(path)
	require.NoError(t, err)
	assert.Len(t, obs, 1)

	_, err = LoadObservations(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

const testGrid = `ncols 3
nrows 2
xllcorner 110
yllcorner -10
cellsize 0.5
NODATA_value -9999
3 21 -9999
40 40 5
`

func TestReadASCIIGrid(t *testing.T) {
	r, err := ReadASCIIGrid(strings.NewReader(testGrid), "EPSG:4326")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, 2, r.Height)
	assert.Equal(t, []uint8{3, 21, 0, 40, 40, 5}, r.Classes)

	x, y := r.Transform.Apply(0, 0)
	assert.InDelta(t, 110.0, x, 1e-12)
	assert.InDelta(t, -9.0, y, 1e-12)
	x, y = r.Transform.Apply(3, 2)
	assert.InDelta(t, 111.5, x, 1e-12)
	assert.InDelta(t, -10.0, y, 1e-12)
}

func TestReadASCIIGridCenterOrigin(t *testing.T) {
	grid := "ncols 1\nnrows 1\nxllcenter 0.5\nyllcenter 0.5\ncellsize 1\n7\n"
	r, err := ReadASCIIGrid(strings.NewReader(grid), "EPSG:4326")
	require.NoError(t, err)
	x, y := r.Transform.Apply(0, 0)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 1.0, y)
}

func TestReadASCIIGridErrors(t *testing.T) {
	tests := []struct {
		name string
		grid string
	}{
		{"short", "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"},
		{"long", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n"},
		{"out of range", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n300\n"},
		{"fractional", "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1.5\n"},
		{"no origin", "ncols 1\nnrows 1\ncellsize 1\n1\n"},
		{"no size", "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"huge header", "ncols 1000000000\nnrows 1000000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"overflowing header", "ncols 1e300\nnrows 1e300\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
		{"fractional size", "ncols 0.5\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadASCIIGrid(strings.NewReader(tt.grid), "EPSG:4326")
			require.Error(t, err)
			assert.True(t, eris.Is(err, models.ErrInvalidRaster))
		})
	}

	_, err := ReadASCIIGrid(strings.NewReader(testGrid), "")
	assert.True(t, eris.Is(err, models.ErrInvalidRaster), "a raster without reference is rejected")
}

func TestLoadLandUse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "landuse.asc", testGrid)

	_, err := LoadLandUse(path)
	require.Error(t, err)
	assert.True(t, eris.Is(err, models.ErrInvalidRaster), "missing .prj")

	writeFile(t, dir, "landuse.prj", `GEOGCS["WGS 84",DATUM["WGS_1984"]]`+"\n")
	r, err := LoadLandUse(path)
	require.NoError(t, err)
	assert.Equal(t, `GEOGCS["WGS 84",DATUM["WGS_1984"]]`, r.CRS)
}

func square(x0, y0, size float64, clockwise bool) []shp.Point {
	pts := []shp.Point{{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size}, {X: x0, Y: y0}}
	if clockwise {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

func TestShapeToMultiPolygon(t *testing.T) {
	// shapefile convention: exteriors clockwise, holes counter-clockwise
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		square(0, 0, 10, true),
		square(2, 2, 2, false),
		square(20, 0, 5, true),
	}))

	mp := ShapeToMultiPolygon(&poly)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 4326, mp.SRID())

	first := mp.Polygon(0)
	assert.Equal(t, 2, first.NumLinearRings())
	assert.InDelta(t, 96.0, first.Area(), 1e-9)
	assert.Greater(t, ringArea(first.LinearRing(0).FlatCoords()), 0.0, "exterior is counter-clockwise")
	assert.Less(t, ringArea(first.LinearRing(1).FlatCoords()), 0.0, "hole is clockwise")
	assert.Equal(t, 1, mp.Polygon(1).NumLinearRings())

	assert.Nil(t, ShapeToMultiPolygon(&shp.Polygon{}))
}

func TestShapeToMultiPolygonIslandInLake(t *testing.T) {
	// island inside a lake inside a country, all wound the same way
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		square(0, 0, 10, false),
		square(2, 2, 6, false),
		square(4, 4, 2, false),
	}))
	mp := ShapeToMultiPolygon(&poly)
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, 100-36+4, mp.Area(), 1e-9)
}

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("ADMIN", 40)}))

	for i, name := range []string{"Indonesia", "Timor-Leste"} {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(float64(110+10*i), -10, 5, true)}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, name))
	}
	w.Close()

	got, err := LoadBoundaries(path, "admin")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Indonesia", got[0].Name)
	assert.Equal(t, "Timor-Leste", got[1].Name)
	assert.InDelta(t, 25.0, got[1].Geometry.Area(), 1e-9)

	_, err = ReadShapefile(path, "NAME_EN")
	assert.Error(t, err)
}

func TestReadShapefileTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("ADMIN", 40)}))
	for i, name := range []string{"A", "B", "C"} {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{square(float64(10*i), 0, 5, true)}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, name))
	}
	w.Close()

	got, err := ReadShapefile(path, "ADMIN")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// cut into the points of the last record; the header still claims the full length
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-40))

	got, err = ReadShapefile(path, "ADMIN")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestReadGeoJSON(t *testing.T) {
	content := `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"ADMIN": "Indonesia"},
     "geometry": {"type": "Polygon", "coordinates": [[[110,-10],[115,-10],[115,-5],[110,-5],[110,-10]]]}},
    {"type": "Feature", "properties": {"admin": "Timor-Leste"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[124,-10],[127,-10],[127,-8],[124,-8],[124,-10]]]]}},
    {"type": "Feature", "properties": {"ADMIN": "Point"},
     "geometry": {"type": "Point", "coordinates": [0, 0]}}
  ]
}`
	path := writeFile(t, t.TempDir(), "admin.geojson", content)

	got, err := LoadBoundaries(path, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Indonesia", got[0].Name)
	assert.Equal(t, 1, got[0].Geometry.NumPolygons())
	assert.InDelta(t, 25.0, got[0].Geometry.Area(), 1e-9)
	assert.Equal(t, "Timor-Leste", got[1].Name)
	assert.Equal(t, geom.XY, got[1].Geometry.Layout())

	_, err = LoadBoundaries(filepath.Join(t.TempDir(), "admin.kml"), "")
	assert.Error(t, err)
}
