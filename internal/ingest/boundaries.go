package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"ashfall/internal/models"
)

// DefaultNameField is the attribute holding the country name in Natural
// Earth admin-0 layers.
const DefaultNameField = "ADMIN"

// LoadBoundaries reads administrative polygons from a shapefile (.shp) or a
// GeoJSON FeatureCollection (.geojson, .json), taking names from nameField.
func LoadBoundaries(path, nameField string) ([]models.AdminBoundary, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}
	var (
		out []models.AdminBoundary
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		out, err = ReadShapefile(path, nameField)
	case ".geojson", ".json":
		out, err = ReadGeoJSON(path, nameField)
	default:
		return nil, eris.Errorf("ingest: unsupported boundary format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("boundaries loaded", zap.String("path", path), zap.Int("count", len(out)))
	return out, nil
}

// ReadShapefile reads polygon records and their name attribute.
func ReadShapefile(path, nameField string) ([]models.AdminBoundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("ingest: shapefile %s has no field %q", path, nameField)
	}

	var (
		out     []models.AdminBoundary
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}
		mp := ShapeToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		out = append(out, models.AdminBoundary{Name: name, Geometry: mp})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "ingest: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

// ShapeToMultiPolygon converts a shapefile polygon into a MultiPolygon.
// Rings are nested by containment rather than winding, so files written with
// either orientation convention load the same way. Exterior rings come out
// counter-clockwise and holes clockwise.
func ShapeToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var rings [][]float64
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("ingest: skipping malformed ring", zap.Int32("part", i))
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		rings = append(rings, flat)
	}
	return nestRings(rings)
}

// nestRings groups closed rings into polygons. A ring inside an even number of
// other rings is an exterior; a hole belongs to the smallest exterior holding it.
func nestRings(rings [][]float64) *geom.MultiPolygon {
	depth := make([]int, len(rings))
	for i, r := range rings {
		pt := geom.Coord{r[0], r[1]}
		for j, o := range rings {
			if i != j && xy.IsPointInRing(geom.XY, pt, o) {
				depth[i]++
			}
		}
	}

	type poly struct {
		area  float64
		rings [][]float64
	}
	var polys []*poly
	owner := make(map[int]*poly)
	for i, r := range rings {
		if depth[i]%2 == 0 {
			p := &poly{area: math.Abs(ringArea(r)), rings: [][]float64{orientRing(r, true)}}
			polys = append(polys, p)
			owner[i] = p
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		var best *poly
		pt := geom.Coord{r[0], r[1]}
		for j, o := range rings {
			p, ok := owner[j]
			if !ok || !xy.IsPointInRing(geom.XY, pt, o) {
				continue
			}
			if best == nil || p.area < best.area {
				best = p
			}
		}
		if best != nil {
			best.rings = append(best.rings, orientRing(r, false))
		}
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, p := range polys {
		var flat []float64
		var ends []int
		for _, r := range p.rings {
			flat = append(flat, r...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("ingest: skipping malformed polygon", zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// ReadGeoJSON reads Polygon and MultiPolygon features and their name property.
func ReadGeoJSON(path, nameField string) ([]models.AdminBoundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "ingest: decode feature collection %s", path)
	}

	var (
		out     []models.AdminBoundary
		skipped int
	)
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		var mp *geom.MultiPolygon
		switch g := f.Geometry.(type) {
		case *geom.MultiPolygon:
			mp = g
		case *geom.Polygon:
			mp = geom.NewMultiPolygon(g.Layout())
			if err := mp.Push(g); err != nil {
				skipped++
				continue
			}
		default:
			skipped++
			continue
		}
		if mp.Layout() != geom.XY {
			mp = flatten(mp)
		}
		mp.SetSRID(4326)
		out = append(out, models.AdminBoundary{Name: propertyString(f.Properties, nameField), Geometry: mp})
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped non-polygon features", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return out, nil
}

func propertyString(props map[string]interface{}, key string) string {
	for k, v := range props {
		if !strings.EqualFold(k, key) || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return fmt.Sprint(v)
	}
	return ""
}

// flatten drops Z and M ordinates.
func flatten(mp *geom.MultiPolygon) *geom.MultiPolygon {
	stride := mp.Stride()
	src := mp.FlatCoords()
	flat := make([]float64, 0, len(src)/stride*2)
	for i := 0; i < len(src); i += stride {
		flat = append(flat, src[i], src[i+1])
	}
	endss := make([][]int, 0, len(mp.Endss()))
	for _, ends := range mp.Endss() {
		scaled := make([]int, len(ends))
		for k, e := range ends {
			scaled[k] = e / stride * 2
		}
		endss = append(endss, scaled)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

func ringArea(flat []float64) float64 {
	a := 0.0
	for i := 0; i+3 < len(flat); i += 2 {
		a += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return a / 2
}

// orientRing returns a copy wound counter-clockwise when ccw is set,
// clockwise otherwise.
func orientRing(flat []float64, ccw bool) []float64 {
	out := append([]float64(nil), flat...)
	if (ringArea(out) > 0) == ccw {
		return out
	}
	for i, j := 0, len(out)-2; i < j; i, j = i+2, j-2 {
		out[i], out[j] = out[j], out[i]
		out[i+1], out[j+1] = out[j+1], out[i+1]
	}
	return out
}
