// Package zonal computes land-use and country statistics for a region.
package zonal

import (
	"sort"

	ctgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"ashfall/internal/models"
	"ashfall/pkg/equalarea"
	"ashfall/pkg/polygonize"
)

// Params configures naming of classes and countries.
type Params struct {
	Classes []Class

	// Aliases renames boundary names before aggregation, e.g.
	// "Timor-Leste" -> "East Timor".
	Aliases map[string]string
}

// DefaultParams returns the MapBiomas legend and no aliases.
func DefaultParams() Params {
	return Params{Classes: DefaultClasses()}
}

// Calculator produces zonal tables for a region.
type Calculator struct {
	table   ClassTable
	aliases map[string]string
	proj    *equalarea.Projection
}

// NewCalculator returns a calculator measuring areas with proj.
func NewCalculator(p Params, proj *equalarea.Projection) *Calculator {
	if proj == nil {
		proj = equalarea.EPSG6933()
	}
	aliases := make(map[string]string, len(p.Aliases))
	for k, v := range p.Aliases {
		aliases[k] = v
	}
	return &Calculator{table: NewClassTable(p.Classes), aliases: aliases, proj: proj}
}

// Table returns the class table.
func (c *Calculator) Table() ClassTable { return c.table }

// Classes breaks the region down by land-use class. Pixels with code 0 are
// nodata and ignored. Records are ordered by pixel count inside the region,
// largest first.
func (c *Calculator) Classes(region *geom.MultiPolygon, r *models.LandUseRaster) ([]models.ZonalRecord, []models.GroupRecord, error) {
	inside, err := Rasterize(region, r)
	if err != nil {
		return nil, nil, err
	}

	var rowArea []float64
	if r.Transform.NorthUp() {
		rowArea = c.proj.RowPixelKM2(r.Transform, r.Height)
	}

	totals := make(map[int]int)
	counts := make(map[int]int)
	areas := make(map[int]float64)
	insideTotal := 0
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			code := int(r.At(col, row))
			if code == 0 {
				continue
			}
			totals[code]++
			if !inside.At(col, row) {
				continue
			}
			counts[code]++
			insideTotal++
			if rowArea != nil {
				areas[code] += rowArea[row]
			} else {
				areas[code] += c.proj.PixelKM2(r.Transform, col, row)
			}
		}
	}

	records := make([]models.ZonalRecord, 0, len(counts))
	for code, n := range counts {
		records = append(records, models.ZonalRecord{
			ClassCode:      code,
			ClassName:      c.table.Name(code),
			PixelsInRegion: n,
			PixelsTotal:    totals[code],
			ShareOfRegion:  100 * float64(n) / float64(insideTotal),
			ShareOfClass:   100 * float64(n) / float64(totals[code]),
			AreaKM2:        areas[code],
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].PixelsInRegion != records[j].PixelsInRegion {
			return records[i].PixelsInRegion > records[j].PixelsInRegion
		}
		return records[i].ClassCode < records[j].ClassCode
	})

	groups := c.groups(counts, totals, areas, insideTotal)

	zap.L().Debug("class statistics",
		zap.Int("pixels_inside", insideTotal),
		zap.Int("classes", len(records)))
	return records, groups, nil
}

func (c *Calculator) groups(counts, totals map[int]int, areas map[int]float64, insideTotal int) []models.GroupRecord {
	names, members := c.table.Groups()
	out := make([]models.GroupRecord, 0, len(names))
	for _, name := range names {
		g := models.GroupRecord{Group: name, Codes: members[name]}
		for _, code := range g.Codes {
			g.PixelsInRegion += counts[code]
			g.PixelsTotal += totals[code]
			g.AreaKM2 += areas[code]
		}
		if insideTotal > 0 {
			g.ShareOfRegion = 100 * float64(g.PixelsInRegion) / float64(insideTotal)
		}
		out = append(out, g)
	}
	return out
}

// Countries intersects the region with every boundary and sums the
// equal-area overlap per (aliased) country name. PercentOfCountry is nil when
// the country's own area is zero. Records are ordered by overlap, largest
// first; countries without overlap are omitted.
func (c *Calculator) Countries(region *geom.MultiPolygon, boundaries []models.AdminBoundary) ([]models.CountryRecord, error) {
	if region == nil || region.Empty() {
		return nil, eris.Wrap(models.ErrInvalidGeometry, "zonal: empty region")
	}
	regionCT := polygonize.MultiToPolygonal(region)
	box := polygonize.Bounds(region)

	overlap := make(map[string]float64)
	total := make(map[string]float64)
	var order []string

	for _, b := range boundaries {
		if b.Geometry == nil || b.Geometry.Empty() {
			continue
		}
		name := b.Name
		if alias, ok := c.aliases[name]; ok {
			name = alias
		}
		if _, seen := total[name]; !seen {
			order = append(order, name)
		}
		total[name] += c.proj.MultiPolygonKM2(b.Geometry)

		if !box.Intersects(polygonize.Bounds(b.Geometry)) {
			continue
		}
		// Polygon.Intersection always yields a Polygon; an empty one has no rings
		isect, _ := regionCT.Intersection(polygonize.MultiToPolygonal(b.Geometry)).(ctgeom.Polygon)
		if len(isect) == 0 {
			continue
		}
		a, err := c.proj.PolygonalKM2(isect)
		if err != nil {
			return nil, eris.Wrapf(err, "zonal: overlap with %s", b.Name)
		}
		overlap[name] += a
	}

	var records []models.CountryRecord
	for _, name := range order {
		a := overlap[name]
		if a <= 0 {
			continue
		}
		rec := models.CountryRecord{Country: name, AreaKM2: a}
		if t := total[name]; t > 0 {
			pct := 100 * a / t
			rec.PercentOfCountry = &pct
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].AreaKM2 > records[j].AreaKM2 })

	zap.L().Debug("country statistics",
		zap.Int("boundaries", len(boundaries)),
		zap.Int("countries", len(records)))
	return records, nil
}
