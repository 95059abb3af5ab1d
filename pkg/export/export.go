// Package export writes reconstruction results to disk: the region as GeoJSON
// and EWKB, the statistics as CSV and XLSX, and quick-look images.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"ashfall/internal/models"
	"ashfall/pkg/reconstruction"
	"ashfall/pkg/visualization"
)

// Output formats.
const (
	FormatGeoJSON = "geojson"
	FormatEWKB    = "ewkb"
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatPreview = "preview"
)

// Writer writes one file set per result into Dir.
type Writer struct {
	dir     string
	formats map[string]bool
}

// NewWriter returns a writer for the given formats. An empty list selects
// GeoJSON, EWKB, CSV and XLSX.
func NewWriter(dir string, formats []string) (*Writer, error) {
	if dir == "" {
		return nil, eris.New("export: output directory is empty")
	}
	if len(formats) == 0 {
		formats = []string{FormatGeoJSON, FormatEWKB, FormatCSV, FormatXLSX}
	}
	w := &Writer{dir: dir, formats: make(map[string]bool, len(formats))}
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatGeoJSON, FormatEWKB, FormatCSV, FormatXLSX, FormatPreview:
			w.formats[f] = true
		default:
			return nil, eris.Errorf("export: unknown format %q", f)
		}
	}
	return w, nil
}

// ThresholdLabel names a threshold in file names, e.g. 0.1 -> "0.1cm".
func ThresholdLabel(threshold float64) string {
	return strconv.FormatFloat(threshold, 'f', -1, 64) + "cm"
}

// Write stores one result and returns the paths written. A result without
// region still gets its (empty) statistics tables.
func (w *Writer) Write(res *reconstruction.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, eris.Wrap(err, "export: create output directory")
	}
	label := ThresholdLabel(res.Threshold)
	path := func(name, ext string) string {
		return filepath.Join(w.dir, name+"_"+label+"."+ext)
	}

	var written []string
	add := func(p string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, p)
		return nil
	}

	if res.Region != nil {
		if w.formats[FormatGeoJSON] {
			p := path("region", "geojson")
			if err := add(p, WriteRegionGeoJSON(p, res)); err != nil {
				return written, err
			}
		}
		if w.formats[FormatEWKB] {
			p := path("region", "ewkb")
			if err := add(p, WriteRegionEWKB(p, res)); err != nil {
				return written, err
			}
		}
	}
	if w.formats[FormatCSV] {
		tables := []struct {
			name string
			rows [][]string
		}{
			{"classes", classRows(res.Classes)},
			{"groups", groupRows(res.Groups)},
			{"countries", countryRows(res.Countries)},
		}
		for _, tbl := range tables {
			p := path(tbl.name, "csv")
			if err := add(p, WriteCSV(p, tbl.rows)); err != nil {
				return written, err
			}
		}
	}
	if w.formats[FormatXLSX] {
		p := path("statistics", "xlsx")
		if err := add(p, WriteXLSX(p, res)); err != nil {
			return written, err
		}
	}
	if w.formats[FormatPreview] {
		v := visualization.NewViewer(res.Field, res.Weights, res.Weighted, res.Mask)
		files, err := v.SaveLayerSequence(w.dir, "preview_"+label)
		written = append(written, files...)
		if err != nil {
			return written, err
		}
	}

	zap.L().Info("results written",
		zap.String("run_id", res.RunID),
		zap.Float64("threshold", res.Threshold),
		zap.Int("files", len(written)))
	return written, nil
}

// WriteSweep writes every result plus a summary table across thresholds.
func (w *Writer) WriteSweep(results []*reconstruction.Result) ([]string, error) {
	var written []string
	for _, res := range results {
		files, err := w.Write(res)
		written = append(written, files...)
		if err != nil {
			return written, err
		}
	}
	if len(results) == 0 || !w.formats[FormatCSV] {
		return written, nil
	}
	p := filepath.Join(w.dir, "sweep_summary.csv")
	if err := WriteCSV(p, summaryRows(results)); err != nil {
		return written, err
	}
	return append(written, p), nil
}

// RegionFeatureCollection wraps the region in a one-feature collection
// carrying the threshold and equal-area size.
func RegionFeatureCollection(res *reconstruction.Result) *geojson.FeatureCollection {
	return &geojson.FeatureCollection{
		Features: []*geojson.Feature{{
			ID:       res.RunID,
			Geometry: res.Region,
			Properties: map[string]interface{}{
				"run_id":       res.RunID,
				"threshold_cm": res.Threshold,
				"area_km2":     res.RegionAreaKM2,
				"polygons":     res.Region.NumPolygons(),
			},
		}},
	}
}

// WriteRegionGeoJSON writes the region as a GeoJSON FeatureCollection.
func WriteRegionGeoJSON(path string, res *reconstruction.Result) error {
	if res.Region == nil {
		return eris.Wrap(models.ErrInvalidGeometry, "export: result has no region")
	}
	data, err := json.Marshal(RegionFeatureCollection(res))
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// WriteRegionEWKB writes the region as little-endian EWKB with SRID 4326.
func WriteRegionEWKB(path string, res *reconstruction.Result) error {
	if res.Region == nil {
		return eris.Wrap(models.ErrInvalidGeometry, "export: result has no region")
	}
	data, err := ewkb.Marshal(res.Region, ewkb.NDR)
	if err != nil {
		return eris.Wrap(err, "export: encode ewkb")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// WriteCSV writes rows, header first.
func WriteCSV(path string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "export: close %s", path)
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// WriteXLSX writes the class, group and country tables as sheets of one workbook.
func WriteXLSX(path string, res *reconstruction.Result) error {
	f := xlsx.NewFile()
	sheets := []struct {
		name string
		rows [][]string
	}{
		{"Classes", classRows(res.Classes)},
		{"Groups", groupRows(res.Groups)},
		{"Countries", countryRows(res.Countries)},
	}
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", s.name)
		}
		for i, values := range s.rows {
			row := sheet.AddRow()
			for _, v := range values {
				cell := row.AddCell()
				if n, err := strconv.ParseFloat(v, 64); err == nil && i > 0 {
					cell.SetFloat(n)
				} else {
					cell.SetString(v)
				}
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func classRows(records []models.ZonalRecord) [][]string {
	rows := [][]string{{"class_code", "class_name", "pixel_count_in_region", "pixel_count_total", "share_of_region", "share_of_class", "area_km2"}}
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.ClassCode),
			r.ClassName,
			strconv.Itoa(r.PixelsInRegion),
			strconv.Itoa(r.PixelsTotal),
			formatFloat(r.ShareOfRegion),
			formatFloat(r.ShareOfClass),
			formatFloat(r.AreaKM2),
		})
	}
	return rows
}

func groupRows(records []models.GroupRecord) [][]string {
	rows := [][]string{{"group", "class_codes", "pixel_count_in_region", "pixel_count_total", "share_of_region", "area_km2"}}
	for _, r := range records {
		codes := make([]string, len(r.Codes))
		for i, c := range r.Codes {
			codes[i] = strconv.Itoa(c)
		}
		rows = append(rows, []string{
			r.Group,
			strings.Join(codes, " "),
			strconv.Itoa(r.PixelsInRegion),
			strconv.Itoa(r.PixelsTotal),
			formatFloat(r.ShareOfRegion),
			formatFloat(r.AreaKM2),
		})
	}
	return rows
}

func countryRows(records []models.CountryRecord) [][]string {
	rows := [][]string{{"country_name", "intersection_area_km2", "percent_of_country"}}
	for _, r := range records {
		pct := ""
		if r.PercentOfCountry != nil {
			pct = formatFloat(*r.PercentOfCountry)
		}
		rows = append(rows, []string{r.Country, formatFloat(r.AreaKM2), pct})
	}
	return rows
}

func summaryRows(results []*reconstruction.Result) [][]string {
	rows := [][]string{{"threshold_cm", "area_km2", "polygons", "mask_pixels", "countries"}}
	for _, res := range results {
		polygons := 0
		if res.Region != nil {
			polygons = res.Region.NumPolygons()
		}
		pixels := 0
		if res.Mask != nil {
			pixels = res.Mask.Count()
		}
		names := make([]string, len(res.Countries))
		for i, c := range res.Countries {
			names[i] = c.Country
		}
		rows = append(rows, []string{
			formatFloat(res.Threshold),
			formatFloat(res.RegionAreaKM2),
			strconv.Itoa(polygons),
			strconv.Itoa(pixels),
			strings.Join(names, "; "),
		})
	}
	return rows
}
