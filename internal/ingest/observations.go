// Package ingest reads observations, land-use rasters and administrative
// boundaries from the file formats the field teams deliver.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ashfall/internal/models"
)

// Column names accepted for each observation field, compared case-insensitively.
var (
	lonColumns       = []string{"longitude", "lon", "x"}
	latColumns       = []string{"latitude", "lat", "y"}
	thicknessColumns = []string{"thickness_cm", "thickness"}
)

// ReadObservations parses a CSV with a header row naming the longitude,
// latitude and thickness columns. Blank thickness cells are skipped; any other
// unparsable value is an error.
func ReadObservations(r io.Reader) ([]models.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: observation csv is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	lonCol, ok := findColumn(idx, lonColumns)
	if !ok {
		return nil, eris.Errorf("ingest: observation csv has no longitude column (header %v)", header)
	}
	latCol, ok := findColumn(idx, latColumns)
	if !ok {
		return nil, eris.Errorf("ingest: observation csv has no latitude column (header %v)", header)
	}
	thCol, ok := findColumn(idx, thicknessColumns)
	if !ok {
		return nil, eris.Errorf("ingest: observation csv has no thickness column (header %v)", header)
	}

	var (
		obs     []models.Observation
		skipped int
		line    = 1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read csv line %d", line)
		}
		if isBlank(record) {
			continue
		}

		th := field(record, thCol)
		if th == "" {
			skipped++
			continue
		}
		var o models.Observation
		if o.Lon, err = parseFloat(field(record, lonCol)); err != nil {
			return nil, eris.Wrapf(err, "ingest: line %d longitude", line)
		}
		if o.Lat, err = parseFloat(field(record, latCol)); err != nil {
			return nil, eris.Wrapf(err, "ingest: line %d latitude", line)
		}
		if o.ThicknessCM, err = parseFloat(th); err != nil {
			return nil, eris.Wrapf(err, "ingest: line %d thickness", line)
		}
		obs = append(obs, o)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped observations without thickness", zap.Int("skipped", skipped))
	}
	return obs, nil
}

// LoadObservations reads the observation CSV at path.
func LoadObservations(path string) ([]models.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer func() { _ = f.Close() }()

	obs, err := ReadObservations(f)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", path)
	}
	zap.L().Info("observations loaded", zap.String("path", path), zap.Int("count", len(obs)))
	return obs, nil
}

func findColumn(idx map[string]int, names []string) (int, bool) {
	for _, n := range names {
		if i, ok := idx[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %q", s)
	}
	return v, nil
}
