package ingest

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ashfall/internal/models"
)

// maxASCIICells bounds the size a grid header may declare.
const maxASCIICells = 1 << 28

// ReadASCIIGrid parses an ESRI ASCII grid of land-use class codes. NODATA
// cells become class 0. crs is attached to the raster unchanged.
func ReadASCIIGrid(r io.Reader, crs string) (*models.LandUseRaster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64, 6)
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: header key %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: header %s=%q", key, sc.Text())
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: read ascii grid")
	}

	ncols, nrows := header["ncols"], header["nrows"]
	if !(ncols >= 1 && nrows >= 1 && ncols*nrows <= maxASCIICells) {
		return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: ascii grid size %gx%g", ncols, nrows)
	}
	width, height := int(ncols), int(nrows)
	dx, dy := header["cellsize"], header["cellsize"]
	if v, ok := header["dx"]; ok {
		dx = v
	}
	if v, ok := header["dy"]; ok {
		dy = v
	}
	if dx <= 0 || dy <= 0 {
		return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: ascii grid cell size %gx%g", dx, dy)
	}

	var x0, y0 float64
	switch {
	case has(header, "xllcorner", "yllcorner"):
		x0, y0 = header["xllcorner"], header["yllcorner"]
	case has(header, "xllcenter", "yllcenter"):
		x0, y0 = header["xllcenter"]-dx/2, header["yllcenter"]-dy/2
	default:
		return nil, eris.Wrap(models.ErrInvalidRaster, "ingest: ascii grid has no lower-left origin")
	}
	nodata, hasNodata := header["nodata_value"]

	raster := &models.LandUseRaster{
		Width:   width,
		Height:  height,
		Classes: make([]uint8, 0, min(width*height, 1<<20)),
		Transform: models.Affine{
			A: dx, C: x0,
			E: -dy, F: y0 + float64(height)*dy,
		},
		CRS: crs,
	}

	push := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(models.ErrInvalidRaster, "ingest: cell value %q", tok)
		}
		if hasNodata && v == nodata {
			v = 0
		}
		if v < 0 || v > math.MaxUint8 || v != math.Trunc(v) {
			return eris.Wrapf(models.ErrInvalidRaster, "ingest: class code %g outside 0..255", v)
		}
		raster.Classes = append(raster.Classes, uint8(v))
		return nil
	}

	if first != "" {
		if err := push(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if len(raster.Classes) == width*height {
			return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: ascii grid has more than %d cells", width*height)
		}
		if err := push(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "ingest: read ascii grid")
	}
	if err := raster.Validate(); err != nil {
		return nil, err
	}
	return raster, nil
}

// LoadLandUse reads an ESRI ASCII grid and its sidecar .prj. A raster without
// a .prj has no known reference and is rejected.
func LoadLandUse(path string) (*models.LandUseRaster, error) {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	wkt, err := os.ReadFile(prj)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(models.ErrInvalidRaster, "ingest: %s has no sidecar %s", path, prj)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", prj)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer func() { _ = f.Close() }()

	raster, err := ReadASCIIGrid(bufio.NewReader(f), strings.TrimSpace(string(wkt)))
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: %s", path)
	}
	zap.L().Info("land-use raster loaded",
		zap.String("path", path),
		zap.Int("width", raster.Width),
		zap.Int("height", raster.Height))
	return raster, nil
}

func has(m map[string]float64, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}
