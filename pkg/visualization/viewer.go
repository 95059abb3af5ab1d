// Package visualization renders the raster layers of a reconstruction as
// quick-look images.
package visualization

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"ashfall/internal/models"
)

// Layer names accepted by ExtractLayer.
const (
	LayerThickness = "thickness"
	LayerWeights   = "weights"
	LayerWeighted  = "weighted"
	LayerMask      = "mask"
)

// Layers lists every layer in the order SaveLayerSequence writes them.
var Layers = []string{LayerThickness, LayerWeights, LayerWeighted, LayerMask}

// Viewer holds the grids of one run. Any layer may be nil.
type Viewer struct {
	field    *models.ScalarField
	weights  *models.WeightField
	weighted *models.ScalarField
	mask     *models.BinaryMask
}

// NewViewer creates a viewer over the given layers
func NewViewer(field *models.ScalarField, weights *models.WeightField, weighted *models.ScalarField, mask *models.BinaryMask) *Viewer {
	return &Viewer{field: field, weights: weights, weighted: weighted, mask: mask}
}

// ExtractLayer renders a layer as a 16-bit gray image, row 0 at the top.
// Thickness layers are scaled by log1p against their maximum so thin
// deposits stay visible; undefined nodes are black.
func (v *Viewer) ExtractLayer(name string) (image.Image, error) {
	switch strings.ToLower(name) {
	case LayerThickness:
		if v.field == nil {
			return nil, eris.Errorf("visualization: no %s layer", name)
		}
		return logGray(v.field), nil
	case LayerWeighted:
		if v.weighted == nil {
			return nil, eris.Errorf("visualization: no %s layer", name)
		}
		return logGray(v.weighted), nil
	case LayerWeights:
		if v.weights == nil {
			return nil, eris.Errorf("visualization: no %s layer", name)
		}
		g := v.weights.Grid
		img := image.NewGray16(image.Rect(0, 0, g.NX, g.NY))
		for j := 0; j < g.NY; j++ {
			for i := 0; i < g.NX; i++ {
				img.SetGray16(i, j, gray16(v.weights.At(i, j)))
			}
		}
		return img, nil
	case LayerMask:
		if v.mask == nil {
			return nil, eris.Errorf("visualization: no %s layer", name)
		}
		img := image.NewGray16(image.Rect(0, 0, v.mask.Width, v.mask.Height))
		for row := 0; row < v.mask.Height; row++ {
			for col := 0; col < v.mask.Width; col++ {
				if v.mask.At(col, row) {
					img.SetGray16(col, row, color.White)
				}
			}
		}
		return img, nil
	}
	return nil, eris.Errorf("visualization: unknown layer %q", name)
}

func logGray(f *models.ScalarField) *image.Gray16 {
	g := f.Grid
	img := image.NewGray16(image.Rect(0, 0, g.NX, g.NY))
	_, hi, n := f.FiniteRange()
	if n == 0 || hi <= 0 {
		return img
	}
	scale := math.Log1p(hi)
	for j := 0; j < g.NY; j++ {
		for i := 0; i < g.NX; i++ {
			val := f.At(i, j)
			if math.IsNaN(val) || val <= 0 {
				continue
			}
			img.SetGray16(i, j, gray16(math.Log1p(val)/scale))
		}
	}
	return img
}

func gray16(v float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v*65535)))}
}

// SaveLayer writes img as PNG or JPEG depending on the file extension.
func SaveLayer(img image.Image, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return eris.Wrapf(err, "visualization: create %s", filename)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "visualization: close %s", filename)
		}
	}()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		return eris.Wrapf(err, "visualization: encode %s", filename)
	}
	return nil
}

// SaveLayerSequence writes every available layer as <prefix>_<layer>.png and
// returns the written paths.
func (v *Viewer) SaveLayerSequence(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, eris.Wrap(err, "visualization: create output directory")
	}

	var written []string
	for _, name := range Layers {
		img, err := v.ExtractLayer(name)
		if err != nil {
			continue // layer not set
		}
		filename := filepath.Join(outputDir, prefix+"_"+name+".png")
		if err := SaveLayer(img, filename); err != nil {
			return written, err
		}
		written = append(written, filename)
	}
	return written, nil
}
