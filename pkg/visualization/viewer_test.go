package visualization

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashfall/internal/models"
)

func testLayers(t *testing.T) (*models.ScalarField, *models.WeightField, *models.BinaryMask) {
	t.Helper()
	g, err := models.NewGrid(models.Bounds{MinX: 0, MinY: 0, MaxX: 3, MaxY: 2}, 4, 3)
	require.NoError(t, err)

	f := models.NewScalarField(g)
	for k := range f.Values {
		f.Values[k] = float64(k)
	}
	f.Values[5] = math.NaN()

	w := &models.WeightField{Grid: g, Values: make([]float64, g.Len())}
	w.Values[0] = 1
	w.Values[1] = 0.5

	m := models.NewBinaryMask(4, 3)
	m.Set(2, 1, true)
	return f, w, m
}

func TestExtractLayer(t *testing.T) {
	f, w, m := testLayers(t)
	v := NewViewer(f, w, f, m)

	img, err := v.ExtractLayer(LayerThickness)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	gray := img.(*image.Gray16)
	assert.Equal(t, uint16(0), gray.Gray16At(0, 0).Y, "zero thickness is black")
	assert.Equal(t, uint16(65535), gray.Gray16At(3, 2).Y, "maximum is white")
	assert.Equal(t, uint16(0), gray.Gray16At(1, 1).Y, "NaN is black")
	assert.Greater(t, gray.Gray16At(1, 0).Y, uint16(0))

	img, err = v.ExtractLayer(LayerWeights)
	require.NoError(t, err)
	gray = img.(*image.Gray16)
	assert.Equal(t, uint16(65535), gray.Gray16At(0, 0).Y)
	assert.InDelta(t, 32767, int(gray.Gray16At(1, 0).Y), 1)

	img, err = v.ExtractLayer("MASK")
	require.NoError(t, err)
	assert.Equal(t, color.Gray16{Y: 0xffff}, img.At(2, 1))
	assert.Equal(t, color.Gray16{}, img.At(1, 2))

	_, err = v.ExtractLayer("slope")
	assert.Error(t, err)

	_, err = NewViewer(nil, nil, nil, m).ExtractLayer(LayerWeighted)
	assert.Error(t, err)
}

func TestSaveLayer(t *testing.T) {
	f, w, m := testLayers(t)
	img, err := NewViewer(f, w, f, m).ExtractLayer(LayerThickness)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"layer.png", "layer.jpg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveLayer(img, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	assert.Error(t, SaveLayer(img, filepath.Join(dir, "missing", "layer.png")))
}

func TestSaveLayerReportsWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full on this system")
	}
	f, w, m := testLayers(t)
	img, err := NewViewer(f, w, f, m).ExtractLayer(LayerMask)
	require.NoError(t, err)

	assert.Error(t, SaveLayer(img, "/dev/full"))
}

func TestSaveLayerSequence(t *testing.T) {
	f, _, m := testLayers(t)
	dir := filepath.Join(t.TempDir(), "quicklook")

	written, err := NewViewer(f, nil, nil, m).SaveLayerSequence(dir, "run")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "run_thickness.png"),
		filepath.Join(dir, "run_mask.png"),
	}, written)

	file, err := os.Open(written[1])
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	r, _, _, _ := img.At(2, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
