package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testObservations = `Longitude,Latitude,Thickness_cm
118,-8.25,100
118,-7.25,50
119,-8.25,50
118,-9.25,50
117,-8.25,10
125,-2,0
`

const testConfig = `grid:
  nx: 49
  ny: 49
  bounds: [112, -14.25, 124, -2.25]
taper:
  sourceLon: 118
  sourceLat: -8.25
  southBoost: 1
  innerRadius: 1
  outerRadius: 5
mask:
  minPixels: 10
log:
  level: error
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ashfall.yaml")

	out, err := execute(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "southBoost: 2")

	_, err = execute(t, "init-config", path)
	assert.Error(t, err, "existing file is kept")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	obs := filepath.Join(dir, "obs.csv")
	require.NoError(t, os.WriteFile(obs, []byte(testObservations), 0644))
	conf := filepath.Join(dir, "ashfall.yaml")
	require.NoError(t, os.WriteFile(conf, []byte(testConfig), 0644))
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "run",
		"--config", conf,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--observations", obs,
		"--output", outDir,
		"--format", "geojson,csv")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold 0.1 cm")
	assert.Contains(t, out, "km²")

	for _, name := range []string{"region_0.1cm.geojson", "classes_0.1cm.csv", "countries_0.1cm.csv"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "ashfall.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("taper:\n  innerRadius: 50\n"), 0644))

	_, err := execute(t, "run", "--config", conf, "--observations", filepath.Join(dir, "obs.csv"))
	assert.Error(t, err)
}
