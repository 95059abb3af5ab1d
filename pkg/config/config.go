// Package config provides configuration loading and management for ashfall.
// It merges defaults, an optional YAML file and ASHFALL_* environment
// variables, and converts the result into reconstruction parameters.
package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ashfall/internal/models"
	"ashfall/pkg/interpolation"
	"ashfall/pkg/morphology"
	"ashfall/pkg/reconstruction"
	"ashfall/pkg/taper"
	"ashfall/pkg/zonal"
)

// EnvPrefix prefixes every environment override, e.g. ASHFALL_TAPER_SOUTHBOOST.
const EnvPrefix = "ASHFALL"

// ClassConfig is one row of the land-use legend.
type ClassConfig struct {
	Code  int    `yaml:"code" mapstructure:"code"`
	Name  string `yaml:"name" mapstructure:"name"`
	Group string `yaml:"group,omitempty" mapstructure:"group"`
}

// AliasConfig renames a boundary name before aggregation.
type AliasConfig struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Alias string `yaml:"alias" mapstructure:"alias"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Interpolation lattice
	Grid struct {
		NX int `yaml:"nx" mapstructure:"nx"`
		NY int `yaml:"ny" mapstructure:"ny"`

		// PadFraction widens the observation extent on every side
		PadFraction float64 `yaml:"padFraction" mapstructure:"padfraction"`

		// Bounds is [minLon, minLat, maxLon, maxLat]; empty derives the extent from the data
		Bounds []float64 `yaml:"bounds,omitempty" mapstructure:"bounds"`
	} `yaml:"grid" mapstructure:"grid"`

	// RBF surface parameters
	Interpolation struct {
		Kernel  string  `yaml:"kernel" mapstructure:"kernel"`
		Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`
		Smooth  float64 `yaml:"smooth" mapstructure:"smooth"`

		// LogOffset is added before taking the logarithm; 0 fits raw thickness
		LogOffset float64 `yaml:"logOffset" mapstructure:"logoffset"`

		MinObservations int     `yaml:"minObservations" mapstructure:"minobservations"`
		ClipFactor      float64 `yaml:"clipFactor" mapstructure:"clipfactor"`
		MaxDistance     float64 `yaml:"maxDistance" mapstructure:"maxdistance"`
	} `yaml:"interpolation" mapstructure:"interpolation"`

	// Directional taper around the source
	Taper struct {
		SourceLon   float64 `yaml:"sourceLon" mapstructure:"sourcelon"`
		SourceLat   float64 `yaml:"sourceLat" mapstructure:"sourcelat"`
		SouthBoost  float64 `yaml:"southBoost" mapstructure:"southboost"`
		InnerRadius float64 `yaml:"innerRadius" mapstructure:"innerradius"`
		OuterRadius float64 `yaml:"outerRadius" mapstructure:"outerradius"`
	} `yaml:"taper" mapstructure:"taper"`

	// Mask extraction
	Mask struct {
		Threshold         float64 `yaml:"threshold" mapstructure:"threshold"`
		ClosingIterations int     `yaml:"closingIterations" mapstructure:"closingiterations"`
		OpeningIterations int     `yaml:"openingIterations" mapstructure:"openingiterations"`
		MinPixels         int     `yaml:"minPixels" mapstructure:"minpixels"`
	} `yaml:"mask" mapstructure:"mask"`

	// Zonal statistics
	Zonal struct {
		StandardParallel float64       `yaml:"standardParallel" mapstructure:"standardparallel"`
		NameField        string        `yaml:"nameField" mapstructure:"namefield"`
		Classes          []ClassConfig `yaml:"classes" mapstructure:"classes"`
		CountryAliases   []AliasConfig `yaml:"countryAliases" mapstructure:"countryaliases"`
	} `yaml:"zonal" mapstructure:"zonal"`

	// Threshold sweep
	Sweep struct {
		Thresholds []float64 `yaml:"thresholds" mapstructure:"thresholds"`
		Workers    int       `yaml:"workers" mapstructure:"workers"`
	} `yaml:"sweep" mapstructure:"sweep"`

	// Output parameters
	Output struct {
		Dir     string   `yaml:"dir" mapstructure:"dir"`
		Formats []string `yaml:"formats" mapstructure:"formats"`
	} `yaml:"output" mapstructure:"output"`

	Log struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	ip := interpolation.DefaultParams()
	tp := taper.DefaultParams()
	mp := morphology.DefaultParams()

	cfg.Grid.NX = 300
	cfg.Grid.NY = 300
	cfg.Grid.PadFraction = 0.9

	cfg.Interpolation.Kernel = string(ip.Kernel)
	cfg.Interpolation.Smooth = ip.Smooth
	cfg.Interpolation.LogOffset = 0.01
	cfg.Interpolation.MinObservations = ip.MinObservations
	cfg.Interpolation.ClipFactor = ip.ClipFactor

	cfg.Taper.SourceLon = tp.SourceLon
	cfg.Taper.SourceLat = tp.SourceLat
	cfg.Taper.SouthBoost = tp.SouthBoost
	cfg.Taper.InnerRadius = tp.InnerRadius
	cfg.Taper.OuterRadius = tp.OuterRadius

	cfg.Mask.Threshold = 0.1
	cfg.Mask.ClosingIterations = mp.ClosingIterations
	cfg.Mask.OpeningIterations = mp.OpeningIterations
	cfg.Mask.MinPixels = mp.MinPixels

	cfg.Zonal.StandardParallel = 30
	cfg.Zonal.NameField = "ADMIN"
	for _, c := range zonal.DefaultClasses() {
		cfg.Zonal.Classes = append(cfg.Zonal.Classes, ClassConfig{Code: c.Code, Name: c.Name, Group: c.Group})
	}
	cfg.Zonal.CountryAliases = []AliasConfig{{Name: "Timor-Leste", Alias: "East Timor"}}

	cfg.Sweep.Thresholds = []float64{0.1, 1, 10, 100}
	cfg.Sweep.Workers = 1

	cfg.Output.Dir = "output"
	cfg.Output.Formats = []string{"geojson", "ewkb", "csv", "xlsx"}

	cfg.Log.Level = "info"
	cfg.Log.Format = "console"

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults and
// applies ASHFALL_* environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal defaults")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, eris.Wrap(err, "config: read defaults")
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, eris.Wrapf(err, "config: read %s", configPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "config: stat %s", configPath)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrap(err, "config: create directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return eris.Wrap(err, "config: write file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks value ranges that the stages would otherwise reject late.
func (c *Config) Validate() error {
	if c.Grid.NX < 2 || c.Grid.NY < 2 {
		return eris.Errorf("config: grid must be at least 2x2, got %dx%d", c.Grid.NX, c.Grid.NY)
	}
	if c.Grid.PadFraction < 0 {
		return eris.Errorf("config: grid.padFraction must not be negative, got %g", c.Grid.PadFraction)
	}
	if n := len(c.Grid.Bounds); n != 0 && n != 4 {
		return eris.Errorf("config: grid.bounds needs 4 values, got %d", n)
	}
	if len(c.Grid.Bounds) == 4 {
		b := c.Grid.Bounds
		if !(b[0] < b[2]) || !(b[1] < b[3]) {
			return eris.Errorf("config: grid.bounds %v is empty", b)
		}
	}
	if _, err := interpolation.ParseKernel(c.Interpolation.Kernel); err != nil {
		return eris.Wrap(err, "config")
	}
	if c.Interpolation.LogOffset < 0 {
		return eris.Errorf("config: interpolation.logOffset must not be negative, got %g", c.Interpolation.LogOffset)
	}
	if c.Interpolation.Smooth < 0 || c.Interpolation.Epsilon < 0 || c.Interpolation.ClipFactor < 0 || c.Interpolation.MaxDistance < 0 {
		return eris.New("config: interpolation parameters must not be negative")
	}
	if _, err := taper.New(c.taperParams()); err != nil {
		return eris.Wrap(err, "config")
	}
	if math.IsNaN(c.Mask.Threshold) || c.Mask.Threshold < 0 {
		return eris.Errorf("config: mask.threshold must not be negative, got %g", c.Mask.Threshold)
	}
	if _, err := morphology.NewExtractor(c.maskParams()); err != nil {
		return eris.Wrap(err, "config")
	}
	if lat := c.Zonal.StandardParallel; lat <= -90 || lat >= 90 {
		return eris.Errorf("config: zonal.standardParallel %g out of range", lat)
	}
	for _, t := range c.Sweep.Thresholds {
		if math.IsNaN(t) || t < 0 {
			return eris.Errorf("config: sweep threshold %g must not be negative", t)
		}
	}
	if c.Sweep.Workers < 1 {
		return eris.Errorf("config: sweep.workers must be at least 1, got %d", c.Sweep.Workers)
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(f) {
		case "geojson", "ewkb", "csv", "xlsx", "preview":
		default:
			return eris.Errorf("config: unknown output format %q", f)
		}
	}
	return nil
}

func (c *Config) taperParams() taper.Params {
	return taper.Params{
		SourceLon:   c.Taper.SourceLon,
		SourceLat:   c.Taper.SourceLat,
		SouthBoost:  c.Taper.SouthBoost,
		InnerRadius: c.Taper.InnerRadius,
		OuterRadius: c.Taper.OuterRadius,
	}
}

func (c *Config) maskParams() morphology.Params {
	return morphology.Params{
		ClosingIterations: c.Mask.ClosingIterations,
		OpeningIterations: c.Mask.OpeningIterations,
		MinPixels:         c.Mask.MinPixels,
	}
}

// ReconstructionParams converts the configuration into pipeline parameters.
func (c *Config) ReconstructionParams() (*reconstruction.Params, error) {
	kernel, err := interpolation.ParseKernel(c.Interpolation.Kernel)
	if err != nil {
		return nil, eris.Wrap(err, "config")
	}

	var transform interpolation.ValueTransform = interpolation.IdentityTransform{}
	if c.Interpolation.LogOffset > 0 {
		transform = interpolation.LogTransform{Offset: c.Interpolation.LogOffset}
	}

	p := &reconstruction.Params{
		Grid: reconstruction.GridParams{
			NX:          c.Grid.NX,
			NY:          c.Grid.NY,
			PadFraction: c.Grid.PadFraction,
		},
		Interpolation: interpolation.Params{
			Kernel:          kernel,
			Epsilon:         c.Interpolation.Epsilon,
			Smooth:          c.Interpolation.Smooth,
			Transform:       transform,
			MinObservations: c.Interpolation.MinObservations,
			ClipFactor:      c.Interpolation.ClipFactor,
			MaxDistance:     c.Interpolation.MaxDistance,
		},
		Taper:            c.taperParams(),
		Mask:             c.maskParams(),
		Threshold:        c.Mask.Threshold,
		Zonal:            c.ZonalParams(),
		StandardParallel: c.Zonal.StandardParallel,
		Workers:          c.Sweep.Workers,
	}
	if b := c.Grid.Bounds; len(b) == 4 {
		p.Grid.Bounds = &models.Bounds{MinX: b[0], MinY: b[1], MaxX: b[2], MaxY: b[3]}
	}
	return p, nil
}

// ZonalParams returns the class legend and country aliases.
func (c *Config) ZonalParams() zonal.Params {
	p := zonal.Params{Aliases: make(map[string]string, len(c.Zonal.CountryAliases))}
	for _, cl := range c.Zonal.Classes {
		p.Classes = append(p.Classes, zonal.Class{Code: cl.Code, Name: cl.Name, Group: cl.Group})
	}
	for _, a := range c.Zonal.CountryAliases {
		p.Aliases[a.Name] = a.Alias
	}
	return p
}

// InitLogger replaces the global zap logger according to the log section.
// "console" selects the development encoder, anything else JSON.
func (c *Config) InitLogger() error {
	var zapCfg zap.Config
	if c.Log.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
