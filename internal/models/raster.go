package models

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// LandUseRaster is a single-band class grid. Code 0 is nodata.
type LandUseRaster struct {
	Width     int
	Height    int
	Classes   []uint8
	Transform Affine

	// CRS is the coordinate reference definition the raster is expressed in
	// (WKT, proj string, or authority code). It must match the working
	// geographic reference of the region geometry.
	CRS string
}

// At returns the class code of pixel (col, row).
func (r *LandUseRaster) At(col, row int) uint8 {
	return r.Classes[row*r.Width+col]
}

// Validate checks that the raster can be overlaid on a region.
func (r *LandUseRaster) Validate() error {
	if r == nil {
		return eris.Wrap(ErrInvalidRaster, "models: nil land-use raster")
	}
	if strings.TrimSpace(r.CRS) == "" {
		return eris.Wrap(ErrInvalidRaster, "models: land-use raster has no coordinate reference")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return eris.Wrapf(ErrInvalidRaster, "models: land-use raster size %dx%d", r.Width, r.Height)
	}
	if len(r.Classes) != r.Width*r.Height {
		return eris.Wrapf(ErrInvalidRaster, "models: land-use raster has %d values, want %d",
			len(r.Classes), r.Width*r.Height)
	}
	if r.Transform.Determinant() == 0 {
		return eris.Wrap(ErrInvalidRaster, "models: land-use raster transform is singular")
	}
	return nil
}

// AdminBoundary is a named administrative polygon in geographic coordinates.
type AdminBoundary struct {
	Name     string
	Geometry *geom.MultiPolygon
}

// ZonalRecord summarises one land-use class inside the region.
type ZonalRecord struct {
	ClassCode      int     `json:"class_code"`
	ClassName      string  `json:"class_name"`
	PixelsInRegion int     `json:"pixel_count_in_region"`
	PixelsTotal    int     `json:"pixel_count_total"`
	ShareOfRegion  float64 `json:"share_of_region"` // percent
	ShareOfClass   float64 `json:"share_of_class"`  // percent
	AreaKM2        float64 `json:"area_km2"`
}

// CountryRecord summarises the overlap between the region and one country.
type CountryRecord struct {
	Country          string   `json:"country_name"`
	AreaKM2          float64  `json:"intersection_area_km2"`
	PercentOfCountry *float64 `json:"percent_of_country,omitempty"`
}

// GroupRecord aggregates several land-use classes (e.g. all agriculture).
type GroupRecord struct {
	Group          string  `json:"group"`
	Codes          []int   `json:"class_codes"`
	PixelsInRegion int     `json:"pixel_count_in_region"`
	PixelsTotal    int     `json:"pixel_count_total"`
	ShareOfRegion  float64 `json:"share_of_region"` // percent
	AreaKM2        float64 `json:"area_km2"`
}
