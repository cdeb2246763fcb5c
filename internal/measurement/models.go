// Package measurement validates and canonicalizes raw ecological
// measurements before they enter the carbon pipeline. Normalization is pure:
// it rejects out-of-range values with a coded error naming the first invalid
// field and converts units onto the canonical scale (cm for diameter, m for
// height and length, hectares for area).
package measurement

import "time"

// Canonical units accepted by the normalizers.
const (
	UnitCentimeters = "cm"
	UnitMillimeters = "mm"
	UnitMeters      = "m"
)

// SatelliteSource enumerates supported remote-sensing platforms.
type SatelliteSource string

const (
	SourceLandsat  SatelliteSource = "landsat"
	SourceSentinel SatelliteSource = "sentinel"
	SourceMODIS    SatelliteSource = "modis"
	SourcePlanet   SatelliteSource = "planet"
	SourceOther    SatelliteSource = "other"
)

// Valid reports whether the source is a known platform.
func (s SatelliteSource) Valid() bool {
	switch s {
	case SourceLandsat, SourceSentinel, SourceMODIS, SourcePlanet, SourceOther:
		return true
	}
	return false
}

// TreeMeasurement is a canonicalized single-tree observation. DBH is in
// centimeters, height and crown radius in meters.
type TreeMeasurement struct {
	Species     string   `json:"species"`
	DBHCm       float64  `json:"dbh_cm"`
	HeightM     float64  `json:"height_m"`
	CrownRadius *float64 `json:"crown_radius_m,omitempty"`
	AgeYears    *float64 `json:"age_years,omitempty"`
	HealthScore *float64 `json:"health_score,omitempty"`
}

// RawTree is a tree observation as submitted, with optional unit tags.
// DBHUnit defaults to cm, HeightUnit to m.
type RawTree struct {
	Species     string   `json:"species"`
	DBH         float64  `json:"dbh"`
	DBHUnit     string   `json:"dbh_unit,omitempty"`
	Height      float64  `json:"height"`
	HeightUnit  string   `json:"height_unit,omitempty"`
	CrownRadius *float64 `json:"crown_radius,omitempty"`
	AgeYears    *float64 `json:"age_years,omitempty"`
	HealthScore *float64 `json:"health_score,omitempty"`
}

// FieldPlot is a canonicalized forest-aggregate plot observation.
type FieldPlot struct {
	PlotID            string    `json:"plot_id"`
	Lat               float64   `json:"lat"`
	Lon               float64   `json:"lon"`
	BiomassTonnes     float64   `json:"biomass_t"`
	SoilCarbonTonnes  float64   `json:"soil_carbon_t"`
	VegetationHeightM float64   `json:"vegetation_height_m"`
	CanopyCover       float64   `json:"canopy_cover"`
	SpeciesCount      int       `json:"species_count"`
	CollectedAt       time.Time `json:"collected_at"`
	CollectedBy       string    `json:"collected_by"`
}

// SpectralIndices are the vegetation indices derived from a satellite scene.
// NDVI, NDWI, EVI live in [-1, 1]; LAI is non-negative.
type SpectralIndices struct {
	NDVI float64 `json:"ndvi"`
	NDWI float64 `json:"ndwi"`
	EVI  float64 `json:"evi"`
	LAI  float64 `json:"lai"`
}

// SatelliteObservation is a canonicalized remote-sensing observation.
type SatelliteObservation struct {
	Source      SatelliteSource `json:"source"`
	ImageDate   time.Time       `json:"image_date"`
	ResolutionM float64         `json:"resolution_m"`
	Bands       []string        `json:"bands,omitempty"`
	Indices     SpectralIndices `json:"indices"`
	CloudCover  float64         `json:"cloud_cover"`
}
