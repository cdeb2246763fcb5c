package measurement

import (
	dErrors "bluecarbon/pkg/domain-errors"
)

// Normalization is fail-fast: the first invalid field produces a
// validation_error naming that field and nothing else is inspected. This is
// deliberate and covered by tests; accumulate-all is not offered.

// NormalizeTree validates a raw tree observation and converts it onto
// canonical units (DBH in cm, lengths in m).
func NormalizeTree(raw RawTree) (TreeMeasurement, error) {
	var m TreeMeasurement

	dbhCm, err := toCentimeters(raw.DBH, raw.DBHUnit, "dbh")
	if err != nil {
		return m, err
	}
	if dbhCm <= 0 {
		return m, dErrors.New(dErrors.CodeValidation, "dbh must be greater than zero")
	}

	heightM, err := toMeters(raw.Height, raw.HeightUnit, "height")
	if err != nil {
		return m, err
	}
	if heightM <= 0 {
		return m, dErrors.New(dErrors.CodeValidation, "height must be greater than zero")
	}

	if raw.CrownRadius != nil && *raw.CrownRadius < 0 {
		return m, dErrors.New(dErrors.CodeValidation, "crown_radius must not be negative")
	}
	if raw.AgeYears != nil && *raw.AgeYears <= 0 {
		return m, dErrors.New(dErrors.CodeValidation, "age_years must be greater than zero")
	}
	if raw.HealthScore != nil && (*raw.HealthScore < 0 || *raw.HealthScore > 100) {
		return m, dErrors.New(dErrors.CodeValidation, "health_score must be between 0 and 100")
	}

	m = TreeMeasurement{
		Species:     raw.Species,
		DBHCm:       dbhCm,
		HeightM:     heightM,
		CrownRadius: raw.CrownRadius,
		AgeYears:    raw.AgeYears,
		HealthScore: raw.HealthScore,
	}
	return m, nil
}

// NormalizeFieldPlot validates a field plot observation.
func NormalizeFieldPlot(plot FieldPlot) (FieldPlot, error) {
	if plot.PlotID == "" {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "plot_id is required")
	}
	if plot.Lat < -90 || plot.Lat > 90 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "lat must be between -90 and 90")
	}
	if plot.Lon < -180 || plot.Lon > 180 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "lon must be between -180 and 180")
	}
	if plot.BiomassTonnes < 0 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "biomass_t must not be negative")
	}
	if plot.SoilCarbonTonnes < 0 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "soil_carbon_t must not be negative")
	}
	if plot.VegetationHeightM < 0 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "vegetation_height_m must not be negative")
	}
	if plot.CanopyCover < 0 || plot.CanopyCover > 1 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "canopy_cover must be between 0 and 1")
	}
	if plot.SpeciesCount < 0 {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "species_count must not be negative")
	}
	if plot.CollectedAt.IsZero() {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "collected_at is required")
	}
	if plot.CollectedBy == "" {
		return FieldPlot{}, dErrors.New(dErrors.CodeValidation, "collected_by is required")
	}
	return plot, nil
}

// NormalizeSatellite validates a satellite observation.
func NormalizeSatellite(obs SatelliteObservation) (SatelliteObservation, error) {
	if !obs.Source.Valid() {
		return SatelliteObservation{}, dErrors.Newf(dErrors.CodeValidation, "source %q is not a known satellite platform", obs.Source)
	}
	if obs.ImageDate.IsZero() {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "image_date is required")
	}
	if obs.ResolutionM <= 0 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "resolution_m must be greater than zero")
	}
	if obs.Indices.NDVI < -1 || obs.Indices.NDVI > 1 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "ndvi must be between -1 and 1")
	}
	if obs.Indices.NDWI < -1 || obs.Indices.NDWI > 1 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "ndwi must be between -1 and 1")
	}
	if obs.Indices.EVI < -1 || obs.Indices.EVI > 1 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "evi must be between -1 and 1")
	}
	if obs.Indices.LAI < 0 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "lai must not be negative")
	}
	if obs.CloudCover < 0 || obs.CloudCover > 100 {
		return SatelliteObservation{}, dErrors.New(dErrors.CodeValidation, "cloud_cover must be between 0 and 100")
	}
	return obs, nil
}

func toCentimeters(v float64, unit, field string) (float64, error) {
	switch unit {
	case "", UnitCentimeters:
		return v, nil
	case UnitMillimeters:
		return v / 10, nil
	case UnitMeters:
		return v * 100, nil
	}
	return 0, dErrors.Newf(dErrors.CodeValidation, "%s_unit %q is not supported", field, unit)
}

func toMeters(v float64, unit, field string) (float64, error) {
	switch unit {
	case "", UnitMeters:
		return v, nil
	case UnitCentimeters:
		return v / 100, nil
	}
	return 0, dErrors.Newf(dErrors.CodeValidation, "%s_unit %q is not supported", field, unit)
}
