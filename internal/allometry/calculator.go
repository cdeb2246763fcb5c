// Package allometry computes biomass and carbon stock from tree and stand
// measurements using allometric regression. All functions are deterministic:
// the same measurements always produce the same result.
package allometry

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"bluecarbon/internal/measurement"
)

// IPCC default carbon fraction of dry biomass for mangroves.
const CarbonFraction = 0.46

// CO2PerTonneCarbon converts carbon mass to CO2-equivalent mass using the
// molecular weight ratio 44/12. The one canonical constant; no alternative
// roundings appear elsewhere.
const CO2PerTonneCarbon = 44.0 / 12.0

// TreeCarbonResult is the carbon computation for a single tree. Masses are
// in tonnes.
type TreeCarbonResult struct {
	Species      string  `json:"species"`
	AGB          float64 `json:"agb_t"`
	BGB          float64 `json:"bgb_t"`
	TotalBiomass float64 `json:"total_biomass_t"`
	CarbonStock  float64 `json:"carbon_stock_t"`
	CO2          float64 `json:"co2_t"`
	AnnualCO2    float64 `json:"annual_co2_t"`
	CrownAreaM2  float64 `json:"crown_area_m2"`
	BasalAreaM2  float64 `json:"basal_area_m2"`
}

// PerHectare carries area-normalized figures. It is absent from a forest
// result when the stand area is zero or unknown.
type PerHectare struct {
	Biomass     float64 `json:"biomass_t_ha"`
	CarbonStock float64 `json:"carbon_stock_t_ha"`
	CO2         float64 `json:"co2_t_ha"`
}

// SpeciesSummary aggregates per-species totals within a stand.
type SpeciesSummary struct {
	Species     string  `json:"species"`
	Count       int     `json:"count"`
	AGB         float64 `json:"agb_t"`
	CarbonStock float64 `json:"carbon_stock_t"`
	CO2         float64 `json:"co2_t"`
}

// ForestCarbonResult is the stand-level aggregate.
type ForestCarbonResult struct {
	TreeCount    int              `json:"tree_count"`
	AGB          float64          `json:"agb_t"`
	BGB          float64          `json:"bgb_t"`
	TotalBiomass float64          `json:"total_biomass_t"`
	CarbonStock  float64          `json:"carbon_stock_t"`
	CO2          float64          `json:"co2_t"`
	AnnualCO2    float64          `json:"annual_co2_t"`
	CrownAreaHa  float64          `json:"crown_area_ha"`
	BasalAreaM2  float64          `json:"basal_area_m2"`
	Confidence   float64          `json:"confidence"`
	PerHectare   *PerHectare      `json:"per_hectare,omitempty"`
	Species      []SpeciesSummary `json:"species_breakdown"`
}

// Calculator evaluates allometric equations against a species table.
type Calculator struct {
	species *SpeciesTable

	// annualizationYears divides lifetime CO2 when a tree's age is unknown.
	annualizationYears float64
}

// Option configures a Calculator.
type Option func(c *Calculator)

// WithAnnualizationYears overrides the default divisor used to annualize
// sequestration for trees of unknown age.
func WithAnnualizationYears(years float64) Option {
	return func(c *Calculator) {
		if years > 0 {
			c.annualizationYears = years
		}
	}
}

// NewCalculator builds a Calculator over the given species table.
func NewCalculator(species *SpeciesTable, opts ...Option) *Calculator {
	c := &Calculator{species: species, annualizationYears: 10}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Species exposes the calculator's parameter table.
func (c *Calculator) Species() *SpeciesTable { return c.species }

// ComputeTree evaluates the allometric equations for one tree:
//
//	AGB  = a * DBH^b            (kg, converted to tonnes)
//	BGB  = AGB * rootShootRatio
//	C    = (AGB + BGB) * 0.46
//	CO2  = C * 44/12
//
// When the measurement carries a health score, AGB is scaled by score/100
// before the downstream terms. Annual CO2 is lifetime CO2 divided by age, or
// by the configured annualization divisor when age is unknown.
func (c *Calculator) ComputeTree(m measurement.TreeMeasurement) TreeCarbonResult {
	sp := c.species.Lookup(m.Species)

	agbKg := sp.CoeffA * math.Pow(m.DBHCm, sp.CoeffB)
	agb := agbKg / 1000
	if m.HealthScore != nil {
		agb *= *m.HealthScore / 100
	}

	bgb := agb * sp.RootShootRatio
	totalBiomass := agb + bgb
	carbonStock := totalBiomass * CarbonFraction
	co2 := carbonStock * CO2PerTonneCarbon

	years := c.annualizationYears
	if m.AgeYears != nil {
		years = *m.AgeYears
	}
	annualCO2 := co2 / years

	var crownArea float64
	if m.CrownRadius != nil {
		crownArea = math.Pi * *m.CrownRadius * *m.CrownRadius
	}
	// Basal area in m2: pi * (DBH/2)^2 with DBH in cm, divided by 1e4.
	radiusCm := m.DBHCm / 2
	basalArea := math.Pi * radiusCm * radiusCm / 10000

	return TreeCarbonResult{
		Species:      m.Species,
		AGB:          agb,
		BGB:          bgb,
		TotalBiomass: totalBiomass,
		CarbonStock:  carbonStock,
		CO2:          co2,
		AnnualCO2:    annualCO2,
		CrownAreaM2:  crownArea,
		BasalAreaM2:  basalArea,
	}
}

// ComputeForest computes per-tree results in parallel and reduces them by
// summation. The reduction is commutative, so completion order never affects
// the totals. Zero trees yields a zero-valued result; zero area yields a
// result without the per-hectare block.
func (c *Calculator) ComputeForest(ctx context.Context, trees []measurement.TreeMeasurement, areaHectares float64) (ForestCarbonResult, error) {
	result := ForestCarbonResult{TreeCount: len(trees)}
	if len(trees) == 0 {
		result.Species = []SpeciesSummary{}
		return result, nil
	}

	// Per-tree computation shares no mutable state: each goroutine writes
	// only its own slot.
	perTree := make([]TreeCarbonResult, len(trees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tree := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perTree[i] = c.ComputeTree(tree)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ForestCarbonResult{}, err
	}

	bySpecies := make(map[string]*SpeciesSummary)
	var crownAreaM2 float64
	for _, tr := range perTree {
		result.AGB += tr.AGB
		result.BGB += tr.BGB
		result.AnnualCO2 += tr.AnnualCO2
		crownAreaM2 += tr.CrownAreaM2
		result.BasalAreaM2 += tr.BasalAreaM2

		code := c.species.Lookup(tr.Species).Code
		summary, ok := bySpecies[code]
		if !ok {
			summary = &SpeciesSummary{Species: code}
			bySpecies[code] = summary
		}
		summary.Count++
		summary.AGB += tr.AGB
		summary.CarbonStock += tr.CarbonStock
		summary.CO2 += tr.CO2
	}

	result.TotalBiomass = result.AGB + result.BGB
	result.CarbonStock = result.TotalBiomass * CarbonFraction
	result.CO2 = result.CarbonStock * CO2PerTonneCarbon
	result.CrownAreaHa = crownAreaM2 / 10000
	result.Confidence = estimateConfidence(trees)

	if areaHectares > 0 {
		result.PerHectare = &PerHectare{
			Biomass:     result.TotalBiomass / areaHectares,
			CarbonStock: result.CarbonStock / areaHectares,
			CO2:         result.CO2 / areaHectares,
		}
	}

	result.Species = make([]SpeciesSummary, 0, len(bySpecies))
	for _, code := range sortedKeys(bySpecies) {
		result.Species = append(result.Species, *bySpecies[code])
	}
	return result, nil
}

// estimateConfidence derives a deterministic data-quality fraction from
// sample size and measurement completeness. Base 0.7; larger samples and
// fuller optional fields raise it, capped at 1.0.
func estimateConfidence(trees []measurement.TreeMeasurement) float64 {
	confidence := 0.7

	switch {
	case len(trees) >= 100:
		confidence += 0.15
	case len(trees) >= 50:
		confidence += 0.10
	case len(trees) >= 20:
		confidence += 0.05
	}

	hasHeight, hasCrown, hasAge, hasHealth := true, true, true, true
	for _, t := range trees {
		if t.HeightM <= 0 {
			hasHeight = false
		}
		if t.CrownRadius == nil || *t.CrownRadius <= 0 {
			hasCrown = false
		}
		if t.AgeYears == nil {
			hasAge = false
		}
		if t.HealthScore == nil {
			hasHealth = false
		}
	}
	if hasHeight {
		confidence += 0.05
	}
	if hasCrown {
		confidence += 0.03
	}
	if hasAge {
		confidence += 0.02
	}
	if hasHealth {
		confidence += 0.05
	}

	return math.Min(confidence, 1.0)
}

func sortedKeys(m map[string]*SpeciesSummary) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
