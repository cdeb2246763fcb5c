package allometry

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon/internal/measurement"
)

func floatPtr(v float64) *float64 { return &v }

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	return NewCalculator(DefaultSpeciesTable())
}

func TestComputeTree_KnownFixture(t *testing.T) {
	// DBH=25cm, height=12m, rhizophora_mucronata, age 10. The values below
	// are the closed-form results of the documented equations; repeated runs
	// must reproduce them exactly.
	calc := newCalculator(t)
	m := measurement.TreeMeasurement{
		Species:  "rhizophora_mucronata",
		DBHCm:    25,
		HeightM:  12,
		AgeYears: floatPtr(10),
	}

	got := calc.ComputeTree(m)

	wantAGB := 0.168 * math.Pow(25, 2.471) / 1000
	assert.InEpsilon(t, wantAGB, got.AGB, 1e-12)
	assert.InEpsilon(t, wantAGB*0.39, got.BGB, 1e-12)
	assert.InEpsilon(t, (wantAGB+wantAGB*0.39)*0.46, got.CarbonStock, 1e-12)
	assert.InEpsilon(t, got.CarbonStock*(44.0/12.0), got.CO2, 1e-12)
	assert.InEpsilon(t, got.CO2/10, got.AnnualCO2, 1e-12)

	// Determinism across runs.
	again := calc.ComputeTree(m)
	assert.Equal(t, got, again)
}

func TestComputeTree_AGBMonotonicInDBH(t *testing.T) {
	calc := newCalculator(t)
	prev := 0.0
	for dbh := 1.0; dbh <= 120; dbh += 0.5 {
		r := calc.ComputeTree(measurement.TreeMeasurement{Species: "avicennia_marina", DBHCm: dbh, HeightM: 10})
		require.Greater(t, r.AGB, prev, "AGB must strictly increase with DBH (dbh=%v)", dbh)
		prev = r.AGB
	}
}

func TestComputeTree_CarbonFractionExact(t *testing.T) {
	calc := newCalculator(t)
	for _, dbh := range []float64{0.5, 3, 17.2, 42, 99.9} {
		r := calc.ComputeTree(measurement.TreeMeasurement{Species: GenericCode, DBHCm: dbh, HeightM: 8})
		assert.InEpsilon(t, r.TotalBiomass*0.46, r.CarbonStock, 1e-12)
	}
}

func TestComputeTree_UnknownSpeciesFallsBack(t *testing.T) {
	calc := newCalculator(t)
	unknown := calc.ComputeTree(measurement.TreeMeasurement{Species: "ceriops_tagal", DBHCm: 20, HeightM: 9})
	generic := calc.ComputeTree(measurement.TreeMeasurement{Species: GenericCode, DBHCm: 20, HeightM: 9})
	assert.Equal(t, generic.AGB, unknown.AGB)
	assert.Equal(t, generic.BGB, unknown.BGB)
}

func TestComputeTree_HealthScoreScalesBiomass(t *testing.T) {
	calc := newCalculator(t)
	healthy := calc.ComputeTree(measurement.TreeMeasurement{Species: GenericCode, DBHCm: 30, HeightM: 10})
	degraded := calc.ComputeTree(measurement.TreeMeasurement{Species: GenericCode, DBHCm: 30, HeightM: 10, HealthScore: floatPtr(50)})
	assert.InEpsilon(t, healthy.AGB*0.5, degraded.AGB, 1e-12)
}

func TestComputeTree_AnnualizationDefault(t *testing.T) {
	calc := NewCalculator(DefaultSpeciesTable(), WithAnnualizationYears(20))
	r := calc.ComputeTree(measurement.TreeMeasurement{Species: GenericCode, DBHCm: 15, HeightM: 6})
	assert.InEpsilon(t, r.CO2/20, r.AnnualCO2, 1e-12)
}

func TestComputeForest_ZeroTrees(t *testing.T) {
	calc := newCalculator(t)
	result, err := calc.ComputeForest(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Zero(t, result.TotalBiomass)
	assert.Zero(t, result.CO2)
	assert.Nil(t, result.PerHectare)
	assert.Empty(t, result.Species)
}

func TestComputeForest_ZeroArea(t *testing.T) {
	calc := newCalculator(t)
	trees := []measurement.TreeMeasurement{{Species: GenericCode, DBHCm: 20, HeightM: 8}}
	result, err := calc.ComputeForest(context.Background(), trees, 0)
	require.NoError(t, err)
	assert.Nil(t, result.PerHectare, "zero area must omit per-hectare figures, not divide by zero")
	assert.Positive(t, result.CO2)
}

func TestComputeForest_OrderIndependent(t *testing.T) {
	calc := newCalculator(t)
	rng := rand.New(rand.NewSource(7))

	trees := make([]measurement.TreeMeasurement, 200)
	species := []string{"rhizophora_mucronata", "avicennia_marina", "sonneratia_alba", GenericCode}
	for i := range trees {
		trees[i] = measurement.TreeMeasurement{
			Species: species[i%len(species)],
			DBHCm:   5 + rng.Float64()*60,
			HeightM: 2 + rng.Float64()*20,
		}
	}

	base, err := calc.ComputeForest(context.Background(), trees, 12)
	require.NoError(t, err)

	shuffled := make([]measurement.TreeMeasurement, len(trees))
	copy(shuffled, trees)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	permuted, err := calc.ComputeForest(context.Background(), shuffled, 12)
	require.NoError(t, err)

	assert.InEpsilon(t, base.TotalBiomass, permuted.TotalBiomass, 1e-9)
	assert.InEpsilon(t, base.CO2, permuted.CO2, 1e-9)
	assert.Equal(t, len(base.Species), len(permuted.Species))
}

func TestComputeForest_SpeciesBreakdown(t *testing.T) {
	calc := newCalculator(t)
	trees := []measurement.TreeMeasurement{
		{Species: "rhizophora_mucronata", DBHCm: 25, HeightM: 12},
		{Species: "rhizophora_mucronata", DBHCm: 18, HeightM: 9},
		{Species: "avicennia_marina", DBHCm: 22, HeightM: 10},
		{Species: "unidentified", DBHCm: 10, HeightM: 5},
	}

	result, err := calc.ComputeForest(context.Background(), trees, 2)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, s := range result.Species {
		counts[s.Species] = s.Count
	}
	assert.Equal(t, 2, counts["rhizophora_mucronata"])
	assert.Equal(t, 1, counts["avicennia_marina"])
	// Unknown species roll up under the generic fallback.
	assert.Equal(t, 1, counts[GenericCode])

	require.NotNil(t, result.PerHectare)
	assert.InEpsilon(t, result.TotalBiomass/2, result.PerHectare.Biomass, 1e-12)
}

func TestEstimateConfidence(t *testing.T) {
	t.Run("base confidence for sparse data", func(t *testing.T) {
		trees := []measurement.TreeMeasurement{{Species: GenericCode, DBHCm: 10, HeightM: 5}}
		assert.InEpsilon(t, 0.75, estimateConfidence(trees), 1e-12) // base 0.7 + height 0.05
	})

	t.Run("complete large sample approaches the cap", func(t *testing.T) {
		trees := make([]measurement.TreeMeasurement, 120)
		for i := range trees {
			trees[i] = measurement.TreeMeasurement{
				Species:     GenericCode,
				DBHCm:       20,
				HeightM:     10,
				CrownRadius: floatPtr(2.5),
				AgeYears:    floatPtr(12),
				HealthScore: floatPtr(90),
			}
		}
		assert.InEpsilon(t, 1.0, estimateConfidence(trees), 1e-12)
	})
}
