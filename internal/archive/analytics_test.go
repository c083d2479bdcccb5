package archive

import (
	"math"
	"testing"

	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilySummariesAggregates(t *testing.T) {
	archive := []types.Candidate{
		candWithFamily("a1", 2.0, 0.10),
		candWithFamily("a2", 1.0, 0.10),
		candWithFamily("b1", 3.0, 0.90),
	}

	summaries := FamilySummaries(archive)

	require.Len(t, summaries, 2)
	// Ordered best score first.
	assert.Equal(t, "a2", summaries[0].BestID)
	assert.Equal(t, 2, summaries[0].Count)
	assert.InDelta(t, 1.5, summaries[0].MeanScore, 1e-9)
	assert.Equal(t, []string{string(types.RegimeLowVol)}, summaries[0].Regimes)
	assert.Equal(t, "b1", summaries[1].BestID)
}

func TestFamilySummariesEmptyArchive(t *testing.T) {
	assert.Empty(t, FamilySummaries(nil))
}

func TestEmbedCandidatesSeparatesDistinctShapes(t *testing.T) {
	// Two tight clusters in feature space must land apart in the projection.
	archive := []types.Candidate{
		{ID: "u1", Features: types.FeatureDescriptor{Entropy: 0.95, PeakConcentration: 1.1}},
		{ID: "u2", Features: types.FeatureDescriptor{Entropy: 0.97, PeakConcentration: 1.2}},
		{ID: "s1", Features: types.FeatureDescriptor{Entropy: 0.05, PeakConcentration: 60}},
		{ID: "s2", Features: types.FeatureDescriptor{Entropy: 0.07, PeakConcentration: 58}},
	}

	points := EmbedCandidates(archive)
	require.Len(t, points, 4)

	dist := func(a, b types.EmbeddedPoint) float64 {
		return math.Hypot(a.X-b.X, a.Y-b.Y)
	}
	within := dist(points[0], points[1]) + dist(points[2], points[3])
	across := dist(points[0], points[2])

	assert.Greater(t, across, within)
	for _, pt := range points {
		assert.False(t, math.IsNaN(pt.X) || math.IsNaN(pt.Y))
	}
}

func TestEmbedCandidatesDegenerateInputs(t *testing.T) {
	assert.Empty(t, EmbedCandidates(nil))

	single := EmbedCandidates([]types.Candidate{candWithScore("only", 1.0)})
	require.Len(t, single, 1)
	assert.Equal(t, 0.0, single[0].X)
	assert.Equal(t, 0.0, single[0].Y)

	// Identical feature vectors have zero covariance; points collapse at the
	// origin instead of producing NaNs.
	same := EmbedCandidates([]types.Candidate{
		candWithFamily("a", 1.0, 0.5),
		candWithFamily("b", 2.0, 0.5),
	})
	for _, pt := range same {
		assert.False(t, math.IsNaN(pt.X) || math.IsNaN(pt.Y))
	}
}

func TestEmbedCandidatesPreservesIdentity(t *testing.T) {
	archive := []types.Candidate{
		candWithFamily("a", 1.0, 0.2),
		candWithFamily("b", 2.0, 0.8),
	}

	points := EmbedCandidates(archive)

	require.Len(t, points, 2)
	assert.Equal(t, "a", points[0].ID)
	assert.Equal(t, 1.0, points[0].Score)
	assert.Equal(t, types.RegimeLowVol, points[0].Regime)
}
