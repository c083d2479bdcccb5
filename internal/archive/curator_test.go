package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candWithScore(id string, score float64) types.Candidate {
	return types.Candidate{
		ID:        id,
		Regime:    types.RegimeLowVol,
		Score:     score,
		CreatedAt: time.Now().UTC(),
		Features:  types.FeatureDescriptor{Entropy: score},
	}
}

func candWithFamily(id string, score, entropy float64) types.Candidate {
	c := candWithScore(id, score)
	c.Features = types.FeatureDescriptor{Entropy: entropy}
	return c
}

func TestFamilyKeyGroupsNearbyFeatures(t *testing.T) {
	a := types.FeatureDescriptor{Curvature: 0.51, Entropy: 0.74}
	b := types.FeatureDescriptor{Curvature: 0.49, Entropy: 0.76}
	c := types.FeatureDescriptor{Curvature: 0.80, Entropy: 0.74}

	assert.Equal(t, FamilyKey(a), FamilyKey(b))
	assert.NotEqual(t, FamilyKey(a), FamilyKey(c))
}

func TestSelectDiversePicksBestPerFamily(t *testing.T) {
	p := config.DefaultEngineParameters
	p.ArchiveBatchTarget = 3
	p.ArchiveMinAdmission = 0
	c := NewCurator(p)

	candidates := []types.Candidate{
		candWithFamily("a-best", 1.0, 0.10),
		candWithFamily("a-worse", 2.0, 0.10),
		candWithFamily("b-best", 1.5, 0.50),
		candWithFamily("c-best", 3.0, 0.90),
	}

	selected := c.SelectDiverse(candidates)

	require.Len(t, selected, 3)
	ids := []string{selected[0].ID, selected[1].ID, selected[2].ID}
	assert.Equal(t, []string{"a-best", "b-best", "c-best"}, ids)
}

func TestSelectDiverseFillsToMinimumWithDuplicates(t *testing.T) {
	p := config.DefaultEngineParameters
	p.ArchiveBatchTarget = 8
	p.ArchiveMinAdmission = 3
	c := NewCurator(p)

	// Only two distinct families exist; the minimum forces one duplicate.
	candidates := []types.Candidate{
		candWithFamily("a-best", 1.0, 0.10),
		candWithFamily("a-second", 1.2, 0.10),
		candWithFamily("b-best", 1.5, 0.50),
	}

	selected := c.SelectDiverse(candidates)

	require.Len(t, selected, 3)
	assert.Equal(t, "a-second", selected[2].ID)
}

func TestBufferedAdmissionScenario(t *testing.T) {
	p := config.DefaultEngineParameters
	c := NewCurator(p)
	interval := p.ArchiveRoundInterval

	// A 5.2-scoring candidate buffered off-cadence stays buffered.
	res := c.SelectArchiveCandidates(nil, []types.Candidate{candWithScore("first", 5.2)}, interval-1, 5.0)
	assert.Empty(t, res.Archived)
	require.Len(t, res.NextBuffer, 1)
	assert.Equal(t, "first", res.NextBuffer[0].ID)

	// On the review round a 4.8 beats the incumbent threshold of 5 and is
	// archived; the buffered 5.2 and a fresh 5.1 both lose and are dropped.
	res = c.SelectArchiveCandidates(res.NextBuffer, []types.Candidate{
		candWithScore("winner", 4.8),
		candWithScore("loser", 5.1),
	}, interval, 5.0)

	require.Len(t, res.Archived, 1)
	assert.Equal(t, "winner", res.Archived[0].ID)
	assert.Empty(t, res.NextBuffer)
}

func TestBufferedAdmissionEmptyInputIsIdempotent(t *testing.T) {
	p := config.DefaultEngineParameters
	c := NewCurator(p)

	buffer := []types.Candidate{candWithScore("held", 4.0)}
	res := c.SelectArchiveCandidates(buffer, nil, 1, 5.0)

	assert.Empty(t, res.Archived)
	assert.Equal(t, buffer, res.NextBuffer)
}

func TestBufferedAdmissionQualityCeiling(t *testing.T) {
	p := config.DefaultEngineParameters
	c := NewCurator(p)

	res := c.SelectArchiveCandidates(nil, []types.Candidate{
		candWithScore("ok", p.ArchiveScoreCeiling-1),
		candWithScore("junk", p.ArchiveScoreCeiling+1),
	}, 1, 5.0)

	require.Len(t, res.NextBuffer, 1)
	assert.Equal(t, "ok", res.NextBuffer[0].ID)
}

func TestTrimFIFODropsOldest(t *testing.T) {
	p := config.DefaultEngineParameters
	p.ArchiveCapacity = 3
	c := NewCurator(p)

	archive := []types.Candidate{
		candWithScore("oldest", 1),
		candWithScore("old", 2),
		candWithScore("new", 3),
		candWithScore("newest", 4),
	}

	trimmed := c.TrimFIFO(archive)

	require.Len(t, trimmed, 3)
	assert.Equal(t, "old", trimmed[0].ID)
	assert.Equal(t, "newest", trimmed[2].ID)
}

func TestBuildRegimeMapCoversEveryRegime(t *testing.T) {
	archive := []types.Candidate{
		candWithScore("a", 2.0),
		candWithScore("b", 1.0),
	}

	m := BuildRegimeMap(archive)

	for _, id := range types.KnownRegimeIDs() {
		require.Contains(t, m, id)
	}

	low := m[types.RegimeLowVol]
	require.NotNil(t, low.Champion)
	assert.Equal(t, "b", low.Champion.ID)
	assert.Len(t, low.Candidates, 2)

	high := m[types.RegimeHighVol]
	assert.Nil(t, high.Champion)
	assert.Empty(t, high.Candidates)
}

func TestBuildRegimeMapKeepsUnknownRegimeEntries(t *testing.T) {
	foreign := candWithScore("x", 1.0)
	foreign.Regime = types.RegimeID("custom")

	m := BuildRegimeMap([]types.Candidate{foreign})

	require.Contains(t, m, types.RegimeID("custom"))
	assert.Len(t, m[types.RegimeID("custom")].Candidates, 1)
}

func TestSelectDiverseEmptyInput(t *testing.T) {
	c := NewCurator(config.DefaultEngineParameters)
	assert.Empty(t, c.SelectDiverse(nil))
}

func TestFamilyKeyHasFiveFields(t *testing.T) {
	f := types.FeatureDescriptor{Curvature: 0.37, Entropy: 0.91}
	assert.Len(t, strings.Split(FamilyKey(f), "|"), 5)
}
