/*

This file contains the archive curator: the long-horizon diversity record of
the discovery engine. Two admission policies coexist, batch/diverse selection
over a whole generation and buffered threshold admission reviewed on a fixed
generation cadence, plus FIFO capacity trimming and the regime-map builder
the status endpoints rely on.

*/

package archive

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/rs/zerolog"
)

// familyGrid is the rounding step for coarse feature-family keys.
const familyGrid = 0.05

// Curator applies the archive admission policies for one parameter set.
type Curator struct {
	params types.EngineParameters
	log    zerolog.Logger
}

func NewCurator(params types.EngineParameters) *Curator {
	return &Curator{
		params: params,
		log:    logger.GetForComponent("archive"),
	}
}

// SelectResult is the outcome of one buffered-admission call.
type SelectResult struct {
	Archived   []types.Candidate
	NextBuffer []types.Candidate
}

// FamilyKey collapses a feature descriptor onto a coarse grid, giving every
// candidate a family signature for deduplication.
func FamilyKey(f types.FeatureDescriptor) string {
	snap := func(x float64) string {
		return fmt.Sprintf("%.2f", math.Round(x/familyGrid)*familyGrid)
	}
	return strings.Join([]string{
		snap(f.Curvature),
		snap(f.Entropy),
		snap(f.Symmetry),
		snap(f.TailRatio),
		snap(f.PeakConcentration),
	}, "|")
}

// SelectDiverse is the batch policy: best-scoring representative of each
// unseen family first, then next-best fillers regardless of family, but only
// as far as the minimum admission count requires.
func (c *Curator) SelectDiverse(candidates []types.Candidate) []types.Candidate {
	sorted := append([]types.Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	seen := make(map[string]bool)
	picked := make(map[string]bool)
	selected := make([]types.Candidate, 0, c.params.ArchiveBatchTarget)

	for _, cand := range sorted {
		if len(selected) >= c.params.ArchiveBatchTarget {
			break
		}
		key := FamilyKey(cand.Features)
		if seen[key] {
			continue
		}
		seen[key] = true
		picked[cand.ID] = true
		selected = append(selected, cand)
	}

	// Duplicate families are allowed only to reach the minimum admission.
	for _, cand := range sorted {
		if len(selected) >= c.params.ArchiveMinAdmission {
			break
		}
		if picked[cand.ID] {
			continue
		}
		picked[cand.ID] = true
		selected = append(selected, cand)
	}

	return selected
}

// SelectArchiveCandidates is the buffered threshold policy. New candidates
// that pass the coarse quality ceiling join the pending buffer; only when the
// generation index lands on the review cadence does the buffer get judged
// against the incumbent threshold. Losers are dropped, never retried, and a
// review always clears the buffer.
func (c *Curator) SelectArchiveCandidates(buffer, newCandidates []types.Candidate, generationIndex int, incumbentThreshold float64) SelectResult {
	next := append([]types.Candidate(nil), buffer...)
	for _, cand := range newCandidates {
		if cand.Score <= c.params.ArchiveScoreCeiling {
			next = append(next, cand)
		}
	}

	if generationIndex%c.params.ArchiveRoundInterval != 0 {
		return SelectResult{NextBuffer: next}
	}

	var archived []types.Candidate
	for _, cand := range next {
		if cand.Score < incumbentThreshold {
			archived = append(archived, cand)
		}
	}

	if len(next) > 0 {
		c.log.Debug().
			Int("reviewed", len(next)).
			Int("archived", len(archived)).
			Float64("threshold", incumbentThreshold).
			Msg("Archive round reviewed")
	}

	return SelectResult{Archived: archived, NextBuffer: nil}
}

// TrimFIFO drops the oldest entries once the archive exceeds its capacity.
// Insertion order is the age order; the front of the slice goes first.
func (c *Curator) TrimFIFO(archive []types.Candidate) []types.Candidate {
	if len(archive) <= c.params.ArchiveCapacity {
		return archive
	}
	trimmed := len(archive) - c.params.ArchiveCapacity
	c.log.Info().Int("trimmed", trimmed).Msg("Archive capacity reached, trimming oldest")
	return archive[trimmed:]
}

// BuildRegimeMap groups a flat archive by regime, with an entry for every
// known regime even when it has no candidates yet.
func BuildRegimeMap(archive []types.Candidate) map[types.RegimeID]types.PopulationState {
	out := make(map[types.RegimeID]types.PopulationState, len(types.KnownRegimeIDs()))
	for _, id := range types.KnownRegimeIDs() {
		out[id] = types.PopulationState{Regime: id, Candidates: []types.Candidate{}}
	}

	for _, cand := range archive {
		pop, ok := out[cand.Regime]
		if !ok {
			pop = types.PopulationState{Regime: cand.Regime, Candidates: []types.Candidate{}}
		}
		pop.Candidates = append(pop.Candidates, cand)
		if pop.Champion == nil || cand.Score < pop.Champion.Score {
			copied := cand
			pop.Champion = &copied
		}
		out[cand.Regime] = pop
	}

	return out
}
