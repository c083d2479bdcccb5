/*

This file contains the read-only analytics over the archive: per-family
aggregate statistics and a two-dimensional feature embedding for
visualization. Neither is authoritative state; both are recomputed on demand.

*/

package archive

import (
	"math"
	"sort"

	"github.com/ManiFed/curvelab/internal/types"
)

const (
	powerIterations = 50
	featureDims     = 5
)

// FamilySummaries aggregates the archive by coarse feature family, ordered
// best score first.
func FamilySummaries(archive []types.Candidate) []types.FamilySummary {
	type acc struct {
		count      int
		scoreSum   float64
		bestScore  float64
		bestID     string
		bestRegime types.RegimeID
		regimes    map[string]bool
	}
	families := make(map[string]*acc)

	for _, cand := range archive {
		key := FamilyKey(cand.Features)
		a, ok := families[key]
		if !ok {
			a = &acc{bestScore: math.Inf(1), regimes: make(map[string]bool)}
			families[key] = a
		}
		a.count++
		a.scoreSum += cand.Score
		a.regimes[string(cand.Regime)] = true
		if cand.Score < a.bestScore {
			a.bestScore = cand.Score
			a.bestID = cand.ID
			a.bestRegime = cand.Regime
		}
	}

	out := make([]types.FamilySummary, 0, len(families))
	for key, a := range families {
		regimes := make([]string, 0, len(a.regimes))
		for r := range a.regimes {
			regimes = append(regimes, r)
		}
		sort.Strings(regimes)
		out = append(out, types.FamilySummary{
			FamilyKey:  key,
			Count:      a.count,
			BestScore:  a.bestScore,
			MeanScore:  a.scoreSum / float64(a.count),
			Regimes:    regimes,
			BestID:     a.bestID,
			BestRegime: a.bestRegime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BestScore < out[j].BestScore })
	return out
}

// EmbedCandidates projects every archived candidate's feature vector onto its
// first two principal components. With fewer than two candidates the points
// sit at the origin.
func EmbedCandidates(archive []types.Candidate) []types.EmbeddedPoint {
	points := make([]types.EmbeddedPoint, len(archive))
	vectors := make([][featureDims]float64, len(archive))
	for i, cand := range archive {
		vectors[i] = [featureDims]float64{
			cand.Features.Curvature,
			cand.Features.Entropy,
			cand.Features.Symmetry,
			cand.Features.TailRatio,
			cand.Features.PeakConcentration,
		}
		points[i] = types.EmbeddedPoint{ID: cand.ID, Regime: cand.Regime, Score: cand.Score}
	}
	if len(archive) < 2 {
		return points
	}

	// Center the cloud.
	var mean [featureDims]float64
	for _, v := range vectors {
		for d := 0; d < featureDims; d++ {
			mean[d] += v[d]
		}
	}
	for d := 0; d < featureDims; d++ {
		mean[d] /= float64(len(vectors))
	}
	for i := range vectors {
		for d := 0; d < featureDims; d++ {
			vectors[i][d] -= mean[d]
		}
	}

	var cov [featureDims][featureDims]float64
	for _, v := range vectors {
		for a := 0; a < featureDims; a++ {
			for b := 0; b < featureDims; b++ {
				cov[a][b] += v[a] * v[b]
			}
		}
	}
	n := float64(len(vectors))
	for a := 0; a < featureDims; a++ {
		for b := 0; b < featureDims; b++ {
			cov[a][b] /= n
		}
	}

	first := principalAxis(&cov)
	deflate(&cov, first)
	second := principalAxis(&cov)

	for i, v := range vectors {
		points[i].X = dot(v, first)
		points[i].Y = dot(v, second)
	}
	return points
}

// principalAxis extracts the dominant eigenvector by power iteration.
func principalAxis(cov *[featureDims][featureDims]float64) [featureDims]float64 {
	v := [featureDims]float64{1, 1, 1, 1, 1}
	for iter := 0; iter < powerIterations; iter++ {
		var next [featureDims]float64
		for a := 0; a < featureDims; a++ {
			for b := 0; b < featureDims; b++ {
				next[a] += cov[a][b] * v[b]
			}
		}
		norm := math.Sqrt(dot(next, next))
		if norm < 1e-12 {
			return v
		}
		for d := 0; d < featureDims; d++ {
			next[d] /= norm
		}
		v = next
	}
	return v
}

// deflate removes the component of the matrix along an extracted axis so the
// next power iteration converges to the second eigenvector.
func deflate(cov *[featureDims][featureDims]float64, axis [featureDims]float64) {
	var lambda float64
	for a := 0; a < featureDims; a++ {
		for b := 0; b < featureDims; b++ {
			lambda += axis[a] * cov[a][b] * axis[b]
		}
	}
	for a := 0; a < featureDims; a++ {
		for b := 0; b < featureDims; b++ {
			cov[a][b] -= lambda * axis[a] * axis[b]
		}
	}
}

func dot(a, b [featureDims]float64) float64 {
	var s float64
	for d := 0; d < featureDims; d++ {
		s += a[d] * b[d]
	}
	return s
}
