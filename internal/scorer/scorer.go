// Package scorer computes the deterministic part of a proposal evaluation:
// coverage, price, completeness, knockout, final score, rank and
// recommendation. It performs no I/O and reads no clock.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/proposal-eval/internal/model"
)

// Final score blend in COMPARE mode.
const (
	compareCoverageWeight = 0.7
	comparePriceWeight    = 0.3

	// knockoutThreshold is the missing-mandatory fraction that zeroes a score.
	knockoutThreshold = 0.5
)

// Score evaluates every input of the batch and returns the locked envelopes
// ordered by rank.
func Score(batch model.Batch) []model.DeterministicScore {
	mode := batch.Mode()

	var prices map[string]float64
	if mode == model.ModeCompare {
		prices = priceScores(batch.Inputs)
	}

	scores := make([]model.DeterministicScore, 0, len(batch.Inputs))
	for _, in := range batch.Inputs {
		p := in.Proposal
		cov := computeCoverage(batch.Requirements, p)

		s := model.DeterministicScore{
			ProposalID:       p.ID,
			CoverageScore:    cov.Score(),
			DataCompleteness: dataCompleteness(p),
			MandatoryTotal:   cov.Total,
			MandatoryCovered: cov.Covered,
			MissingMandatory: cov.Missing,
		}
		if ps, ok := prices[p.ID]; ok {
			s.PriceScore = &ps
		}

		s.KnockoutTriggered = cov.Total > 0 && cov.MissingFraction() > knockoutThreshold
		if s.KnockoutTriggered {
			s.KnockoutReasonHint = knockoutHint(cov)
		}
		s.FinalScore = finalScore(mode, s)
		s.RecommendationLevel = Recommend(s.FinalScore)
		scores = append(scores, s)
	}

	AssignRanks(scores)
	return scores
}

// finalScore blends coverage and price for the mode, clamps to [0,100] and
// forces 0 on knockout.
func finalScore(mode model.EvaluationMode, s model.DeterministicScore) int {
	if s.KnockoutTriggered {
		return 0
	}
	raw := s.CoverageScore
	if mode == model.ModeCompare {
		price := 0.0
		if s.PriceScore != nil {
			price = *s.PriceScore
		}
		raw = s.CoverageScore*compareCoverageWeight + price*comparePriceWeight
	}
	return clamp(int(math.Round(raw)), 0, 100)
}

// AssignRanks sorts scores by final score descending, then proposal id
// ascending, and numbers them 1..N.
func AssignRanks(scores []model.DeterministicScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].FinalScore != scores[j].FinalScore {
			return scores[i].FinalScore > scores[j].FinalScore
		}
		return scores[i].ProposalID < scores[j].ProposalID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

// Recommend maps a final score to its recommendation band.
func Recommend(finalScore int) model.RecommendationLevel {
	switch {
	case finalScore >= 80:
		return model.RecommendationHighly
	case finalScore >= 60:
		return model.RecommendationStandard
	case finalScore >= 40:
		return model.RecommendationReview
	default:
		return model.RecommendationNot
	}
}

func knockoutHint(cov coverage) string {
	missing := cov.Total - cov.Covered
	hint := fmt.Sprintf("Missing %d of %d mandatory requirements", missing, cov.Total)
	if len(cov.Missing) > 0 {
		hint += ": " + strings.Join(cov.Missing, ", ")
	}
	return hint
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
