package scorer

import "github.com/sells-group/proposal-eval/internal/model"

// priceScores linearly normalizes positive prices across the batch: the
// cheapest scores 100, the priciest 0, and every price scores 100 when all
// are equal. Inputs without a positive price get no entry.
func priceScores(inputs []model.EvaluationInput) map[string]float64 {
	minP, maxP, ok := priceRange(inputs)
	scores := make(map[string]float64, len(inputs))
	if !ok {
		return scores
	}
	for _, in := range inputs {
		p := in.Proposal.Price
		if p <= 0 {
			continue
		}
		if maxP == minP {
			scores[in.Proposal.ID] = 100
			continue
		}
		scores[in.Proposal.ID] = round2(100 * (maxP - p) / (maxP - minP))
	}
	return scores
}

func priceRange(inputs []model.EvaluationInput) (minP, maxP float64, ok bool) {
	for _, in := range inputs {
		p := in.Proposal.Price
		if p <= 0 {
			continue
		}
		if !ok || p < minP {
			minP = p
		}
		if !ok || p > maxP {
			maxP = p
		}
		ok = true
	}
	return minP, maxP, ok
}

// PriceBenchmark returns the lowest positive price of the batch, or nil when
// no input declares one.
func PriceBenchmark(inputs []model.EvaluationInput) *float64 {
	minP, _, ok := priceRange(inputs)
	if !ok {
		return nil
	}
	return &minP
}
