package cost

import "github.com/sells-group/proposal-eval/internal/config"

// Usage is the token consumption of one provider call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Calculator computes the cost of provider calls from configured rates.
type Calculator struct {
	rates map[string]config.ModelPricing
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	rates := make(map[string]config.ModelPricing, len(pricing.Models))
	for _, m := range pricing.Models {
		rates[m.Model] = m
	}
	return &Calculator{rates: rates}
}

// Known reports whether rates are configured for model.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates[model]
	return ok
}

// Estimate returns the USD cost of usage on model, or 0 for unpriced models.
func (c *Calculator) Estimate(model string, u Usage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWriteTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}
