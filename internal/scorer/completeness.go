package scorer

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/proposal-eval/internal/model"
)

// Completeness weights (sum = 1).
const (
	weightPrice      = 0.18
	weightTimeline   = 0.08
	weightScopeText  = 0.20
	weightTermsText  = 0.08
	weightFeeItems   = 0.22
	weightServices   = 0.12
	weightMilestones = 0.12

	// minScopeRunes is the length a scope text must exceed to count.
	minScopeRunes = 50
)

// dataCompleteness returns the weighted share of populated proposal fields,
// rounded to two decimals.
func dataCompleteness(p model.Proposal) float64 {
	total := 0.0
	if p.Price > 0 {
		total += weightPrice
	}
	if p.TimelineDays > 0 {
		total += weightTimeline
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.BodyText())) > minScopeRunes {
		total += weightScopeText
	}
	if strings.TrimSpace(p.TermsText) != "" {
		total += weightTermsText
	}
	if len(p.FeeLineItems) > 0 {
		total += weightFeeItems
	}
	if len(p.SelectedServices) > 0 {
		total += weightServices
	}
	if len(p.MilestoneAdjustments) > 0 {
		total += weightMilestones
	}
	return round2(total)
}
