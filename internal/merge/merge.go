// Package merge combines the locked scores with the generated narrative
// into the ranked proposals returned to callers.
package merge

import (
	"strings"

	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/narrative"
)

// Merge builds one RankedProposal per score, in score order. Scores, rank,
// completeness, recommendation and knockout come from scores only; the
// narrative contributes text. vendors maps proposal id to vendor name.
func Merge(scores []model.DeterministicScore, result narrative.Result, vendors map[string]string) []model.RankedProposal {
	compare := result != nil && result.Mode() == model.ModeCompare

	out := make([]model.RankedProposal, 0, len(scores))
	for _, s := range scores {
		var n narrative.ProposalNarrative
		if result != nil {
			n, _ = result.For(s.ProposalID)
		}
		out = append(out, mergeOne(s, n, vendors[s.ProposalID], compare))
	}
	return out
}

func mergeOne(s model.DeterministicScore, n narrative.ProposalNarrative, vendor string, compare bool) model.RankedProposal {
	rp := model.RankedProposal{
		ProposalID:          s.ProposalID,
		VendorName:          vendor,
		FinalScore:          s.FinalScore,
		Rank:                s.Rank,
		DataCompleteness:    s.DataCompleteness,
		RecommendationLevel: s.RecommendationLevel,
		IndividualAnalysis: model.IndividualAnalysis{
			RequirementsAlignment:  text(n.RequirementsAlignment),
			TimelineAssessment:     text(n.TimelineAssessment),
			ExperienceAssessment:   text(n.ExperienceAssessment),
			ScopeQuality:           text(n.ScopeQuality),
			FeeStructureAssessment: text(n.FeeStructureAssessment),
			PaymentTermsAssessment: text(n.PaymentTermsAssessment),
			Strengths:              list(n.Strengths),
			Weaknesses:             list(n.Weaknesses),
			MissingRequirements:    list(n.MissingRequirements),
			ExtraOfferings:         list(n.ExtraOfferings),
		},
		Flags: model.Flags{
			RedFlags:          list(n.RedFlags),
			GreenFlags:        list(n.GreenFlags),
			KnockoutTriggered: s.KnockoutTriggered,
			KnockoutReason:    KnockoutReason(s, n),
		},
	}

	if compare {
		price := text(n.PriceAssessment)
		notes := text(n.ComparativeNotes)
		rp.IndividualAnalysis.PriceAssessment = &price
		rp.ComparativeNotes = &notes
	}
	return rp
}

// KnockoutReason is nil without a knockout. With one, it is the generated
// reason when non-empty and the generator did not claim a different
// knockout outcome, else the deterministic hint.
func KnockoutReason(s model.DeterministicScore, n narrative.ProposalNarrative) *string {
	if !s.KnockoutTriggered {
		return nil
	}
	reason := strings.TrimSpace(n.KnockoutReason)
	if reason == "" || (n.KnockoutTriggered != nil && *n.KnockoutTriggered != s.KnockoutTriggered) {
		reason = s.KnockoutReasonHint
	}
	return &reason
}

func text(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.NotProvided
	}
	return s
}

func list(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
