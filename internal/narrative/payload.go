package narrative

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/model"
)

// Payload is everything the generator sees. It is built from an explicit
// field list; nothing else from the stored records reaches a provider.
type Payload struct {
	Mode         model.EvaluationMode `json:"mode"`
	Project      ProjectInfo          `json:"project"`
	Requirements RequirementInfo      `json:"requirements"`
	Proposals    []ProposalInfo       `json:"proposals"`
}

// ProjectInfo is the project metadata shown to the generator.
type ProjectInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DeclaredType string  `json:"declaredType,omitempty"`
	Budget       float64 `json:"budget,omitempty"`
	LargeScale   bool    `json:"largeScale"`
}

// RequirementInfo is the requirement set shown to the generator.
type RequirementInfo struct {
	FeeItems   []model.FeeItem   `json:"feeItems"`
	ScopeItems []model.ScopeItem `json:"scopeItems"`
}

// ProposalInfo is one proposal's declared content plus its locked scores.
// Price is only present in COMPARE payloads.
type ProposalInfo struct {
	ProposalID           string                      `json:"proposalId"`
	VendorName           string                      `json:"vendorName"`
	AdvisorType          string                      `json:"advisorType,omitempty"`
	Price                *float64                    `json:"price,omitempty"`
	TimelineDays         int                         `json:"timelineDays,omitempty"`
	Scope                string                      `json:"scope"`
	Terms                string                      `json:"terms,omitempty"`
	FeeLineItems         []model.FeeLineItem         `json:"feeLineItems"`
	SelectedServices     []model.SelectedService     `json:"selectedServices"`
	MilestoneAdjustments []model.MilestoneAdjustment `json:"milestoneAdjustments,omitempty"`
	Version              int                         `json:"version"`
	LockedScores         LockedScores                `json:"lockedScores"`
}

// LockedScores is the deterministic envelope the generator must explain.
type LockedScores struct {
	CoverageScore       float64                   `json:"coverageScore"`
	PriceScore          *float64                  `json:"priceScore,omitempty"`
	DataCompleteness    float64                   `json:"dataCompleteness"`
	FinalScore          int                       `json:"finalScore"`
	Rank                int                       `json:"rank"`
	RecommendationLevel model.RecommendationLevel `json:"recommendationLevel"`
	KnockoutTriggered   bool                      `json:"knockoutTriggered"`
	KnockoutReasonHint  string                    `json:"knockoutReasonHint,omitempty"`
	MissingMandatory    []string                  `json:"missingMandatory,omitempty"`
}

// BuildPayload assembles the payload for batch. Proposals follow the order
// of scores, which is rank order.
func BuildPayload(batch model.Batch, scores []model.DeterministicScore) (*Payload, error) {
	mode := batch.Mode()
	byID := make(map[string]model.EvaluationInput, len(batch.Inputs))
	for _, in := range batch.Inputs {
		byID[in.Proposal.ID] = in
	}
	if len(scores) != len(batch.Inputs) {
		return nil, eris.Errorf("narrative: %d scores for %d proposals", len(scores), len(batch.Inputs))
	}

	p := &Payload{
		Mode: mode,
		Project: ProjectInfo{
			ID:           batch.Project.ID,
			Name:         batch.Project.Name,
			DeclaredType: batch.Project.DeclaredType,
			Budget:       batch.Project.Budget,
			LargeScale:   batch.Project.LargeScale,
		},
		Requirements: RequirementInfo{
			FeeItems:   nonNil(batch.Requirements.FeeItems),
			ScopeItems: nonNil(batch.Requirements.ScopeItems),
		},
		Proposals: make([]ProposalInfo, 0, len(scores)),
	}

	for _, s := range scores {
		in, ok := byID[s.ProposalID]
		if !ok {
			return nil, eris.Errorf("narrative: score for unknown proposal %s", s.ProposalID)
		}
		info := ProposalInfo{
			ProposalID:           in.Proposal.ID,
			VendorName:           in.Advisor.Name,
			AdvisorType:          in.Advisor.Type,
			TimelineDays:         in.Proposal.TimelineDays,
			Scope:                in.Proposal.BodyText(),
			Terms:                in.Proposal.TermsText,
			FeeLineItems:         nonNil(in.Proposal.FeeLineItems),
			SelectedServices:     nonNil(in.Proposal.SelectedServices),
			MilestoneAdjustments: in.Proposal.MilestoneAdjustments,
			Version:              in.Proposal.Version,
			LockedScores: LockedScores{
				CoverageScore:       s.CoverageScore,
				PriceScore:          s.PriceScore,
				DataCompleteness:    s.DataCompleteness,
				FinalScore:          s.FinalScore,
				Rank:                s.Rank,
				RecommendationLevel: s.RecommendationLevel,
				KnockoutTriggered:   s.KnockoutTriggered,
				KnockoutReasonHint:  s.KnockoutReasonHint,
				MissingMandatory:    s.MissingMandatory,
			},
		}
		if mode == model.ModeCompare && in.Proposal.Price > 0 {
			price := in.Proposal.Price
			info.Price = &price
		}
		p.Proposals = append(p.Proposals, info)
	}

	return p, nil
}

// Encode renders the payload as indented JSON.
func (p *Payload) Encode() (string, error) {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "narrative: encode payload")
	}
	return string(b), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
