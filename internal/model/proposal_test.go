package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProposalStatus_Evaluable(t *testing.T) {
	tests := []struct {
		status ProposalStatus
		want   bool
	}{
		{ProposalStatusDraft, false},
		{ProposalStatusWithdrawn, false},
		{"", false},
		{ProposalStatusSubmitted, true},
		{ProposalStatusResubmitted, true},
		{ProposalStatusShortlisted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Evaluable())
		})
	}
}

func TestInviteStatus_Closed(t *testing.T) {
	assert.True(t, InviteStatusDeclined.Closed())
	assert.True(t, InviteStatusExpired.Closed())
	assert.False(t, InviteStatusAccepted.Closed())
	assert.False(t, InviteStatusPending.Closed())
}

func TestProposal_BodyText(t *testing.T) {
	p := Proposal{ScopeText: "declared scope"}
	assert.Equal(t, "declared scope", p.BodyText())

	p.ExtractedText = "text from the attached document"
	assert.Equal(t, "text from the attached document", p.BodyText())
}

func TestBatch_Mode(t *testing.T) {
	b := Batch{Inputs: []EvaluationInput{{Proposal: Proposal{ID: "p1"}}}}
	assert.Equal(t, ModeSingle, b.Mode())

	b.Inputs = append(b.Inputs, EvaluationInput{Proposal: Proposal{ID: "p2"}})
	assert.Equal(t, ModeCompare, b.Mode())
	assert.Equal(t, []string{"p1", "p2"}, b.ProposalIDs())
}

func TestRequirementSet_MandatoryCount(t *testing.T) {
	rs := RequirementSet{
		FeeItems:   []FeeItem{{ID: "f1", Mandatory: true}, {ID: "f2"}},
		ScopeItems: []ScopeItem{{ID: "s1", Mandatory: true}, {ID: "s2", Mandatory: true}},
	}
	assert.Equal(t, 3, rs.MandatoryCount())
	assert.Equal(t, 0, RequirementSet{}.MandatoryCount())
}

func TestProject_DetectType(t *testing.T) {
	assert.Equal(t, ProjectTypeLargeScale, Project{LargeScale: true}.DetectType(0))
	assert.Equal(t, ProjectTypeLargeScale, Project{Budget: 6_000_000}.DetectType(5_000_000))
	assert.Equal(t, ProjectTypeStandard, Project{Budget: 6_000_000}.DetectType(0))
	assert.Equal(t, ProjectTypeStandard, Project{Budget: 100_000}.DetectType(5_000_000))
}
