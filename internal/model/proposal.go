package model

import "time"

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalStatusDraft       ProposalStatus = "draft"
	ProposalStatusSubmitted   ProposalStatus = "submitted"
	ProposalStatusResubmitted ProposalStatus = "resubmitted"
	ProposalStatusUnderReview ProposalStatus = "under_review"
	ProposalStatusShortlisted ProposalStatus = "shortlisted"
	ProposalStatusAccepted    ProposalStatus = "accepted"
	ProposalStatusRejected    ProposalStatus = "rejected"
	ProposalStatusWithdrawn   ProposalStatus = "withdrawn"
)

// Evaluable reports whether a proposal in this status can be scored.
func (s ProposalStatus) Evaluable() bool {
	return s != ProposalStatusDraft && s != ProposalStatusWithdrawn && s != ""
}

// InviteStatus is the state of a requirement invite sent to an advisor.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
	InviteStatusExpired  InviteStatus = "expired"
)

// Closed reports whether the invite no longer admits proposals.
func (s InviteStatus) Closed() bool {
	return s == InviteStatusDeclined || s == InviteStatusExpired
}

// FeeLineItem is a priced fee line declared by a proposal.
type FeeLineItem struct {
	ItemID      string  `json:"itemId,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// SelectedService is a scope item a proposal commits to deliver.
type SelectedService struct {
	ServiceID string `json:"serviceId"`
	Name      string `json:"name,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// MilestoneAdjustment is a proposed change to the RFP payment schedule.
type MilestoneAdjustment struct {
	Milestone  string  `json:"milestone"`
	Percentage float64 `json:"percentage"`
	Notes      string  `json:"notes,omitempty"`
}

// Proposal is a vendor's answer to a requirement invite.
type Proposal struct {
	ID                   string                `json:"id"`
	ProjectID            string                `json:"projectId"`
	InviteID             string                `json:"inviteId"`
	AdvisorID            string                `json:"advisorId"`
	Price                float64               `json:"price"`
	TimelineDays         int                   `json:"timelineDays"`
	ScopeText            string                `json:"scopeText"`
	TermsText            string                `json:"termsText"`
	FeeLineItems         []FeeLineItem         `json:"feeLineItems"`
	SelectedServices     []SelectedService     `json:"selectedServices"`
	MilestoneAdjustments []MilestoneAdjustment `json:"milestoneAdjustments"`
	Status               ProposalStatus        `json:"status"`
	SubmittedAt          time.Time             `json:"submittedAt"`
	Version              int                   `json:"version"`
	DocumentPath         string                `json:"documentPath,omitempty"`
	DocumentURL          string                `json:"documentUrl,omitempty"`

	// ExtractedText is filled by the text-extraction step and never loaded
	// from the store.
	ExtractedText string `json:"-"`
}

// BodyText returns the extracted document text when present, else the
// declared scope text.
func (p Proposal) BodyText() string {
	if p.ExtractedText != "" {
		return p.ExtractedText
	}
	return p.ScopeText
}

// Advisor is the vendor behind a proposal.
type Advisor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Invite is a requirement invite: one RFP sent to one advisor.
type Invite struct {
	ID        string       `json:"id"`
	RFPID     string       `json:"rfpId"`
	AdvisorID string       `json:"advisorId"`
	Status    InviteStatus `json:"status"`
}

// ProposalRecord is a proposal joined with its advisor and invite as loaded
// from the store. Advisor or Invite is nil when the link is missing.
type ProposalRecord struct {
	Proposal Proposal `json:"proposal"`
	Advisor  *Advisor `json:"advisor,omitempty"`
	Invite   *Invite  `json:"invite,omitempty"`
}

// EvaluationInput is the unit the scorer operates on.
type EvaluationInput struct {
	Proposal Proposal `json:"proposal"`
	Advisor  Advisor  `json:"advisor"`
	Invite   Invite   `json:"invite"`
}

// Batch is the aggregated, deduplicated and validated input of one evaluation.
type Batch struct {
	Project      Project           `json:"project"`
	Inputs       []EvaluationInput `json:"inputs"`
	Requirements RequirementSet    `json:"requirements"`
}

// Mode returns COMPARE when the batch holds two or more inputs.
func (b Batch) Mode() EvaluationMode {
	if len(b.Inputs) >= 2 {
		return ModeCompare
	}
	return ModeSingle
}

// ProposalIDs returns the proposal ids of the batch in input order.
func (b Batch) ProposalIDs() []string {
	ids := make([]string, len(b.Inputs))
	for i, in := range b.Inputs {
		ids[i] = in.Proposal.ID
	}
	return ids
}
