package model

// Dataset is a bundle of procurement records loaded into a store in one
// call, e.g. from a fixture file.
type Dataset struct {
	Projects        []Project        `json:"projects"`
	Advisors        []Advisor        `json:"advisors"`
	Invites         []Invite         `json:"invites"`
	RequirementSets []RequirementSet `json:"requirementSets"`
	Proposals       []Proposal       `json:"proposals"`
}
