package model

// FeeItem is a fee line the RFP asks vendors to price.
type FeeItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Mandatory   bool   `json:"mandatory"`
}

// ScopeItem is a service the RFP asks vendors to cover.
type ScopeItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Mandatory   bool   `json:"mandatory"`
}

// RequirementSet is the requirements of one RFP, shared by every proposal
// answering it.
type RequirementSet struct {
	RFPID      string      `json:"rfpId"`
	FeeItems   []FeeItem   `json:"feeItems"`
	ScopeItems []ScopeItem `json:"scopeItems"`
}

// MandatoryCount returns the number of mandatory fee and scope items.
func (r RequirementSet) MandatoryCount() int {
	n := 0
	for _, f := range r.FeeItems {
		if f.Mandatory {
			n++
		}
	}
	for _, s := range r.ScopeItems {
		if s.Mandatory {
			n++
		}
	}
	return n
}
