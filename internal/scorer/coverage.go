package scorer

import (
	"github.com/sells-group/proposal-eval/internal/model"
)

// coverage is the mandatory-requirement match of one proposal.
type coverage struct {
	Total   int
	Covered int
	Missing []string
}

// Score returns 100 x covered/total, or 100 when nothing is mandatory.
func (c coverage) Score() float64 {
	if c.Total == 0 {
		return 100
	}
	return round2(100 * float64(c.Covered) / float64(c.Total))
}

// MissingFraction returns the share of mandatory items left uncovered.
func (c coverage) MissingFraction() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Total-c.Covered) / float64(c.Total)
}

// computeCoverage matches mandatory fee items against the proposal's fee
// lines (by id or normalized description) and mandatory scope items against
// its selected services (by id).
func computeCoverage(reqs model.RequirementSet, p model.Proposal) coverage {
	feeIDs := make(map[string]bool, len(p.FeeLineItems))
	feeDescs := make(map[string]bool, len(p.FeeLineItems))
	for _, li := range p.FeeLineItems {
		if li.ItemID != "" {
			feeIDs[li.ItemID] = true
		}
		if d := Normalize(li.Description); d != "" {
			feeDescs[d] = true
		}
	}
	services := make(map[string]bool, len(p.SelectedServices))
	for _, s := range p.SelectedServices {
		services[s.ServiceID] = true
	}

	var c coverage
	for _, item := range reqs.FeeItems {
		if !item.Mandatory {
			continue
		}
		c.Total++
		d := Normalize(item.Description)
		if feeIDs[item.ID] || (d != "" && feeDescs[d]) {
			c.Covered++
			continue
		}
		c.Missing = append(c.Missing, label(item.Description, item.ID))
	}
	for _, item := range reqs.ScopeItems {
		if !item.Mandatory {
			continue
		}
		c.Total++
		if services[item.ID] {
			c.Covered++
			continue
		}
		c.Missing = append(c.Missing, label(item.Description, item.ID))
	}
	return c
}

func label(description, id string) string {
	if description != "" {
		return description
	}
	return id
}
