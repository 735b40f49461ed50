package aggregate

import (
	"sort"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

// Deduplicate keeps one input per invite: the highest version, then the
// latest submission, then the smallest proposal id. Output is ordered by
// proposal id.
func Deduplicate(inputs []model.EvaluationInput) []model.EvaluationInput {
	best := make(map[string]model.EvaluationInput, len(inputs))
	for _, in := range inputs {
		cur, ok := best[in.Invite.ID]
		if !ok || supersedes(in.Proposal, cur.Proposal) {
			best[in.Invite.ID] = in
		}
	}

	out := make([]model.EvaluationInput, 0, len(best))
	for _, in := range best {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Proposal.ID < out[j].Proposal.ID })
	return out
}

// supersedes reports whether a ranks ahead of b for the same invite.
func supersedes(a, b model.Proposal) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.After(b.SubmittedAt)
	}
	return a.ID < b.ID
}

// ValidateBatch requires every input of a multi-proposal batch to answer the
// same RFP and to come from the same advisor type.
func ValidateBatch(inputs []model.EvaluationInput) error {
	if len(inputs) < 2 {
		return nil
	}
	first := inputs[0]
	for _, in := range inputs[1:] {
		if in.Invite.RFPID != first.Invite.RFPID {
			return evalerr.New(evalerr.KindScopeMismatch,
				"proposals %s and %s answer different RFPs (%s, %s)",
				first.Proposal.ID, in.Proposal.ID, first.Invite.RFPID, in.Invite.RFPID)
		}
		if in.Advisor.Type != first.Advisor.Type {
			return evalerr.New(evalerr.KindScopeMismatch,
				"proposals %s and %s come from different advisor types (%s, %s)",
				first.Proposal.ID, in.Proposal.ID, first.Advisor.Type, in.Advisor.Type)
		}
	}
	return nil
}
