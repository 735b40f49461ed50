package narrative

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

// ProposalNarrative is the generator's text for one proposal. Empty strings
// and nil lists mean the generator left the field out.
type ProposalNarrative struct {
	ProposalID             string
	RequirementsAlignment  string
	PriceAssessment        string
	TimelineAssessment     string
	ExperienceAssessment   string
	ScopeQuality           string
	FeeStructureAssessment string
	PaymentTermsAssessment string
	Strengths              []string
	Weaknesses             []string
	MissingRequirements    []string
	ExtraOfferings         []string
	RedFlags               []string
	GreenFlags             []string
	KnockoutReason         string
	ComparativeNotes       string

	// KnockoutTriggered is the generator's echo of the knockout outcome,
	// nil when it did not state one.
	KnockoutTriggered *bool
}

// Result is validated generator output. It is either a SingleNarrative or a
// CompareNarrative.
type Result interface {
	Mode() model.EvaluationMode
	// For returns the narrative of one proposal.
	For(proposalID string) (ProposalNarrative, bool)
	// Market returns the batch-level market context, "" in SINGLE.
	Market() string
}

// SingleNarrative is the output for a one-proposal batch. It never carries
// price, comparative or market commentary.
type SingleNarrative struct {
	Proposal ProposalNarrative
}

func (s *SingleNarrative) Mode() model.EvaluationMode { return model.ModeSingle }
func (s *SingleNarrative) Market() string             { return "" }

func (s *SingleNarrative) For(id string) (ProposalNarrative, bool) {
	if s.Proposal.ProposalID != id {
		return ProposalNarrative{}, false
	}
	return s.Proposal, true
}

// CompareNarrative is the output for a batch of two or more proposals.
type CompareNarrative struct {
	MarketContext string
	Proposals     map[string]ProposalNarrative
}

func (c *CompareNarrative) Mode() model.EvaluationMode { return model.ModeCompare }
func (c *CompareNarrative) Market() string             { return c.MarketContext }

func (c *CompareNarrative) For(id string) (ProposalNarrative, bool) {
	p, ok := c.Proposals[id]
	return p, ok
}

type rawOutput struct {
	MarketContext *string       `json:"marketContext"`
	Proposals     []rawProposal `json:"proposals"`
}

type rawProposal struct {
	ProposalID             string   `json:"proposalId"`
	RequirementsAlignment  string   `json:"requirementsAlignment"`
	PriceAssessment        *string  `json:"priceAssessment"`
	TimelineAssessment     string   `json:"timelineAssessment"`
	ExperienceAssessment   string   `json:"experienceAssessment"`
	ScopeQuality           string   `json:"scopeQuality"`
	FeeStructureAssessment string   `json:"feeStructureAssessment"`
	PaymentTermsAssessment string   `json:"paymentTermsAssessment"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	MissingRequirements    []string `json:"missingRequirements"`
	ExtraOfferings         []string `json:"extraOfferings"`
	RedFlags               []string `json:"redFlags"`
	GreenFlags             []string `json:"greenFlags"`
	KnockoutTriggered      *bool    `json:"knockoutTriggered"`
	KnockoutReason         string   `json:"knockoutReason"`
	ComparativeNotes       *string  `json:"comparativeNotes"`
}

// Parse strips code fences from text, decodes it and checks it against the
// batch: every id in ids must appear exactly once and no other id may
// appear. SINGLE output carrying compare-only fields is rejected. Keys the
// generator adds beyond the known fields are ignored, including echoed
// scores.
func Parse(mode model.EvaluationMode, ids []string, text string) (Result, error) {
	body := cleanJSON(text)
	if body == "" {
		return nil, malformed("empty response")
	}

	out, err := decode(mode, body)
	if err != nil {
		return nil, err
	}

	if len(out.Proposals) == 0 {
		return nil, malformed("no proposals in response")
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	seen := make(map[string]bool, len(out.Proposals))
	narratives := make(map[string]ProposalNarrative, len(out.Proposals))
	for _, rp := range out.Proposals {
		id := strings.TrimSpace(rp.ProposalID)
		switch {
		case id == "":
			return nil, malformed("proposal entry without proposalId")
		case !want[id]:
			return nil, malformed("unknown proposal %q", id)
		case seen[id]:
			return nil, malformed("proposal %q appears more than once", id)
		}
		seen[id] = true
		narratives[id] = rp.narrative(id)
	}
	for _, id := range ids {
		if !seen[id] {
			return nil, malformed("proposal %q missing from response", id)
		}
	}

	if mode == model.ModeSingle {
		if len(ids) != 1 {
			return nil, malformed("single evaluation with %d proposals", len(ids))
		}
		if present(out.MarketContext) {
			return nil, malformed("single evaluation carries marketContext")
		}
		rp := out.Proposals[0]
		if present(rp.PriceAssessment) || present(rp.ComparativeNotes) {
			return nil, malformed("single evaluation carries comparative fields")
		}
		return &SingleNarrative{Proposal: narratives[ids[0]]}, nil
	}

	c := &CompareNarrative{Proposals: narratives}
	if out.MarketContext != nil {
		c.MarketContext = strings.TrimSpace(*out.MarketContext)
	}
	return c, nil
}

// decode reads the response. A SINGLE response may also be a bare proposal
// object instead of a one-element proposals list.
func decode(mode model.EvaluationMode, body string) (*rawOutput, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return nil, evalerr.Wrap(err, evalerr.KindMalformedProviderOutput, "response is not a JSON object")
	}

	var out rawOutput
	if _, ok := keys["proposals"]; !ok && mode == model.ModeSingle {
		var rp rawProposal
		if err := decodeInto(body, &rp); err != nil {
			return nil, err
		}
		out.Proposals = []rawProposal{rp}
		if mc, ok := keys["marketContext"]; ok {
			if err := json.Unmarshal(mc, &out.MarketContext); err != nil {
				return nil, evalerr.Wrap(err, evalerr.KindMalformedProviderOutput, "decode marketContext")
			}
		}
		return &out, nil
	}

	if err := decodeInto(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeInto(body string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(v); err != nil {
		return evalerr.Wrap(err, evalerr.KindMalformedProviderOutput, "decode response")
	}
	return nil
}

func (rp rawProposal) narrative(id string) ProposalNarrative {
	n := ProposalNarrative{
		ProposalID:             id,
		RequirementsAlignment:  strings.TrimSpace(rp.RequirementsAlignment),
		TimelineAssessment:     strings.TrimSpace(rp.TimelineAssessment),
		ExperienceAssessment:   strings.TrimSpace(rp.ExperienceAssessment),
		ScopeQuality:           strings.TrimSpace(rp.ScopeQuality),
		FeeStructureAssessment: strings.TrimSpace(rp.FeeStructureAssessment),
		PaymentTermsAssessment: strings.TrimSpace(rp.PaymentTermsAssessment),
		Strengths:              cleanList(rp.Strengths),
		Weaknesses:             cleanList(rp.Weaknesses),
		MissingRequirements:    cleanList(rp.MissingRequirements),
		ExtraOfferings:         cleanList(rp.ExtraOfferings),
		RedFlags:               cleanList(rp.RedFlags),
		GreenFlags:             cleanList(rp.GreenFlags),
		KnockoutTriggered:      rp.KnockoutTriggered,
		KnockoutReason:         strings.TrimSpace(rp.KnockoutReason),
	}
	if rp.PriceAssessment != nil {
		n.PriceAssessment = strings.TrimSpace(*rp.PriceAssessment)
	}
	if rp.ComparativeNotes != nil {
		n.ComparativeNotes = strings.TrimSpace(*rp.ComparativeNotes)
	}
	return n
}

// cleanList drops blank entries. A nil input stays nil.
func cleanList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// cleanJSON strips markdown fences and surrounding prose from a JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func malformed(format string, args ...any) error {
	return evalerr.New(evalerr.KindMalformedProviderOutput, format, args...)
}
