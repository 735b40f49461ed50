package narrative

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/provider"
)

func testBatch(n int) model.Batch {
	b := model.Batch{
		Project: model.Project{ID: "proj-1", Name: "Annual audit", DeclaredType: "audit", Budget: 250000},
		Requirements: model.RequirementSet{
			RFPID:      "rfp-1",
			FeeItems:   []model.FeeItem{{ID: "f1", Description: "Audit fee", Mandatory: true}},
			ScopeItems: []model.ScopeItem{{ID: "s1", Description: "Tax return preparation", Mandatory: true}},
		},
	}
	ids := []string{"p-a", "p-b", "p-c"}
	prices := []float64{100000, 150000, 120000}
	for i := 0; i < n; i++ {
		b.Inputs = append(b.Inputs, model.EvaluationInput{
			Proposal: model.Proposal{
				ID:           ids[i],
				ProjectID:    "proj-1",
				InviteID:     "inv-" + ids[i],
				AdvisorID:    "adv-" + ids[i],
				Price:        prices[i],
				TimelineDays: 30,
				ScopeText:    "Full audit and tax return preparation.",
				TermsText:    "Net 30",
				FeeLineItems: []model.FeeLineItem{{ItemID: "f1", Description: "Audit fee", Amount: prices[i]}},
				Status:       model.ProposalStatusSubmitted,
				Version:      1,
				DocumentPath: "/secret/path.pdf",
			},
			Advisor: model.Advisor{ID: "adv-" + ids[i], Name: "Vendor " + ids[i], Type: "cpa"},
			Invite:  model.Invite{ID: "inv-" + ids[i], RFPID: "rfp-1", AdvisorID: "adv-" + ids[i], Status: model.InviteStatusAccepted},
		})
	}
	return b
}

func testScores(b model.Batch) []model.DeterministicScore {
	scores := make([]model.DeterministicScore, len(b.Inputs))
	for i, in := range b.Inputs {
		scores[i] = model.DeterministicScore{
			ProposalID:          in.Proposal.ID,
			CoverageScore:       100,
			DataCompleteness:    1,
			FinalScore:          100 - i*10,
			Rank:                i + 1,
			RecommendationLevel: model.RecommendationHighly,
		}
	}
	return scores
}

// fakeProvider answers with text or err, or blocks until its context ends
// when block is set.
type fakeProvider struct {
	mu      sync.Mutex
	text    string
	err     error
	block   bool
	delay   time.Duration
	calls   int
	system  string
	payload string
	usage   cost.Usage
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) Model() string        { return "fake-model" }
func (f *fakeProvider) Temperature() float64 { return 0.2 }

func (f *fakeProvider) Submit(ctx context.Context, system, payload string) (*provider.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.system = system
	f.payload = payload
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Completion{Text: f.text, Model: "fake-model", Usage: f.usage}, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
