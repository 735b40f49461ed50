package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/proposal-eval/internal/model"
)

// MemoryStore implements Store in process memory. It backs the "memory"
// driver and orchestrator tests.
type MemoryStore struct {
	mu           sync.RWMutex
	projects     map[string]model.Project
	advisors     map[string]model.Advisor
	invites      map[string]model.Invite
	requirements map[string]model.RequirementSet
	proposals    map[string]model.Proposal
	results      map[resultKey]model.StoredResult

	// SaveErr, when set, fails SaveResults without writing anything.
	SaveErr error
}

type resultKey struct {
	proposalID string
	batchKey   string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		projects:     make(map[string]model.Project),
		advisors:     make(map[string]model.Advisor),
		invites:      make(map[string]model.Invite),
		requirements: make(map[string]model.RequirementSet),
		proposals:    make(map[string]model.Proposal),
		results:      make(map[resultKey]model.StoredResult),
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetProject(_ context.Context, projectID string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) ListProposals(_ context.Context, projectID string, proposalIDs []string) ([]model.ProposalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := idFilter(proposalIDs)
	var records []model.ProposalRecord
	for _, p := range m.proposals {
		if p.ProjectID != projectID || (want != nil && !want[p.ID]) {
			continue
		}
		rec := model.ProposalRecord{Proposal: p}
		if a, ok := m.advisors[p.AdvisorID]; ok {
			rec.Advisor = &a
		}
		if inv, ok := m.invites[p.InviteID]; ok {
			rec.Invite = &inv
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Proposal.ID < records[j].Proposal.ID })
	return records, nil
}

func (m *MemoryStore) GetRequirementSet(_ context.Context, rfpID string) (*model.RequirementSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.requirements[rfpID]
	if !ok {
		return nil, nil
	}
	return &rs, nil
}

func (m *MemoryStore) ListResults(_ context.Context, projectID, batchKey string) ([]model.StoredResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []model.StoredResult
	for k, r := range m.results {
		if k.batchKey == batchKey && r.ProjectID == projectID {
			results = append(results, r)
		}
	}
	sortResults(results)
	return results, nil
}

// SaveResults upserts every row under one lock.
func (m *MemoryStore) SaveResults(_ context.Context, results []model.StoredResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		m.results[resultKey{results[i].ProposalID, results[i].BatchKey}] = results[i]
	}
	return nil
}

func (m *MemoryStore) Seed(_ context.Context, ds model.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ds.Projects {
		m.projects[p.ID] = p
	}
	for _, a := range ds.Advisors {
		m.advisors[a.ID] = a
	}
	for _, inv := range ds.Invites {
		m.invites[inv.ID] = inv
	}
	for _, rs := range ds.RequirementSets {
		m.requirements[rs.RFPID] = rs
	}
	for _, p := range ds.Proposals {
		m.proposals[p.ID] = p
	}
	return nil
}

// ResultCount returns the number of stored evaluation rows.
func (m *MemoryStore) ResultCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}
