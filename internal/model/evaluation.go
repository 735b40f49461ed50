package model

import "time"

// EvaluationMode selects single-proposal or batch-comparison evaluation.
type EvaluationMode string

const (
	ModeSingle  EvaluationMode = "SINGLE"
	ModeCompare EvaluationMode = "COMPARE"
)

// RecommendationLevel is the banded verdict derived from the final score.
type RecommendationLevel string

const (
	RecommendationHighly   RecommendationLevel = "Highly Recommended"
	RecommendationStandard RecommendationLevel = "Recommended"
	RecommendationReview   RecommendationLevel = "Review Required"
	RecommendationNot      RecommendationLevel = "Not Recommended"
)

// NotProvided replaces any narrative field the generator omitted.
const NotProvided = "Not provided"

// DeterministicScore is the locked envelope computed by the scorer. It is
// passed by value and never modified once returned.
type DeterministicScore struct {
	ProposalID          string              `json:"proposalId"`
	CoverageScore       float64             `json:"coverageScore"`
	PriceScore          *float64            `json:"priceScore"`
	DataCompleteness    float64             `json:"dataCompleteness"`
	FinalScore          int                 `json:"finalScore"`
	Rank                int                 `json:"rank"`
	KnockoutTriggered   bool                `json:"knockoutTriggered"`
	KnockoutReasonHint  string              `json:"knockoutReasonHint,omitempty"`
	RecommendationLevel RecommendationLevel `json:"recommendationLevel"`
	MandatoryTotal      int                 `json:"mandatoryTotal"`
	MandatoryCovered    int                 `json:"mandatoryCovered"`
	MissingMandatory    []string            `json:"missingMandatory,omitempty"`
}

// IndividualAnalysis is the per-proposal narrative.
type IndividualAnalysis struct {
	RequirementsAlignment  string   `json:"requirementsAlignment"`
	PriceAssessment        *string  `json:"priceAssessment,omitempty"`
	TimelineAssessment     string   `json:"timelineAssessment"`
	ExperienceAssessment   string   `json:"experienceAssessment"`
	ScopeQuality           string   `json:"scopeQuality"`
	FeeStructureAssessment string   `json:"feeStructureAssessment,omitempty"`
	PaymentTermsAssessment string   `json:"paymentTermsAssessment,omitempty"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	MissingRequirements    []string `json:"missingRequirements"`
	ExtraOfferings         []string `json:"extraOfferings"`
}

// Flags carries red/green flags and the knockout outcome.
type Flags struct {
	RedFlags          []string `json:"redFlags"`
	GreenFlags        []string `json:"greenFlags"`
	KnockoutTriggered bool     `json:"knockoutTriggered"`
	KnockoutReason    *string  `json:"knockoutReason"`
}

// RankedProposal is the merged evaluation of one proposal.
type RankedProposal struct {
	ProposalID          string              `json:"proposalId"`
	VendorName          string              `json:"vendorName"`
	FinalScore          int                 `json:"finalScore"`
	Rank                int                 `json:"rank"`
	DataCompleteness    float64             `json:"dataCompleteness"`
	RecommendationLevel RecommendationLevel `json:"recommendationLevel"`
	IndividualAnalysis  IndividualAnalysis  `json:"individualAnalysis"`
	Flags               Flags               `json:"flags"`
	ComparativeNotes    *string             `json:"comparativeNotes"`
}

// BatchSummary describes the evaluated batch as a whole.
type BatchSummary struct {
	TotalProposals      int            `json:"totalProposals"`
	EvaluationMode      EvaluationMode `json:"evaluationMode"`
	ProjectTypeDetected ProjectType    `json:"projectTypeDetected"`
	PriceBenchmarkUsed  *float64       `json:"priceBenchmarkUsed"`
	MarketContext       string         `json:"marketContext,omitempty"`
}

// EvaluationResponse is returned by an evaluation request.
type EvaluationResponse struct {
	BatchSummary    BatchSummary     `json:"batchSummary"`
	RankedProposals []RankedProposal `json:"rankedProposals"`
}

// EvaluationRequest asks for the proposals of a project to be evaluated.
// An empty ProposalIDs targets every evaluable proposal of the project.
type EvaluationRequest struct {
	ProjectID       string   `json:"projectId"`
	ProposalIDs     []string `json:"proposalIds,omitempty"`
	ForceReevaluate bool     `json:"forceReevaluate,omitempty"`
}

// ResultStatus is the persistence state of an evaluation row.
type ResultStatus string

const (
	ResultStatusPending   ResultStatus = "pending"
	ResultStatusCompleted ResultStatus = "completed"
)

// ProviderMetadata records which provider produced the narrative.
type ProviderMetadata struct {
	ProviderName     string  `json:"providerName"`
	ModelID          string  `json:"modelId"`
	Temperature      float64 `json:"temperature"`
	LatencyMs        int64   `json:"latencyMs"`
	InputTokens      int64   `json:"inputTokens,omitempty"`
	OutputTokens     int64   `json:"outputTokens,omitempty"`
	EstimatedCostUSD float64 `json:"estimatedCostUsd,omitempty"`
}

// StoredResult is one persisted evaluation row.
type StoredResult struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"projectId"`
	ProposalID  string           `json:"proposalId"`
	BatchKey    string           `json:"batchKey"`
	Mode        EvaluationMode   `json:"mode"`
	Result      RankedProposal   `json:"result"`
	Summary     BatchSummary     `json:"summary"`
	FinalScore  int              `json:"finalScore"`
	Rank        int              `json:"rank"`
	Status      ResultStatus     `json:"status"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Provider    ProviderMetadata `json:"provider"`
}
