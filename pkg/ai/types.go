package ai

import (
	"context"
	"errors"
	"time"
)

// ErrUnparseableCritique is returned when a critic response carries none of the expected sections.
var ErrUnparseableCritique = errors.New("ai: critique has no recognizable sections")

// CritiqueRequest contains the manuscript details and weighted criteria sent to the critic.
type CritiqueRequest struct {
	ManuscriptTitle  string
	Synopsis         string
	WordCount        int
	Genre            string
	WeightedCriteria map[string]int
}

// Critique is the raw free-text response of a critic call.
type Critique struct {
	Text         string
	ModelVersion string
	Duration     time.Duration
}

// Critic produces a free-text manuscript critique following the section-header protocol:
// CRITERION SCORES, WEIGHTED OVERALL SCORE, CONFIDENCE, STRENGTHS, WEAKNESSES, DETAILED FEEDBACK.
type Critic interface {
	Critique(ctx context.Context, req CritiqueRequest) (Critique, error)
}

// Assessment is the structured result extracted from a critique.
type Assessment struct {
	CriterionScores     map[string]float64 `json:"criterion_scores"`
	OverallScore        float64            `json:"overall_score"`
	OverallScoreDerived bool               `json:"overall_score_derived"`
	Confidence          float64            `json:"confidence"`
	Strengths           []string           `json:"strengths"`
	Weaknesses          []string           `json:"weaknesses"`
	Feedback            string             `json:"feedback"`
}
