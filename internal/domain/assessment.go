package domain

import "time"

// RiskAssessment is the result of scoring one charge against the active
// rule set.
//
// Invariants: RiskPercentage == round(RiskScore * 100), clamped to [0,100]
// even when the sum of triggered weights exceeds 1.0, and RiskScore is
// recomputed from the clamped percentage so the two never disagree.
// TriggeredRules preserves rule-set evaluation order.
type RiskAssessment struct {
	RiskScore      float64  `json:"riskScore"`
	RiskPercentage int      `json:"riskPercentage"`
	IsHighRisk     bool     `json:"isHighRisk"`
	TriggeredRules []string `json:"triggeredRules"`
}

// ZeroAssessment is the safe default returned when scoring fails
// internally: fail open to low risk rather than block the charge.
func ZeroAssessment() RiskAssessment {
	return RiskAssessment{
		RiskScore:      0,
		RiskPercentage: 0,
		IsHighRisk:     false,
		TriggeredRules: []string{},
	}
}

// Decision constants for the charge workflow.
const (
	DecisionApproved = "approved"
	DecisionFlagged  = "flagged"
)

// Decision maps the assessment to the workflow decision.
func (a RiskAssessment) Decision() string {
	if a.IsHighRisk {
		return DecisionFlagged
	}
	return DecisionApproved
}

// Assessment is the persisted record of one screening: the charge
// reference, the scoring result, and the explanation produced for it.
type Assessment struct {
	ID          string         `json:"id"`
	ChargeID    string         `json:"chargeId"`
	Result      RiskAssessment `json:"result"`
	Decision    string         `json:"decision"`
	Explanation string         `json:"explanation,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`

	// Processing metadata
	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID        string `json:"traceId"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	ScoringMs      int64  `json:"scoringMs"`
	ExplainMs      int64  `json:"explainMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion"`
}
