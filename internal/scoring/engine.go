// Package scoring aggregates rule evaluations into a bounded risk score
// and classifies the charge against the high-risk threshold.
package scoring

import (
	"context"
	"log/slog"
	"math"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/rules"
)

// Engine produces a RiskAssessment for a charge.
//
// Scoring fails open: an internal fault yields the zero-risk result plus
// an operator-visible log entry rather than blocking the charge.
// Configuration faults (no loadable rule set) do NOT fail open — they
// propagate, because running with an empty or corrupt rule set silently
// would be worse than refusing.
type Engine struct {
	store     *rules.Store
	evaluator *rules.Evaluator
	threshold float64
}

// NewEngine creates a scoring engine. A non-positive threshold falls back
// to the default.
func NewEngine(store *rules.Store, evaluator *rules.Evaluator, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = domain.DefaultHighRiskThreshold
	}
	return &Engine{
		store:     store,
		evaluator: evaluator,
		threshold: threshold,
	}
}

// Threshold returns the active high-risk threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Assess scores one charge against the active rule set.
//
// Rules evaluate in set order; triggered weights sum into a running
// total; the percentage is round(total*100) clamped to [0,100]; the
// score is recomputed from the clamped percentage so the two never
// disagree. TriggeredRules preserves rule-set order.
func (e *Engine) Assess(ctx context.Context, charge *domain.Charge) (assessment domain.RiskAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scoring failed; failing open to zero risk",
				"charge_id", charge.ID,
				"panic", r,
			)
			assessment = domain.ZeroAssessment()
			err = nil
		}
	}()

	compiled, err := e.store.Load()
	if err != nil {
		return domain.ZeroAssessment(), err
	}

	var total float64
	triggered := []string{}
	for _, rule := range compiled {
		if e.evaluator.Evaluate(rule, charge) {
			total += rule.Rule.Weight
			triggered = append(triggered, rule.Rule.Label)
		}
	}

	percentage := int(math.Round(total * 100))
	if percentage > 100 {
		// Saturation is deliberate; keep the overshoot visible to
		// operators without changing the result shape.
		slog.Debug("risk total above cap",
			"charge_id", charge.ID,
			"unclamped_total", total,
		)
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	score := float64(percentage) / 100

	return domain.RiskAssessment{
		RiskScore:      score,
		RiskPercentage: percentage,
		IsHighRisk:     score >= e.threshold,
		TriggeredRules: triggered,
	}, nil
}
