// Package risk composes the rule store, scoring engine, and explanation
// cache into the single risk-assessment surface used by the charge
// workflow.
package risk

import (
	"context"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/explain"
	"github.com/opensource-finance/osprey/internal/metrics"
	"github.com/opensource-finance/osprey/internal/rules"
	"github.com/opensource-finance/osprey/internal/scoring"
)

// Service is the risk classifier/orchestrator.
type Service struct {
	store     *rules.Store
	engine    *scoring.Engine
	explainer *explain.Explainer
}

// NewService creates the orchestrator over its three collaborators.
func NewService(store *rules.Store, engine *scoring.Engine, explainer *explain.Explainer) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		explainer: explainer,
	}
}

// AssessRisk scores one charge against the active rule set. The only
// error surfaced is a configuration fault (no loadable rule set);
// scoring faults fail open inside the engine.
func (s *Service) AssessRisk(ctx context.Context, charge *domain.Charge) (domain.RiskAssessment, error) {
	assessment, err := s.engine.Assess(ctx, charge)
	if err != nil {
		return assessment, err
	}
	for _, label := range assessment.TriggeredRules {
		metrics.RulesTriggeredTotal.WithLabelValues(label).Inc()
	}
	metrics.ChargesScreenedTotal.WithLabelValues(assessment.Decision()).Inc()
	return assessment, nil
}

// Explain returns the (memoized) natural-language explanation for an
// assessment. Never fails: provider faults degrade to the deterministic
// fallback.
func (s *Service) Explain(ctx context.Context, charge *domain.Charge, assessment domain.RiskAssessment) string {
	return s.explainer.Explain(ctx, charge, assessment)
}

// ReloadRules discards the cached rule set and re-reads the source.
func (s *Service) ReloadRules() error {
	if err := s.store.Reload(); err != nil {
		metrics.RuleReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.RuleReloadsTotal.WithLabelValues("ok").Inc()
	return nil
}

// LoadedRules returns the currently active rule set.
func (s *Service) LoadedRules() (*domain.RuleSet, error) {
	return s.store.RuleSet()
}

// ClearExplanationCache drops all memoized explanations.
func (s *Service) ClearExplanationCache(ctx context.Context) error {
	return s.explainer.Clear(ctx)
}

// ExplanationCacheSize returns the number of memoized explanations.
func (s *Service) ExplanationCacheSize(ctx context.Context) (int, error) {
	return s.explainer.Size(ctx)
}

// PeekExplanation returns the cached explanation for a fingerprint.
func (s *Service) PeekExplanation(ctx context.Context, key string) (string, error) {
	return s.explainer.Peek(ctx, key)
}
