package rules

import (
	"log/slog"
	"sync"

	"github.com/opensource-finance/osprey/internal/domain"
)

// Store supplies the active rule set: loaded once from the declarative
// source, compiled, and cached until an explicit Reload. A reload racing
// with in-flight evaluations is fine — each evaluation takes its own
// reference to the active set at call time and keeps it for the whole
// pass.
type Store struct {
	mu        sync.RWMutex
	source    Source
	evaluator *Evaluator
	active    []*CompiledRule
	loaded    bool
}

// NewStore creates a rule store over the given source. Nothing is read
// until the first Load.
func NewStore(source Source, evaluator *Evaluator) *Store {
	return &Store{
		source:    source,
		evaluator: evaluator,
	}
}

// Load returns the active compiled rule set, reading and compiling the
// source on first call. Returns domain.ErrConfiguration (wrapped) when
// the source is missing or malformed; that is fatal to risk evaluation.
func (s *Store) Load() ([]*CompiledRule, error) {
	s.mu.RLock()
	if s.loaded {
		active := s.active
		s.mu.RUnlock()
		return active, nil
	}
	s.mu.RUnlock()

	if err := s.Reload(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// Reload discards the cached set and re-reads the source. Used for
// zero-downtime rule updates. On failure the previous set stays active.
func (s *Store) Reload() error {
	doc, err := s.source.Load()
	if err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}

	compiled := make([]*CompiledRule, 0, len(doc.Rules))
	var weightSum float64
	for _, rule := range doc.Rules {
		c := s.evaluator.Compile(rule)
		if c.CompileErr != nil {
			// Keep the rule as never-triggering; one bad expression
			// must not block the rest of the set.
			slog.Warn("rule condition failed to compile",
				"rule", rule.Label,
				"error", c.CompileErr,
			)
		}
		weightSum += rule.Weight
		compiled = append(compiled, c)
	}

	if weightSum > 1.0 {
		// Advisory only: a full trigger saturates at the 100% cap.
		slog.Warn("rule weights sum above 1.0; full trigger saturates at 100%",
			"weight_sum", weightSum,
			"rules", len(compiled),
		)
	}

	s.mu.Lock()
	s.active = compiled
	s.loaded = true
	s.mu.Unlock()

	slog.Info("rule set loaded", "rules", len(compiled))
	return nil
}

// RuleSet returns the active rules as a domain.RuleSet. Loads on first
// use.
func (s *Store) RuleSet() (*domain.RuleSet, error) {
	compiled, err := s.Load()
	if err != nil {
		return nil, err
	}
	set := &domain.RuleSet{Rules: make([]domain.Rule, 0, len(compiled))}
	for _, c := range compiled {
		set.Rules = append(set.Rules, c.Rule)
	}
	return set, nil
}

// RulesCount returns the number of loaded rules, zero before first load.
func (s *Store) RulesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}
