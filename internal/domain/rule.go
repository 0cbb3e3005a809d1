// Package domain defines the core types and interfaces for Kestrel.
package domain

// Rule is a labeled, weighted boolean condition over charge attributes.
// Rules are immutable once loaded; updates replace the whole set.
type Rule struct {
	// Label is a unique, human-readable identifier (e.g. "high_amount").
	Label string `json:"label" yaml:"label"`

	// Condition is a boolean expression over the charge variables
	// (amount, currency, source, email) and the two predicates
	// isRiskyDomain(string) and isSupportedCurrency(string).
	Condition string `json:"condition" yaml:"condition"`

	// Weight is the rule's contribution to the risk score when the
	// condition holds. Expected range 0.0-1.0; the aggregate is clamped.
	Weight float64 `json:"score" yaml:"score"`
}

// RuleDocument is the declarative rule source format:
// {rules: [{label, condition, score}]}.
type RuleDocument struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// RuleSet is the full ordered collection of currently active rules.
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

// Labels returns the rule labels in set order.
func (s *RuleSet) Labels() []string {
	labels := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		labels = append(labels, r.Label)
	}
	return labels
}

// WeightSum returns the sum of all rule weights. A sum above 1.0 means
// "all rules triggered" saturates at the 100% cap and loses granularity.
func (s *RuleSet) WeightSum() float64 {
	var total float64
	for _, r := range s.Rules {
		total += r.Weight
	}
	return total
}
