package scoring

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/reference"
	"github.com/opensource-finance/osprey/internal/rules"
)

func newTestEngine(t *testing.T, threshold float64, ruleSet ...domain.Rule) *Engine {
	t.Helper()
	lists, err := reference.NewLists("")
	if err != nil {
		t.Fatalf("failed to create reference lists: %v", err)
	}
	evaluator, err := rules.NewEvaluator(lists)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	store := rules.NewStore(&rules.StaticSource{
		Document: domain.RuleDocument{Rules: ruleSet},
	}, evaluator)
	return NewEngine(store, evaluator, threshold)
}

func assess(t *testing.T, engine *Engine, charge *domain.Charge) domain.RiskAssessment {
	t.Helper()
	assessment, err := engine.Assess(context.Background(), charge)
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	return assessment
}

func TestAssessNoTriggers(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "large-amount", Condition: "amount > 1000.0", Weight: 0.3},
		domain.Rule{Label: "risky-email", Condition: "isRiskyDomain(email)", Weight: 0.5},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-1", Amount: 50, Currency: "USD", Source: "tok_1", Email: "user@example.com",
	})

	if result.RiskScore != 0 {
		t.Errorf("expected score 0, got %v", result.RiskScore)
	}
	if result.RiskPercentage != 0 {
		t.Errorf("expected 0%%, got %d", result.RiskPercentage)
	}
	if result.IsHighRisk {
		t.Error("expected low risk")
	}
	if result.TriggeredRules == nil || len(result.TriggeredRules) != 0 {
		t.Errorf("expected empty (non-nil) triggered list, got %v", result.TriggeredRules)
	}
}

func TestAssessSingleTrigger(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "large-amount", Condition: "amount > 1000.0", Weight: 0.3},
		domain.Rule{Label: "risky-email", Condition: "isRiskyDomain(email)", Weight: 0.5},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-2", Amount: 5000, Currency: "USD", Source: "tok_1", Email: "user@example.com",
	})

	if result.RiskPercentage != 30 {
		t.Errorf("expected 30%%, got %d", result.RiskPercentage)
	}
	if result.RiskScore != 0.3 {
		t.Errorf("expected score 0.3, got %v", result.RiskScore)
	}
	if result.IsHighRisk {
		t.Error("0.3 is below the default threshold")
	}
	if !reflect.DeepEqual(result.TriggeredRules, []string{"large-amount"}) {
		t.Errorf("unexpected triggered rules: %v", result.TriggeredRules)
	}
}

func TestAssessSaturatesAtHundredPercent(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "large-amount", Condition: "amount > 1000.0", Weight: 0.3},
		domain.Rule{Label: "risky-email", Condition: "isRiskyDomain(email)", Weight: 0.9},
	)

	// Both trigger: 0.3 + 0.9 = 1.2, capped at 100%.
	result := assess(t, engine, &domain.Charge{
		ID: "ch-3", Amount: 5000, Currency: "USD", Source: "tok_1", Email: "user@mail.ru",
	})

	if result.RiskPercentage != 100 {
		t.Errorf("expected 100%%, got %d", result.RiskPercentage)
	}
	if result.RiskScore != 1.0 {
		t.Errorf("expected score 1.0, got %v", result.RiskScore)
	}
	if !result.IsHighRisk {
		t.Error("expected high risk")
	}
	if !reflect.DeepEqual(result.TriggeredRules, []string{"large-amount", "risky-email"}) {
		t.Errorf("triggered rules must preserve set order, got %v", result.TriggeredRules)
	}
}

func TestAssessCombinedSignals(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "high-amount", Condition: "amount > 5000.0", Weight: 0.3},
		domain.Rule{Label: "risky-domain", Condition: "isRiskyDomain(email)", Weight: 0.4},
		domain.Rule{Label: "unsupported-currency", Condition: "!isSupportedCurrency(currency)", Weight: 0.2},
	)

	// High amount, risky domain, unsupported currency: 0.3+0.4+0.2 = 0.9.
	result := assess(t, engine, &domain.Charge{
		ID: "ch-mix", Amount: 6000, Currency: "GBP", Source: "tok_1", Email: "a@b.ru",
	})

	if result.RiskScore != 0.9 || result.RiskPercentage != 90 {
		t.Errorf("expected 0.9 / 90%%, got %v / %d%%", result.RiskScore, result.RiskPercentage)
	}
	if !result.IsHighRisk {
		t.Error("expected high risk")
	}
	want := []string{"high-amount", "risky-domain", "unsupported-currency"}
	if !reflect.DeepEqual(result.TriggeredRules, want) {
		t.Errorf("expected %v, got %v", want, result.TriggeredRules)
	}

	// Same rules, benign charge: nothing triggers.
	benign := assess(t, engine, &domain.Charge{
		ID: "ch-ok", Amount: 100, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})
	if benign.RiskScore != 0 || benign.IsHighRisk {
		t.Errorf("expected zero risk, got %+v", benign)
	}
}

func TestAssessRoundsPercentage(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "a", Condition: "amount > 0.0", Weight: 0.333},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-4", Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})

	if result.RiskPercentage != 33 {
		t.Errorf("expected round(33.3) = 33, got %d", result.RiskPercentage)
	}
	if result.RiskScore != 0.33 {
		t.Errorf("score is derived from the rounded percentage, got %v", result.RiskScore)
	}
}

func TestAssessThresholdBoundary(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "half", Condition: "amount > 0.0", Weight: 0.5},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-5", Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})

	if result.RiskScore != 0.5 {
		t.Fatalf("expected score 0.5, got %v", result.RiskScore)
	}
	if !result.IsHighRisk {
		t.Error("score equal to the threshold is high risk")
	}
}

func TestAssessCustomThreshold(t *testing.T) {
	engine := newTestEngine(t, 0.8,
		domain.Rule{Label: "half", Condition: "amount > 0.0", Weight: 0.5},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-6", Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})

	if result.IsHighRisk {
		t.Error("0.5 is below the 0.8 threshold")
	}
}

func TestAssessMalformedRuleIsContained(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "broken", Condition: "not a condition @@@", Weight: 0.9},
		domain.Rule{Label: "large-amount", Condition: "amount > 1000.0", Weight: 0.3},
	)

	result := assess(t, engine, &domain.Charge{
		ID: "ch-7", Amount: 5000, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})

	if result.RiskPercentage != 30 {
		t.Errorf("broken rule must not contribute, expected 30%%, got %d", result.RiskPercentage)
	}
	if !reflect.DeepEqual(result.TriggeredRules, []string{"large-amount"}) {
		t.Errorf("unexpected triggered rules: %v", result.TriggeredRules)
	}
}

func TestAssessOrderIsStable(t *testing.T) {
	engine := newTestEngine(t, 0,
		domain.Rule{Label: "z-rule", Condition: "amount > 0.0", Weight: 0.1},
		domain.Rule{Label: "a-rule", Condition: "amount > 0.0", Weight: 0.1},
		domain.Rule{Label: "m-rule", Condition: "amount > 0.0", Weight: 0.1},
	)

	charge := &domain.Charge{ID: "ch-8", Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com"}
	want := []string{"z-rule", "a-rule", "m-rule"}

	for i := 0; i < 5; i++ {
		result := assess(t, engine, charge)
		if !reflect.DeepEqual(result.TriggeredRules, want) {
			t.Fatalf("run %d: expected %v, got %v", i, want, result.TriggeredRules)
		}
	}
}

func TestAssessConfigurationErrorPropagates(t *testing.T) {
	engine := newTestEngine(t, 0) // no rules: document validation fails

	_, err := engine.Assess(context.Background(), &domain.Charge{
		ID: "ch-9", Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com",
	})
	if err == nil {
		t.Fatal("expected configuration error for empty rule document")
	}
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
