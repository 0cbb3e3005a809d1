package rules

import (
	"testing"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/reference"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	lists, err := reference.NewLists("")
	if err != nil {
		t.Fatalf("failed to create reference lists: %v", err)
	}
	evaluator, err := NewEvaluator(lists)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	return evaluator
}

func TestCompileValidCondition(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "large-amount",
		Condition: "amount > 1000.0",
		Weight:    0.3,
	})

	if compiled.CompileErr != nil {
		t.Fatalf("unexpected compile error: %v", compiled.CompileErr)
	}
	if compiled.Program == nil {
		t.Fatal("expected compiled program")
	}
}

func TestCompileSyntaxError(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "broken",
		Condition: "amount >>> banana !!!",
		Weight:    0.3,
	})

	if compiled.CompileErr == nil {
		t.Fatal("expected compile error for invalid condition")
	}
}

func TestCompileRejectsNonBoolean(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "arithmetic",
		Condition: "amount * 2.0",
		Weight:    0.3,
	})

	if compiled.CompileErr == nil {
		t.Fatal("expected compile error for non-boolean condition")
	}
}

func TestCompileRejectsUnknownVariable(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "unknown-var",
		Condition: "balance > 100.0",
		Weight:    0.3,
	})

	if compiled.CompileErr == nil {
		t.Fatal("expected compile error for unknown variable")
	}
}

func TestEvaluateAmountCondition(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "large-amount",
		Condition: "amount > 1000.0",
		Weight:    0.3,
	})

	charge := &domain.Charge{Amount: 500, Currency: "USD", Source: "tok_1", Email: "a@b.com"}
	if evaluator.Evaluate(compiled, charge) {
		t.Error("expected condition not to trigger for low amount")
	}

	charge.Amount = 5000
	if !evaluator.Evaluate(compiled, charge) {
		t.Error("expected condition to trigger for high amount")
	}
}

func TestEvaluateCombinedCondition(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "large-foreign",
		Condition: `amount > 1000.0 && currency != "USD"`,
		Weight:    0.4,
	})

	charge := &domain.Charge{Amount: 5000, Currency: "USD", Source: "tok_1", Email: "a@b.com"}
	if evaluator.Evaluate(compiled, charge) {
		t.Error("expected condition not to trigger for USD")
	}

	charge.Currency = "EUR"
	if !evaluator.Evaluate(compiled, charge) {
		t.Error("expected condition to trigger for non-USD")
	}
}

func TestEvaluateRiskyDomainPredicate(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "risky-email",
		Condition: "isRiskyDomain(email)",
		Weight:    0.5,
	})
	if compiled.CompileErr != nil {
		t.Fatalf("unexpected compile error: %v", compiled.CompileErr)
	}

	charge := &domain.Charge{Amount: 10, Currency: "USD", Source: "tok_1", Email: "user@mail.ru"}
	if !evaluator.Evaluate(compiled, charge) {
		t.Error("expected risky domain to trigger")
	}

	charge.Email = "user@example.com"
	if evaluator.Evaluate(compiled, charge) {
		t.Error("expected safe domain not to trigger")
	}

	charge.Email = "no-at-sign"
	if evaluator.Evaluate(compiled, charge) {
		t.Error("expected email without domain segment not to trigger")
	}
}

func TestEvaluateCurrencyPredicate(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "unsupported-currency",
		Condition: "!isSupportedCurrency(currency)",
		Weight:    0.2,
	})
	if compiled.CompileErr != nil {
		t.Fatalf("unexpected compile error: %v", compiled.CompileErr)
	}

	charge := &domain.Charge{Amount: 10, Currency: "GBP", Source: "tok_1", Email: "a@b.com"}
	if !evaluator.Evaluate(compiled, charge) {
		t.Error("expected unsupported currency to trigger")
	}

	charge.Currency = "usd"
	if evaluator.Evaluate(compiled, charge) {
		t.Error("expected supported currency (any case) not to trigger")
	}
}

func TestPredicatesSeeReferenceReloads(t *testing.T) {
	lists, err := reference.NewLists("")
	if err != nil {
		t.Fatalf("failed to create reference lists: %v", err)
	}
	evaluator, err := NewEvaluator(lists)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	compiled := evaluator.Compile(domain.Rule{
		Label:     "risky-email",
		Condition: "isRiskyDomain(email)",
		Weight:    0.5,
	})

	charge := &domain.Charge{Amount: 10, Currency: "USD", Source: "tok_1", Email: "user@shady.example"}
	if evaluator.Evaluate(compiled, charge) {
		t.Fatal("suffix not yet in the list")
	}

	// Swap the list contents directly; compiled programs must observe it.
	reference.DefaultRiskyDomains = append(reference.DefaultRiskyDomains, "shady.example")
	defer func() {
		reference.DefaultRiskyDomains = reference.DefaultRiskyDomains[:len(reference.DefaultRiskyDomains)-1]
	}()
	if err := lists.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if !evaluator.Evaluate(compiled, charge) {
		t.Error("expected reloaded suffix to trigger without recompiling")
	}
}

func TestEvaluateCompileErrNeverTriggers(t *testing.T) {
	evaluator := newTestEvaluator(t)

	compiled := evaluator.Compile(domain.Rule{
		Label:     "broken",
		Condition: "this is not CEL",
		Weight:    0.9,
	})

	charge := &domain.Charge{Amount: 10, Currency: "USD", Source: "tok_1", Email: "a@b.com"}
	if evaluator.Evaluate(compiled, charge) {
		t.Error("rule with compile error must never trigger")
	}
}
