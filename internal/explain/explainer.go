package explain

import (
	"context"
	"log/slog"
	"math"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/metrics"
)

// Explainer memoizes generated explanations per charge fingerprint.
//
// A miss invokes the generator once; on failure the deterministic
// fallback is cached under the same key, so a provider outage does not
// turn into a retry storm — the degraded text is sticky until an
// explicit cache clear.
type Explainer struct {
	cache     domain.ExplanationCache
	generator Generator
}

// NewExplainer creates an explainer over the given cache and generator.
// A nil generator means every explanation uses the fallback.
func NewExplainer(cache domain.ExplanationCache, generator Generator) *Explainer {
	return &Explainer{
		cache:     cache,
		generator: generator,
	}
}

// Explain returns the explanation for a charge and its assessment,
// generating and caching it on first sight of the fingerprint.
func (x *Explainer) Explain(ctx context.Context, charge *domain.Charge, assessment domain.RiskAssessment) string {
	return x.GetOrGenerate(ctx, charge.Amount, charge.Currency, charge.Email,
		assessment.RiskScore, assessment.TriggeredRules, x.generator)
}

// GetOrGenerate implements the memoization contract: hit returns the
// cached string without invoking the generator; miss invokes it and
// caches the result — or, when generation fails, the fallback text —
// under the same key. Two concurrent misses for one fingerprint may both
// generate; the second write wins, which is fine for a derived value.
func (x *Explainer) GetOrGenerate(ctx context.Context, amount float64, currency, email string, riskScore float64, triggeredRules []string, gen Generator) string {
	key := Fingerprint(amount, currency, email, triggeredRules)

	if cached, ok := x.cache.Get(ctx, key); ok {
		metrics.ExplanationCacheHits.WithLabelValues("hit").Inc()
		return cached
	}
	metrics.ExplanationCacheHits.WithLabelValues("miss").Inc()

	riskPercentage := int(math.Round(riskScore * 100))

	var text string
	if gen == nil {
		text = FallbackText(riskPercentage, triggeredRules)
	} else {
		generated, err := gen.Generate(ctx, &GenerateRequest{
			Amount:         amount,
			Currency:       currency,
			Email:          email,
			RiskScore:      riskScore,
			TriggeredRules: triggeredRules,
		})
		if err != nil {
			slog.Warn("explanation generation failed; using fallback",
				"email", email,
				"error", err,
			)
			metrics.ExplanationFallbacksTotal.Inc()
			text = FallbackText(riskPercentage, triggeredRules)
		} else {
			text = generated
		}
	}

	if err := x.cache.Put(ctx, key, text); err != nil {
		// Serve the text anyway; only memoization is lost.
		slog.Warn("failed to cache explanation", "error", err)
	}

	return text
}

// Clear drops every cached explanation.
func (x *Explainer) Clear(ctx context.Context) error {
	return x.cache.Clear(ctx)
}

// Size returns the number of cached explanations.
func (x *Explainer) Size(ctx context.Context) (int, error) {
	return x.cache.Size(ctx)
}

// Peek returns the cached explanation for a fingerprint, without side
// effects.
func (x *Explainer) Peek(ctx context.Context, key string) (string, error) {
	return x.cache.Peek(ctx, key)
}
