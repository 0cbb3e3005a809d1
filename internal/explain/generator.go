package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/osprey/internal/domain"
)

// Generator produces a natural-language explanation for an assessment.
// Implementations may call out to a remote text-generation service and
// may fail or time out; the explainer recovers with the deterministic
// fallback.
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

// GenerateRequest carries the assessment facts the generator phrases.
type GenerateRequest struct {
	Amount         float64
	Currency       string
	Email          string
	RiskScore      float64
	TriggeredRules []string
}

// HTTPGenerator calls a chat-completions style endpoint. The provider is
// opaque to the core: one POST, provider-defined latency, no retries here.
type HTTPGenerator struct {
	url    string
	key    string
	model  string
	client *http.Client
}

// NewHTTPGenerator creates a generator for the given provider endpoint.
func NewHTTPGenerator(cfg domain.ExplainConfig) *HTTPGenerator {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGenerator{
		url:    cfg.ProviderURL,
		key:    cfg.ProviderKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the provider to phrase the assessment.
func (g *HTTPGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if g.url == "" {
		return "", fmt.Errorf("%w: no provider configured", domain.ErrExplanationProvider)
	}

	prompt := fmt.Sprintf(
		"Explain in one short paragraph why a charge of %v %s from %s received a fraud risk score of %.0f%%. Triggered risk rules: %s. Keep it factual and non-accusatory.",
		req.Amount, req.Currency, req.Email, req.RiskScore*100, joinOrNone(req.TriggeredRules),
	)

	body, err := json.Marshal(chatRequest{
		Model:    g.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExplanationProvider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExplanationProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.key)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExplanationProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: provider returned %d", domain.ErrExplanationProvider, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExplanationProvider, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrExplanationProvider)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// FallbackText builds the deterministic explanation used when the
// provider fails: derived solely from the risk percentage and the
// triggered rules, no external dependency. Rules are sorted so any
// ordering of the same set produces the same text.
func FallbackText(riskPercentage int, triggeredRules []string) string {
	if len(triggeredRules) == 0 {
		return fmt.Sprintf("This charge scored %d%% risk. No risk rules were triggered.", riskPercentage)
	}

	sorted := make([]string, len(triggeredRules))
	copy(sorted, triggeredRules)
	sort.Strings(sorted)

	return fmt.Sprintf("This charge scored %d%% risk. Triggered rules: %s.", riskPercentage, strings.Join(sorted, ", "))
}

func joinOrNone(rules []string) string {
	if len(rules) == 0 {
		return "none"
	}
	return strings.Join(rules, ", ")
}
