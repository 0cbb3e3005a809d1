//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel charge
// screening engine.
//
// These tests verify the COMPLETE screening pipeline:
//
//	Charge → Rules → Score → Explanation → Decision
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. CHARGE: A payment request (amount, currency, source token, payer email)
//
// 2. RULE: A fraud signal. Each rule has:
//   - Label: unique name, reported back when the rule triggers
//   - Condition: a boolean expression over the charge fields
//   - Score: weight added to the risk total when the condition holds (0.0 to 1.0)
//
// 3. SCORE: Triggered weights are summed; riskPercentage = round(sum*100)
//    clamped to [0,100]; riskScore = riskPercentage/100.
//
// 4. DECISION: riskScore >= 0.5 → "flagged", otherwise "approved".
//
// REQUIRED RULES (the server must run with this rule source):
//
// Run with KESTREL_RULES_PATH pointing at a document containing:
//
// | Label           | Condition                     | Score |
// |-----------------|-------------------------------|-------|
// | large-amount    | amount > 1000.0               | 0.3   |
// | risky-email     | isRiskyDomain(email)          | 0.5   |
// | unsupported-ccy | !isSupportedCurrency(currency)| 0.2   |
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// ChargeRequest is the charge sent to POST /api/v1/charges
type ChargeRequest struct {
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency"`
	Source   string         `json:"source"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChargeResponse is what POST /api/v1/charges returns
type ChargeResponse struct {
	ChargeID       string           `json:"chargeId"`
	AssessmentID   string           `json:"assessmentId"`
	Decision       string           `json:"decision"` // "flagged" or "approved"
	RiskScore      float64          `json:"riskScore"`
	RiskPercentage int              `json:"riskPercentage"`
	IsHighRisk     bool             `json:"isHighRisk"`
	TriggeredRules []string         `json:"triggeredRules"`
	Explanation    string           `json:"explanation"`
	Metadata       ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TraceID       string `json:"traceId"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func screen(t *testing.T, config TestConfig, req ChargeRequest) ChargeResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/api/v1/charges", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result ChargeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

// ============================================================================
// SCENARIO 1: Normal Charge (Approved)
// ============================================================================

func TestNormalCharge_Approved(t *testing.T) {
	/*
	   SCENARIO: A regular $50 charge from a normal email domain

	   EXPECTED BEHAVIOR:
	   - large-amount: 50 < 1000 → not triggered
	   - risky-email: example.com is not risky → not triggered
	   - unsupported-ccy: USD is supported → not triggered

	   FINAL DECISION: 0% risk → "approved"
	*/
	config := getTestConfig()

	result := screen(t, config, ChargeRequest{
		Amount:   50.00,
		Currency: "USD",
		Source:   "tok_visa",
		Email:    "customer@example.com",
	})

	if result.Decision != "approved" {
		t.Errorf("Expected decision approved, got %s", result.Decision)
	}
	if result.RiskPercentage != 0 {
		t.Errorf("Expected 0%% risk, got %d%%", result.RiskPercentage)
	}
	if len(result.TriggeredRules) > 0 {
		t.Errorf("Expected no triggered rules, got %v", result.TriggeredRules)
	}
	if result.Explanation == "" {
		t.Error("Expected an explanation even for zero risk")
	}

	t.Logf("✓ Normal charge approved: decision=%s, risk=%d%%", result.Decision, result.RiskPercentage)
}

// ============================================================================
// SCENARIO 2: Large Amount (Single Rule, Still Approved)
// ============================================================================

func TestLargeAmount_SingleRuleBelowThreshold(t *testing.T) {
	/*
	   SCENARIO: A $5,000 charge from a normal email

	   EXPECTED BEHAVIOR:
	   - large-amount fires (weight 0.3) → 30% risk
	   - 0.3 < 0.5 threshold → still approved

	   IMPLICATION: Kestrel requires MULTIPLE signals to flag a charge.
	*/
	config := getTestConfig()

	result := screen(t, config, ChargeRequest{
		Amount:   5000.00,
		Currency: "USD",
		Source:   "tok_visa",
		Email:    "customer@example.com",
	})

	if result.Decision != "approved" {
		t.Errorf("Expected decision approved (single signal), got %s", result.Decision)
	}
	if result.RiskPercentage != 30 {
		t.Errorf("Expected 30%% risk, got %d%%", result.RiskPercentage)
	}
	if len(result.TriggeredRules) != 1 || result.TriggeredRules[0] != "large-amount" {
		t.Errorf("Expected [large-amount], got %v", result.TriggeredRules)
	}
}

// ============================================================================
// SCENARIO 3: Large Amount + Risky Email (Flagged)
// ============================================================================

func TestRiskyCombination_Flagged(t *testing.T) {
	/*
	   SCENARIO: A $5,000 charge from a risky email domain

	   EXPECTED BEHAVIOR:
	   - large-amount fires (0.3) + risky-email fires (0.5) → 80% risk
	   - 0.8 >= 0.5 threshold → "flagged"
	*/
	config := getTestConfig()

	result := screen(t, config, ChargeRequest{
		Amount:   5000.00,
		Currency: "USD",
		Source:   "tok_visa",
		Email:    "someone@mail.ru",
	})

	if result.Decision != "flagged" {
		t.Errorf("Expected decision flagged, got %s", result.Decision)
	}
	if !result.IsHighRisk {
		t.Error("Expected high risk")
	}
	if result.RiskPercentage != 80 {
		t.Errorf("Expected 80%% risk, got %d%%", result.RiskPercentage)
	}

	t.Logf("✓ Risky charge flagged: risk=%d%%, rules=%v", result.RiskPercentage, result.TriggeredRules)
}

// ============================================================================
// SCENARIO 4: Full Trigger Saturates at 100%
// ============================================================================

func TestAllRulesTrigger_SaturatesAtCap(t *testing.T) {
	/*
	   SCENARIO: Large amount, risky email, AND unsupported currency

	   EXPECTED BEHAVIOR:
	   - 0.3 + 0.5 + 0.2 = 1.0 → exactly 100%
	   - riskScore 1.0, flagged
	*/
	config := getTestConfig()

	result := screen(t, config, ChargeRequest{
		Amount:   9999.00,
		Currency: "ZWL",
		Source:   "tok_visa",
		Email:    "someone@fraud.nett",
	})

	if result.RiskPercentage != 100 {
		t.Errorf("Expected 100%% risk, got %d%%", result.RiskPercentage)
	}
	if result.RiskScore != 1.0 {
		t.Errorf("Expected riskScore 1.0, got %v", result.RiskScore)
	}
	if result.Decision != "flagged" {
		t.Errorf("Expected flagged, got %s", result.Decision)
	}
}

// ============================================================================
// SCENARIO 5: Explanation Memoization
// ============================================================================

func TestExplanationIsMemoized(t *testing.T) {
	/*
	   SCENARIO: The same charge facts screened twice

	   EXPECTED BEHAVIOR:
	   Identical fingerprint (amount, currency, email, triggered rules) →
	   the second screening returns the exact cached explanation text.
	*/
	config := getTestConfig()

	req := ChargeRequest{
		Amount:   123.45,
		Currency: "USD",
		Source:   "tok_visa",
		Email:    "memo@example.com",
	}

	first := screen(t, config, req)
	second := screen(t, config, req)

	if first.Explanation != second.Explanation {
		t.Errorf("Expected memoized explanation, got %q then %q", first.Explanation, second.Explanation)
	}
}

// ============================================================================
// SCENARIO 6: Audit Trail
// ============================================================================

func TestAuditTrailPersisted(t *testing.T) {
	config := getTestConfig()

	result := screen(t, config, ChargeRequest{
		Amount:   75.00,
		Currency: "USD",
		Source:   "tok_visa",
		Email:    "audit@example.com",
	})

	client := &http.Client{Timeout: 10 * time.Second}

	// Async audit deployments may lag slightly
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get(config.BaseURL + "/api/v1/assessments/" + result.AssessmentID)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("Assessment %s never became readable", result.AssessmentID)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
