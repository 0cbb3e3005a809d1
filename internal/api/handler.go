package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/osprey/internal/domain"
	"github.com/opensource-finance/osprey/internal/risk"
)

// EngineVersion is stamped into assessment metadata and the root payload.
const EngineVersion = "1.0.0"

// Handler handles HTTP requests.
type Handler struct {
	service *risk.Service
	repo    domain.Repository
	bus     domain.EventBus
	cache   domain.ExplanationCache

	// asyncAudit moves repository writes off the request path; the
	// audit worker persists from the assessed-charge topic instead.
	asyncAudit bool
}

// NewHandler creates a new API handler.
func NewHandler(service *risk.Service, repo domain.Repository, bus domain.EventBus, cache domain.ExplanationCache, asyncAudit bool) *Handler {
	return &Handler{
		service:    service,
		repo:       repo,
		bus:        bus,
		cache:      cache,
		asyncAudit: asyncAudit,
	}
}

// ChargeResponse is the response payload for charge screening.
type ChargeResponse struct {
	ChargeID       string                    `json:"chargeId"`
	AssessmentID   string                    `json:"assessmentId"`
	Decision       string                    `json:"decision"`
	RiskScore      float64                   `json:"riskScore"`
	RiskPercentage int                       `json:"riskPercentage"`
	IsHighRisk     bool                      `json:"isHighRisk"`
	TriggeredRules []string                  `json:"triggeredRules"`
	Explanation    string                    `json:"explanation"`
	Metadata       domain.AssessmentMetadata `json:"metadata"`
}

// HandleScreenCharge processes POST /api/v1/charges.
func (h *Handler) HandleScreenCharge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateChargeRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	charge := req.ToCharge(uuid.New().String())

	scoringStart := time.Now()
	result, err := h.service.AssessRisk(ctx, charge)
	scoringMs := time.Since(scoringStart).Milliseconds()
	if err != nil {
		// The only assessment error is an unloadable rule set.
		slog.Error("charge screening unavailable",
			"charge_id", charge.ID,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "rule configuration unavailable")
		return
	}

	explainStart := time.Now()
	explanation := h.service.Explain(ctx, charge, result)
	explainMs := time.Since(explainStart).Milliseconds()

	assessment := &domain.Assessment{
		ID:          uuid.New().String(),
		ChargeID:    charge.ID,
		Result:      result,
		Decision:    result.Decision(),
		Explanation: explanation,
		Timestamp:   time.Now().UTC(),
		Metadata: domain.AssessmentMetadata{
			TraceID:        GetTraceID(ctx),
			RulesEvaluated: h.rulesEvaluated(),
			ScoringMs:      scoringMs,
			ExplainMs:      explainMs,
			TotalMs:        time.Since(start).Milliseconds(),
			EngineVersion:  EngineVersion,
		},
	}

	if !h.asyncAudit {
		if err := h.repo.SaveCharge(ctx, charge); err != nil {
			slog.Error("failed to persist charge", "charge_id", charge.ID, "error", err)
		}
		if err := h.repo.SaveAssessment(ctx, assessment); err != nil {
			slog.Error("failed to persist assessment", "assessment_id", assessment.ID, "error", err)
		}
	}

	h.publishEvents(ctx, charge, assessment)

	writeJSON(w, http.StatusOK, ChargeResponse{
		ChargeID:       charge.ID,
		AssessmentID:   assessment.ID,
		Decision:       assessment.Decision,
		RiskScore:      result.RiskScore,
		RiskPercentage: result.RiskPercentage,
		IsHighRisk:     result.IsHighRisk,
		TriggeredRules: result.TriggeredRules,
		Explanation:    explanation,
		Metadata:       assessment.Metadata,
	})
}

func (h *Handler) rulesEvaluated() int {
	ruleSet, err := h.service.LoadedRules()
	if err != nil || ruleSet == nil {
		return 0
	}
	return len(ruleSet.Rules)
}

// publishEvents emits the assessed event, plus the flagged event for
// high-risk charges. Publish failures are logged, never surfaced.
func (h *Handler) publishEvents(ctx context.Context, charge *domain.Charge, assessment *domain.Assessment) {
	payload, err := json.Marshal(domain.ChargeAssessedEvent{
		Charge:     charge,
		Assessment: assessment,
	})
	if err != nil {
		slog.Error("failed to marshal assessment event", "charge_id", charge.ID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicChargeAssessed, payload); err != nil {
		slog.Error("failed to publish assessed event", "charge_id", charge.ID, "error", err)
	}

	if assessment.Result.IsHighRisk {
		if err := h.bus.Publish(ctx, domain.TopicChargeFlagged, payload); err != nil {
			slog.Error("failed to publish flagged event", "charge_id", charge.ID, "error", err)
		}
	}
}

func validateChargeRequest(req *domain.ChargeRequest) error {
	if req.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return errors.New("currency is required")
	}
	if strings.TrimSpace(req.Source) == "" {
		return errors.New("source is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return errors.New("email is required")
	}
	return nil
}

// HandleGetCharge processes GET /api/v1/charges/{id}.
func (h *Handler) HandleGetCharge(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	charge, err := h.repo.GetCharge(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "charge not found")
			return
		}
		slog.Error("failed to load charge", "charge_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load charge")
		return
	}

	writeJSON(w, http.StatusOK, charge)
}

// HandleGetAssessment processes GET /api/v1/assessments/{id}.
func (h *Handler) HandleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	assessment, err := h.repo.GetAssessment(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assessment not found")
			return
		}
		slog.Error("failed to load assessment", "assessment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// HandleListChargeAssessments processes GET /api/v1/charges/{id}/assessments.
func (h *Handler) HandleListChargeAssessments(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	assessments, err := h.repo.ListAssessmentsByCharge(r.Context(), id)
	if err != nil {
		slog.Error("failed to list assessments", "charge_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chargeId":    id,
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// HandleListRules processes GET /api/v1/rules.
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := h.service.LoadedRules()
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		writeError(w, http.StatusServiceUnavailable, "rule configuration unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":     ruleSet.Rules,
		"count":     len(ruleSet.Rules),
		"weightSum": ruleSet.WeightSum(),
	})
}

// HandleReloadRules processes POST /api/v1/rules/reload.
func (h *Handler) HandleReloadRules(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ReloadRules(); err != nil {
		slog.Error("rule reload failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "rule reload failed: "+err.Error())
		return
	}

	ruleSet, err := h.service.LoadedRules()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "rule configuration unavailable")
		return
	}

	slog.Info("rules reloaded", "count", len(ruleSet.Rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"count":  len(ruleSet.Rules),
	})
}

// HandleCacheStats processes GET /api/v1/explanations/cache.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	size, err := h.service.ExplanationCacheSize(r.Context())
	if err != nil {
		slog.Error("failed to read cache size", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read cache size")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"size": size})
}

// HandleCacheClear processes DELETE /api/v1/explanations/cache.
func (h *Handler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearExplanationCache(r.Context()); err != nil {
		slog.Error("failed to clear explanation cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared"})
}

// HandleCachePeek processes GET /api/v1/explanations/cache/entry?key=...
// The fingerprint key carries separators that sit awkwardly in a path
// segment, so it travels as a query parameter.
func (h *Handler) HandleCachePeek(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	explanation, err := h.service.PeekExplanation(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no cached explanation for key")
			return
		}
		slog.Error("failed to peek explanation cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":         key,
		"explanation": explanation,
	})
}

// HandleHealth processes GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": EngineVersion,
	})
}

// HandleReady processes GET /ready: the service is ready once the rule
// set loads and the backing services answer pings.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if _, err := h.service.LoadedRules(); err != nil {
		checks["rules"] = err.Error()
		healthy = false
	} else {
		checks["rules"] = "ok"
	}

	if err := h.repo.Ping(ctx); err != nil {
		checks["repository"] = err.Error()
		healthy = false
	} else {
		checks["repository"] = "ok"
	}

	if err := h.bus.Ping(ctx); err != nil {
		checks["bus"] = err.Error()
		healthy = false
	} else {
		checks["bus"] = "ok"
	}

	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		healthy = false
	} else {
		checks["cache"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"ready":  healthy,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
