package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rulepack"
)

// Deps are the collaborators the API serves from. Repo, Cache, Bus and
// Gatherer may be nil; the endpoints that need them then degrade.
type Deps struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Rulepacks *rulepack.Store
	Processor *decision.Processor

	// Gatherer backs GET /metrics. Nil leaves the endpoint out.
	Gatherer prometheus.Gatherer

	// Version is reported by /health.
	Version string

	// AssessmentTTL bounds how long evaluated assessments stay cached.
	AssessmentTTL time.Duration
}

// Handler serves the assessment and rulepack endpoints.
type Handler struct {
	repo          domain.Repository
	cache         domain.Cache
	bus           domain.EventBus
	rulepacks     *rulepack.Store
	processor     *decision.Processor
	version       string
	assessmentTTL time.Duration
}

// NewHandler creates a handler over d.
func NewHandler(d Deps) *Handler {
	return &Handler{
		repo:          d.Repo,
		cache:         d.Cache,
		bus:           d.Bus,
		rulepacks:     d.Rulepacks,
		processor:     d.Processor,
		version:       d.Version,
		assessmentTTL: d.AssessmentTTL,
	}
}

// decodeCase parses and validates a case body. On failure it writes the 400
// response and returns nil.
func (h *Handler) decodeCase(w http.ResponseWriter, r *http.Request) *domain.CaseInput {
	var in domain.CaseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil
	}

	if err := domain.ValidateCase(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return nil
	}
	return &in
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	in := h.decodeCase(w, r)
	if in == nil {
		return
	}

	ctx = decision.WithTraceID(ctx, traceID)
	a, err := h.processor.Evaluate(ctx, tenantID, in)
	if err != nil {
		writeEvaluationError(w, in.CaseID, err)
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveAssessment(ctx, tenantID, a); err != nil {
			slog.Error("failed to save assessment",
				"case_id", a.CaseID,
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetAssessment(ctx, tenantID, a, h.assessmentTTL); err != nil {
			slog.Warn("failed to cache assessment", "assessment_id", a.ID, "error", err)
		}
	}

	if h.bus != nil {
		if err := bus.PublishAssessment(ctx, h.bus, tenantID, a); err != nil {
			slog.Error("failed to publish assessment", "assessment_id", a.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, a)
}

func writeEvaluationError(w http.ResponseWriter, caseID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNoRulepack):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no rulepack loaded",
		})
	case errors.Is(err, domain.ErrTierUndefined), errors.Is(err, domain.ErrInvalidRulepack):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("case evaluation failed", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "case evaluation failed",
		})
	}
}

// SubmitCase handles POST /cases by queueing the case for the async worker.
func (h *Handler) SubmitCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	in := h.decodeCase(w, r)
	if in == nil {
		return
	}

	err := bus.PublishJSON(ctx, h.bus, tenantID, domain.TopicCaseSubmitted, bus.CaseSubmittedEvent{
		TraceID: traceID,
		Case:    in,
	})
	if err != nil {
		slog.Error("failed to submit case", "case_id", in.CaseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit case",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"case_id":  in.CaseID,
		"trace_id": traceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	version := rulepack.UnknownVersion
	if snap := h.rulepacks.Current(); snap != nil {
		version = snap.Version()
	} else {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":           status,
		"version":          h.version,
		"rulepack_version": version,
	})
}

// Ready reports whether a rulepack is loaded and traffic can be served.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.rulepacks.Current() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAssessment retrieves an assessment by ID, cache first.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	assessmentID := chi.URLParam(r, "id")

	if assessmentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.cache != nil {
		a, err := h.cache.GetAssessment(ctx, tenantID, assessmentID)
		if err != nil {
			slog.Warn("assessment cache read failed", "id", assessmentID, "error", err)
		}
		if a != nil {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, tenantID, assessmentID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetAssessment(ctx, tenantID, a, h.assessmentTTL)
	}

	writeJSON(w, http.StatusOK, a)
}

// ListCaseAssessments returns the assessment history of a case.
func (h *Handler) ListCaseAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	caseID := chi.URLParam(r, "caseID")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	assessments, err := h.repo.ListAssessmentsByCase(ctx, tenantID, caseID)
	if err != nil {
		slog.Error("failed to list assessments", "case_id", caseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list assessments",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"case_id":     caseID,
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// RulepackInfo describes the active rulepack.
type RulepackInfo struct {
	Version    string    `json:"rulepack_version"`
	Checksum   string    `json:"checksum"`
	Source     string    `json:"source"`
	LoadedAt   time.Time `json:"loaded_at"`
	PolicyRefs []string  `json:"policy_refs"`
	RedFlags   []string  `json:"red_flags"`
}

func newRulepackInfo(snap *rulepack.Snapshot) RulepackInfo {
	flags := make([]string, len(snap.RedFlags))
	for i, f := range snap.RedFlags {
		flags[i] = f.Def.ID
	}
	return RulepackInfo{
		Version:    snap.Version(),
		Checksum:   snap.Checksum,
		Source:     snap.Source,
		LoadedAt:   snap.LoadedAt,
		PolicyRefs: snap.Rulepack.PolicyRefs,
		RedFlags:   flags,
	}
}

// GetRulepack returns the active rulepack version and checksum.
func (h *Handler) GetRulepack(w http.ResponseWriter, r *http.Request) {
	snap := h.rulepacks.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no rulepack loaded",
		})
		return
	}
	writeJSON(w, http.StatusOK, newRulepackInfo(snap))
}

// RulepackHistory returns recent rulepack load attempts.
func (h *Handler) RulepackHistory(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	loads, err := h.repo.ListRulepackLoads(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list rulepack loads", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rulepack loads",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loads": loads,
		"count": len(loads),
	})
}

// ReloadRulepack re-reads the rulepack file and swaps it in as a whole.
// A rejected document leaves the active rulepack in place.
func (h *Handler) ReloadRulepack(w http.ResponseWriter, r *http.Request) {
	snap, err := h.rulepacks.Reload(r.Context(), rulepack.TriggerAPI)
	if err != nil {
		resp := map[string]string{
			"error": err.Error(),
		}
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Field != "" {
			resp["field"] = cfgErr.Field
		}
		if cur := h.rulepacks.Current(); cur != nil {
			resp["active_version"] = cur.Version()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "rulepack reloaded successfully",
		"rulepack": newRulepackInfo(snap),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
