// Package handlers exposes the monitoring service over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dutylens/dutylens/internal/httputil"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/service"
)

// Upload bodies are CSV extracts, not events; 16 MiB is generous.
const maxUploadBytes = 16 << 20

type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func parsePillar(w http.ResponseWriter, raw string) (pillar.Pillar, bool) {
	p, ok := pillar.Parse(raw)
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "unknown pillar: "+raw)
	}
	return p, ok
}

// UploadDataset handles POST /datasets/{name}
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/datasets/")
	if !service.KnownDataset(name) {
		httputil.WriteError(w, http.StatusNotFound, "unknown dataset: "+name)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	count, err := h.service.UploadDataset(r.Context(), name, data)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"dataset": name, "rows": count})
}

// DatasetStatus handles GET /datasets/status
func (h *Handler) DatasetStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.DatasetStatus(r.Context()))
}

type analyzeRequest struct {
	Rows []rules.Row `json:"rows"`
}

// Analyze handles POST /analyze/{pillar}. An inline rows array in the body
// overrides the stored dataset.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePillar(w, strings.TrimPrefix(r.URL.Path, "/analyze/"))
	if !ok {
		return
	}

	var req analyzeRequest
	if r.Body != nil {
		// An empty body means "use the stored dataset".
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	var report *service.Report
	var err error
	if req.Rows != nil {
		report, err = h.service.Analyze(r.Context(), p, req.Rows)
	} else {
		report, err = h.service.AnalyzePillar(r.Context(), p)
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, report)
}

// RuleSet handles GET, PUT and DELETE on /rulesets/{pillar}
func (h *Handler) RuleSet(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePillar(w, strings.TrimPrefix(r.URL.Path, "/rulesets/"))
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rs, err := h.service.GetRuleSet(r.Context(), p)
		if err != nil {
			if errors.Is(err, repository.ErrRuleSetNotFound) {
				httputil.WriteError(w, http.StatusNotFound, "no rule set for pillar")
				return
			}
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rs)

	case http.MethodPut:
		var rs rules.RuleSet
		if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		rs.Pillar = p
		if err := h.service.PutRuleSet(r.Context(), &rs); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rs)

	case http.MethodDelete:
		if err := h.service.DeleteRuleSet(r.Context(), p); err != nil {
			if errors.Is(err, repository.ErrRuleSetNotFound) {
				httputil.WriteError(w, http.StatusNotFound, "no rule set for pillar")
				return
			}
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Prompts handles GET and POST on /prompts
func (h *Handler) Prompts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := h.service.ListPrompts(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if docs == nil {
			docs = []*rules.PromptDocument{}
		}
		httputil.WriteJSON(w, http.StatusOK, docs)

	case http.MethodPost:
		var doc rules.PromptDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if doc.Category == "" {
			httputil.WriteError(w, http.StatusBadRequest, "category is required")
			return
		}
		if err := h.service.CreatePrompt(r.Context(), &doc); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, doc)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Thresholds handles GET and PUT on /thresholds/{pillar}
func (h *Handler) Thresholds(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePillar(w, strings.TrimPrefix(r.URL.Path, "/thresholds/"))
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.service.Thresholds(r.Context(), p)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, t)

	case http.MethodPut:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return
		}
		if err := h.service.PutPillarOverride(r.Context(), p, raw); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := h.service.Thresholds(r.Context(), p)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, t)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
