package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the service mux. Method dispatch for the prefix routes lives
// here; the handlers themselves switch where a path carries several verbs.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/datasets/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.DatasetStatus(w, r)
	})

	mux.HandleFunc("/datasets/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.UploadDataset(w, r)
	})

	mux.HandleFunc("/analyze/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Analyze(w, r)
	})

	mux.HandleFunc("/rulesets/", h.RuleSet)
	mux.HandleFunc("/prompts", h.Prompts)
	mux.HandleFunc("/thresholds/", h.Thresholds)

	return mux
}
