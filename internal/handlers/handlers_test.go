package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutylens/dutylens/internal/dataset"
	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/service"
	"github.com/dutylens/dutylens/internal/thresholds"
)

func newTestHandler(t *testing.T) (*Handler, *repository.InMemoryRepository) {
	t.Helper()

	repo := repository.NewInMemoryRepository()
	loader := dataset.NewLoader(t.TempDir())
	svc := service.NewService(repo, loader, nil, nil, logging.New(slog.LevelError, "text"))
	return NewHandler(svc), repo
}

func doRequest(h *Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestUploadAndStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	t.Run("unknown dataset is rejected", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/datasets/Surprise.csv", []byte("a,b\n1,2\n"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("upload parses and counts rows", func(t *testing.T) {
		csv := "Support_ID,Avg_Wait_Time_Min\nS1,12\nS2,3\n"
		rec := doRequest(h, http.MethodPost, "/datasets/ConsumerSupport.csv", []byte(csv))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(2), resp["rows"])
	})

	t.Run("headerless body is rejected", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/datasets/PriceValue.csv", []byte(""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("status reflects uploads", func(t *testing.T) {
		rec := doRequest(h, http.MethodGet, "/datasets/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var status dataset.Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.AllLoaded)

		loaded := map[string]bool{}
		for _, ds := range status.Datasets {
			loaded[ds.Name] = ds.Loaded
		}
		assert.True(t, loaded["ConsumerSupport.csv"])
		assert.False(t, loaded["ProductPerformance.csv"])
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	t.Run("unknown pillar", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/analyze/governance", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inline rows run the fallback analyzer", func(t *testing.T) {
		body := []byte(`{"rows":[{"Support_ID":"S1","Avg_Wait_Time_Min":"12","First_Contact_Resolution":"No"}]}`)
		rec := doRequest(h, http.MethodPost, "/analyze/consumer-support", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var report service.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, pillar.ConsumerSupport, report.Pillar)
		require.Len(t, report.Findings, 1)
		assert.Equal(t, "S1", report.Findings[0].ID)
		assert.Contains(t, report.RulesSummary, "Wait > 8m")
	})

	t.Run("no inline rows and no dataset fails", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/analyze/consumer-support", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("stored rule set drives evaluation", func(t *testing.T) {
		rs := rules.RuleSet{
			Rules: []rules.Rule{{
				ID: "cs-wait", Severity: rules.SeverityCritical, All: true,
				Conditions: []rules.Condition{{Left: "Avg_Wait_Time_Min", Op: rules.OpGT, Right: "5"}},
				Message:    "Wait: ${Avg_Wait_Time_Min}min",
			}},
		}
		rsBody, _ := json.Marshal(rs)
		rec := doRequest(h, http.MethodPut, "/rulesets/consumer-support", rsBody)
		require.Equal(t, http.StatusOK, rec.Code)

		body := []byte(`{"rows":[{"Support_ID":"S1","Avg_Wait_Time_Min":"8"}]}`)
		rec = doRequest(h, http.MethodPost, "/analyze/consumer-support", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var report service.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "1 rules (structured)", report.RulesSummary)
		require.Len(t, report.Findings, 1)
		assert.Equal(t, rules.FindingCritical, report.Findings[0].Severity)
		assert.Equal(t, "Wait: 8min", report.Findings[0].Messages[0].Text)
	})
}

func TestRuleSetEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	t.Run("get missing returns 404", func(t *testing.T) {
		rec := doRequest(h, http.MethodGet, "/rulesets/price-value", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("put validates", func(t *testing.T) {
		body := []byte(`{"rules":[{"id":"bad","severity":"HIGH","conditions":[]}]}`)
		rec := doRequest(h, http.MethodPut, "/rulesets/price-value", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "no conditions")
	})

	t.Run("put then get then delete", func(t *testing.T) {
		body := []byte(`{"rules":[{"id":"pv-1","code":"PV-001","severity":"HIGH","all":true,"conditions":[{"left":"Fee","op":">","right":"50"}],"message":"Fee too high"}]}`)
		rec := doRequest(h, http.MethodPut, "/rulesets/price-value", body)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doRequest(h, http.MethodGet, "/rulesets/price-value", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var rs rules.RuleSet
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
		assert.Equal(t, pillar.PriceValue, rs.Pillar)
		require.Len(t, rs.Rules, 1)
		assert.Equal(t, "PV-001", rs.Rules[0].Code)

		rec = doRequest(h, http.MethodDelete, "/rulesets/price-value", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(h, http.MethodDelete, "/rulesets/price-value", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPromptsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	t.Run("category is required", func(t *testing.T) {
		rec := doRequest(h, http.MethodPost, "/prompts", []byte(`{"text":"no category"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create then list filtered", func(t *testing.T) {
		body := []byte(`{"category":"price & value review","text":"Flag fees above £75."}`)
		rec := doRequest(h, http.MethodPost, "/prompts", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		var created rules.PromptDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.LastModified.IsZero())

		rec = doRequest(h, http.MethodGet, "/prompts?category=price+%26+value", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var docs []rules.PromptDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, created.ID, docs[0].ID)

		rec = doRequest(h, http.MethodGet, "/prompts?category=consumer", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]\n", rec.Body.String())
	})
}

func TestThresholdsEndpoint(t *testing.T) {
	h, repo := newTestHandler(t)

	t.Run("defaults before any override", func(t *testing.T) {
		rec := doRequest(h, http.MethodGet, "/thresholds/consumer-support", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cs thresholds.ConsumerSupport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cs))
		assert.Equal(t, 8.0, cs.WaitMinutesHigh)
		assert.Equal(t, thresholds.SourceDefault, cs.Source)
	})

	t.Run("put override changes the derived set", func(t *testing.T) {
		rec := doRequest(h, http.MethodPut, "/thresholds/consumer-support", []byte(`{"waitMinutesHigh":12}`))
		require.Equal(t, http.StatusOK, rec.Code)

		var cs thresholds.ConsumerSupport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cs))
		assert.Equal(t, 12.0, cs.WaitMinutesHigh)
		assert.Equal(t, thresholds.SourceStructured, cs.Source)
		// Untouched fields keep their defaults.
		assert.Equal(t, 2.0, cs.CSATPoorMax)

		o, err := repo.GetOverrides(context.Background())
		require.NoError(t, err)
		require.NotNil(t, o.ConsumerSupport)
		assert.Nil(t, o.ConsumerSupport.CSATPoorMax)
	})

	t.Run("prompt derivation shows through", func(t *testing.T) {
		body := []byte(`{"category":"consumer understanding","text":"Readability must stay above 60."}`)
		rec := doRequest(h, http.MethodPost, "/prompts", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doRequest(h, http.MethodGet, "/thresholds/consumer-understanding", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var cu thresholds.ConsumerUnderstanding
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cu))
		assert.Equal(t, 60.0, cu.ReadabilityMin)
		assert.Equal(t, thresholds.SourcePromptLibrary, cu.Source)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/analyze/price-value"},
		{http.MethodDelete, "/datasets/PriceValue.csv"},
		{http.MethodPost, "/datasets/status"},
		{http.MethodPatch, "/rulesets/price-value"},
		{http.MethodPut, "/prompts"},
	} {
		rec := doRequest(h, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, tc.method+" "+tc.path)
	}
}
