package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incentedge/match-engine/internal/config"
	"github.com/incentedge/match-engine/internal/matcher"
	"github.com/incentedge/match-engine/internal/model"
	"github.com/incentedge/match-engine/internal/monitoring"
	"github.com/incentedge/match-engine/internal/probability"
	"github.com/incentedge/match-engine/internal/store"
)

func newTestAPI(t *testing.T) (*apiServer, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	scorer := probability.NewScorer(st)
	t.Cleanup(scorer.Close)

	return &apiServer{
		matcher: matcher.New(matcher.DefaultConfig()),
		scorer:  scorer,
		metrics: monitoring.NewCollector(),
		probCfg: config.ProbabilityConfig{BatchConcurrency: 2},
	}, st
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeMatch(t *testing.T) {
	api, _ := newTestAPI(t)

	req := matchRequest{
		Project: model.Project{
			ID:                   "proj-1",
			Sector:               "clean_energy",
			ProjectType:          "solar",
			State:                "NY",
			ApplicantType:        model.ApplicantNonprofit,
			TotalDevelopmentCost: 10_000_000,
		},
		Programs: []model.IncentiveProgram{
			{
				ID:       "prog-itc",
				Name:     "Investment Tax Credit",
				Category: model.CategoryFederal,
				Sectors:  []string{"clean_energy"},
				Amount:   model.AmountFormula{Type: model.AmountPercent, Value: 30},
			},
		},
	}
	rec := postJSON(t, api.routes(), "/v1/match", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.MatchingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, model.TierHigh, result.Matches[0].Tier)
	assert.InDelta(t, 3_000_000, result.Matches[0].EstimatedValue, 1e-9)
}

func TestServeMatchRejectsBadState(t *testing.T) {
	api, _ := newTestAPI(t)

	req := matchRequest{
		Project:  model.Project{ID: "proj-1", State: "New York"},
		Programs: []model.IncentiveProgram{{ID: "p", Name: "P", Category: model.CategoryFederal}},
	}
	rec := postJSON(t, api.routes(), "/v1/match", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2-letter")
}

func TestServeMatchRequiresPrograms(t *testing.T) {
	api, _ := newTestAPI(t)

	req := matchRequest{Project: model.Project{ID: "proj-1", State: "NY"}}
	rec := postJSON(t, api.routes(), "/v1/match", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeProbability(t *testing.T) {
	api, st := newTestAPI(t)

	_, err := st.UpsertAwardStats(context.Background(), []model.AwardStatRow{{
		ProgramID: "prog-lihtc", ProjectType: "multifamily", JurisdictionState: "NY",
		ApplicantType: model.ApplicantNonprofit, TotalApplications: 150, TotalFunded: 90,
		AvgAwardAmount: 1_250_000,
	}})
	require.NoError(t, err)

	req := probabilityRequest{
		Project: model.Project{
			ID:            "proj-1",
			ProjectType:   "multifamily",
			State:         "NY",
			ApplicantType: model.ApplicantNonprofit,
		},
		ProgramIDs: []string{"prog-lihtc"},
	}
	rec := postJSON(t, api.routes(), "/v1/probability", req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []probability.BatchItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.InDelta(t, 60.00, items[0].Result.ApprovalProbability, 1e-9)
	assert.Equal(t, "Based on 90 comparable awards", items[0].Result.BasedOn)
}

func TestServeMetrics(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.CollectedAt.IsZero())
}
