package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilops/vigil/internal/alerting/service/coordinator"
	"github.com/vigilops/vigil/internal/alerting/service/notify"
)

func newTestAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reg := prometheus.NewRegistry()
	coord := coordinator.New(coordinator.Config{}, notify.NewDispatcher(time.Second), nil, nil, reg)
	NewApi(router, coord, reg)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const cpuRuleBody = `{
	"name": "High CPU Usage",
	"enabled": true,
	"severity": "warning",
	"metric_name": "cpu_usage",
	"operator": ">",
	"threshold": 80,
	"duration": 0
}`

func TestPutAndListRules(t *testing.T) {
	router := newTestAPI(t)

	w := doRequest(router, http.MethodPut, "/v1/alert-rules/high_cpu", cpuRuleBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(router, http.MethodGet, "/v1/alert-rules", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestPutRuleRejectsInvalid(t *testing.T) {
	router := newTestAPI(t)

	bad := strings.Replace(cpuRuleBody, `">"`, `"~"`, 1)
	w := doRequest(router, http.MethodPut, "/v1/alert-rules/high_cpu", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_RULE")
}

func TestIngestEvaluatesSynchronously(t *testing.T) {
	router := newTestAPI(t)
	require.Equal(t, http.StatusOK,
		doRequest(router, http.MethodPut, "/v1/alert-rules/high_cpu", cpuRuleBody).Code)

	w := doRequest(router, http.MethodPost, "/v1/metrics", `{"cpu_usage": 95.0}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doRequest(router, http.MethodGet, "/v1/alerts?status=firing", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count, "firing alert must be visible immediately after ingest")
}

func TestIngestRejectsBadBody(t *testing.T) {
	router := newTestAPI(t)

	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, http.MethodPost, "/v1/metrics", `[1,2,3]`).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, http.MethodPost, "/v1/metrics", `{}`).Code)
}

func TestResolveAlertEndpoint(t *testing.T) {
	router := newTestAPI(t)
	require.Equal(t, http.StatusOK,
		doRequest(router, http.MethodPut, "/v1/alert-rules/high_cpu", cpuRuleBody).Code)
	doRequest(router, http.MethodPost, "/v1/metrics", `{"cpu_usage": 95.0}`)

	w := doRequest(router, http.MethodGet, "/v1/alerts", "")
	var listResp struct {
		Alerts []struct {
			ID string `json:"id"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Len(t, listResp.Alerts, 1)

	id := listResp.Alerts[0].ID
	assert.Equal(t, http.StatusOK,
		doRequest(router, http.MethodPost, "/v1/alerts/"+id+"/resolve", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(router, http.MethodPost, "/v1/alerts/"+id+"/resolve", "").Code)
}

func TestDeleteRule(t *testing.T) {
	router := newTestAPI(t)
	require.Equal(t, http.StatusOK,
		doRequest(router, http.MethodPut, "/v1/alert-rules/high_cpu", cpuRuleBody).Code)

	assert.Equal(t, http.StatusOK,
		doRequest(router, http.MethodDelete, "/v1/alert-rules/high_cpu", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(router, http.MethodDelete, "/v1/alert-rules/high_cpu", "").Code)
}

func TestStatsAndHealth(t *testing.T) {
	router := newTestAPI(t)

	w := doRequest(router, http.MethodGet, "/v1/alerts/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rules_count")

	w = doRequest(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vigil_alert_rules")
}
