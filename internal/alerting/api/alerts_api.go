package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vigilops/vigil/internal/alerting/model"
)

func errJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// IngestSnapshot accepts one metrics snapshot and runs a full evaluation
// pass before responding, so callers observe their own writes on the
// alerts endpoints.
func (api *Api) IngestSnapshot(c *gin.Context) {
	var snap model.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "body must be a JSON object of metric values")
		return
	}
	if len(snap) == 0 {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "empty snapshot")
		return
	}

	api.coord.EvaluateSnapshot(c.Request.Context(), snap)
	c.JSON(http.StatusAccepted, gin.H{"status": "evaluated", "metrics": len(snap)})
}

// ListAlerts returns alerts filtered by ?status=, ?severity=, and ?limit=.
func (api *Api) ListAlerts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	alerts := api.coord.Alerts(c.Query("status"), c.Query("severity"), limit)
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (api *Api) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, api.coord.Stats())
}

func (api *Api) ResolveAlert(c *gin.Context) {
	alertID := c.Param("alertID")
	alert, ok := api.coord.ResolveAlert(c.Request.Context(), alertID)
	if !ok {
		errJSON(c, http.StatusNotFound, "NOT_FOUND", "no firing alert with id "+alertID)
		return
	}
	c.JSON(http.StatusOK, alert)
}

type acknowledgeRequest struct {
	By string `json:"by"`
}

func (api *Api) AcknowledgeAlert(c *gin.Context) {
	var req acknowledgeRequest
	_ = c.ShouldBindJSON(&req)
	if req.By == "" {
		req.By = "api"
	}

	alert, ok := api.coord.AcknowledgeAlert(c.Request.Context(), c.Param("alertID"), req.By)
	if !ok {
		errJSON(c, http.StatusNotFound, "NOT_FOUND", "no firing alert with id "+c.Param("alertID"))
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (api *Api) ListRules(c *gin.Context) {
	rules := api.coord.Rules()
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// PutRule creates or replaces the rule named in the path. The path id
// always wins over any id in the body.
func (api *Api) PutRule(c *gin.Context) {
	var rule model.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "malformed rule body")
		return
	}
	rule.ID = c.Param("ruleID")

	if err := api.coord.UpsertRule(&rule); err != nil {
		if errors.Is(err, model.ErrInvalidRule) {
			errJSON(c, http.StatusBadRequest, "INVALID_RULE", err.Error())
			return
		}
		errJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, &rule)
}

func (api *Api) DeleteRule(c *gin.Context) {
	ruleID := c.Param("ruleID")
	if !api.coord.RemoveRule(ruleID) {
		errJSON(c, http.StatusNotFound, "NOT_FOUND", "no rule with id "+ruleID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": ruleID})
}

// ListDeliveries returns recent notification delivery records, newest
// last, capped by ?limit=.
func (api *Api) ListDeliveries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errJSON(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records := api.coord.History(limit)
	c.JSON(http.StatusOK, gin.H{"notifications": records, "count": len(records)})
}
