package checkin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-attend/internal/audit"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/response"
)

const defaultListLimit = 50

type Handler struct {
	engine   Engine
	recorder audit.Recorder
}

func NewHandler(engine Engine, recorder audit.Recorder) *Handler {
	return &Handler{engine: engine, recorder: recorder}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func listLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			return v
		}
	}
	return defaultListLimit
}

func (h *Handler) Submit(c *gin.Context) {
	companyID := c.GetString("company_id")
	employeeID := c.GetString("employee_id")

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	result, err := h.engine.Submit(c.Request.Context(), companyID, employeeID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Accepted {
		// The conflict outcome is data, not a transport failure.
		status = http.StatusOK
	}
	response.Success(c, status, result, nil)
}

func (h *Handler) GetHistory(c *gin.Context) {
	companyID := c.GetString("company_id")
	employeeID := c.GetString("employee_id")

	// Supervisors may inspect another employee's history.
	if override := c.Query("employee_id"); override != "" {
		employeeID = override
	}

	resp, err := h.engine.GetHistory(c.Request.Context(), companyID, employeeID, listLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// Access logging is best-effort: a failed log line must not fail
	// the read itself.
	if err := h.recorder.RecordAsync(c.Request.Context(), nil, companyID, audit.Entry{
		ActorID:      c.GetString("user_id"),
		Action:       audit.ActionReadAccess,
		TargetEntity: "attendance_event",
		TargetID:     employeeID,
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		zap.L().Warn("attendance read access log failed", zap.Error(err))
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) GetOpenConflicts(c *gin.Context) {
	companyID := c.GetString("company_id")

	resp, err := h.engine.ListOpenConflicts(c.Request.Context(), companyID, listLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	companyID := c.GetString("company_id")
	actorID := c.GetString("user_id")
	conflictID := c.Param("id")

	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	resp, err := h.engine.ResolveConflict(c.Request.Context(), companyID, conflictID, actorID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
