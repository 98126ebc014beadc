package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-attend/internal/audit"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/response"
)

type SettingsResponse struct {
	ResolutionStrategy string `json:"resolution_strategy"`
}

type UpdateSettingsRequest struct {
	ResolutionStrategy string `json:"resolution_strategy" binding:"required,oneof=SERVER_WINS MANUAL"`
}

type SettingsHandler struct {
	repo     SettingsRepository
	recorder audit.Recorder
}

func NewSettingsHandler(repo SettingsRepository, recorder audit.Recorder) *SettingsHandler {
	return &SettingsHandler{repo: repo, recorder: recorder}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *SettingsHandler) Get(c *gin.Context) {
	companyID := c.GetString("company_id")

	s, err := h.repo.Get(c.Request.Context(), companyID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, SettingsResponse{ResolutionStrategy: s.ResolutionStrategy}, nil)
}

func (h *SettingsHandler) Update(c *gin.Context) {
	companyID := c.GetString("company_id")

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeServiceError(c, apperror.MapValidationError(err))
		return
	}

	cid, err := uuid.Parse(companyID)
	if err != nil {
		writeServiceError(c, apperror.New(apperror.CodeInvalidInput, "invalid company id", 400))
		return
	}

	if err := h.repo.Upsert(c.Request.Context(), Settings{
		CompanyID:          cid,
		ResolutionStrategy: req.ResolutionStrategy,
	}); err != nil {
		writeServiceError(c, err)
		return
	}

	// Strategy changes alter how conflicting events resolve from now
	// on, so they are audited synchronously.
	if _, err := h.recorder.Record(c.Request.Context(), companyID, audit.Entry{
		ActorID:      c.GetString("user_id"),
		Action:       audit.ActionSettingsChange,
		TargetEntity: "tenant_settings",
		TargetID:     companyID,
		Outcome:      audit.OutcomeSuccess,
	}); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, SettingsResponse{ResolutionStrategy: req.ResolutionStrategy}, nil)
}
