package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/response"
)

const defaultListLimit = 200

type RecordResponse struct {
	ID           int64  `json:"id"`
	ActorID      string `json:"actor_id"`
	Action       string `json:"action"`
	TargetEntity string `json:"target_entity"`
	TargetID     string `json:"target_id"`
	Outcome      string `json:"outcome"`
	RequestID    string `json:"request_id,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

type Handler struct {
	repo     Repository
	recorder Recorder
}

func NewHandler(repo Repository, recorder Recorder) *Handler {
	return &Handler{repo: repo, recorder: recorder}
}

func (h *Handler) GetAll(c *gin.Context) {
	companyID := c.GetString("company_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}

	var rows []AuditRecord
	if actorID := c.Query("actor_id"); actorID != "" {
		rows, err = h.repo.FindByActor(c.Request.Context(), companyID, actorID, limit)
	} else {
		rows, err = h.repo.FindAllByCompany(c.Request.Context(), companyID, limit)
	}
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	// Reading the audit trail is itself logged, asynchronously so a
	// broken outbox does not make the trail unreadable.
	if err := h.recorder.RecordAsync(c.Request.Context(), nil, companyID, Entry{
		ActorID:      c.GetString("user_id"),
		Action:       ActionReadAccess,
		TargetEntity: "audit_record",
		TargetID:     c.Query("actor_id"),
		Outcome:      OutcomeSuccess,
	}); err != nil {
		zap.L().Warn("audit read access log failed", zap.Error(err))
	}

	res := make([]RecordResponse, len(rows))
	for i, r := range rows {
		res[i] = RecordResponse{
			ID:           r.ID,
			ActorID:      r.ActorID,
			Action:       r.Action,
			TargetEntity: r.TargetEntity,
			TargetID:     r.TargetID,
			Outcome:      r.Outcome,
			RequestID:    r.RequestID,
			OccurredAt:   r.OccurredAt.Format(time.RFC3339),
		}
	}
	response.Success(c, http.StatusOK, res, nil)
}
