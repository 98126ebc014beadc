package risk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/response"
)

const defaultListLimit = 100

type Handler struct {
	repo AssessmentRepository
}

func NewHandler(repo AssessmentRepository) *Handler {
	return &Handler{repo: repo}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

func (h *Handler) GetAll(c *gin.Context) {
	companyID := c.GetString("company_id")

	rows, err := h.repo.FindAllByCompany(c.Request.Context(), companyID, listLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	res := make([]AssessmentResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	response.Success(c, http.StatusOK, res, nil)
}

// GetFlagged lists critical-level assessments awaiting investigation.
func (h *Handler) GetFlagged(c *gin.Context) {
	companyID := c.GetString("company_id")

	rows, err := h.repo.FindFlagged(c.Request.Context(), companyID, listLimit(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	res := make([]AssessmentResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	response.Success(c, http.StatusOK, res, nil)
}
