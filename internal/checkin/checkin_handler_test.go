package checkin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"go-attend/internal/audit"
)

type fakeEngine struct {
	historyFn func(ctx context.Context, companyID, employeeID string, limit int) ([]EventResponse, error)
}

func (f *fakeEngine) Submit(ctx context.Context, companyID, employeeID string, req SubmitRequest) (SubmissionResult, error) {
	return SubmissionResult{}, nil
}
func (f *fakeEngine) GetHistory(ctx context.Context, companyID, employeeID string, limit int) ([]EventResponse, error) {
	return f.historyFn(ctx, companyID, employeeID, limit)
}
func (f *fakeEngine) ListOpenConflicts(ctx context.Context, companyID string, limit int) ([]ConflictResponse, error) {
	return nil, nil
}
func (f *fakeEngine) ResolveConflict(ctx context.Context, companyID, conflictID, actorID string, req ResolveConflictRequest) (ConflictResponse, error) {
	return ConflictResponse{}, nil
}

func historyTestContext(t *testing.T, target, companyID, employeeID, userID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set("company_id", companyID)
	c.Set("employee_id", employeeID)
	c.Set("user_id", userID)
	return c, w
}

func TestHandler_GetHistory_LogsReadAccess(t *testing.T) {
	companyID := uuid.New().String()
	employeeID := uuid.New().String()

	engine := &fakeEngine{historyFn: func(ctx context.Context, c, e string, limit int) ([]EventResponse, error) {
		return []EventResponse{}, nil
	}}
	recorder := &fakeRecorder{}
	h := NewHandler(engine, recorder)

	c, w := historyTestContext(t, "/attendance/events", companyID, employeeID, "user-1")
	h.GetHistory(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, recorder.async, 1)
	assert.Equal(t, audit.ActionReadAccess, recorder.async[0].Action)
	assert.Equal(t, "user-1", recorder.async[0].ActorID)
	assert.Equal(t, employeeID, recorder.async[0].TargetID)
}

func TestHandler_GetHistory_SupervisorOverrideLogsSubject(t *testing.T) {
	companyID := uuid.New().String()
	subjectID := uuid.New().String()

	var queried string
	engine := &fakeEngine{historyFn: func(ctx context.Context, c, e string, limit int) ([]EventResponse, error) {
		queried = e
		return []EventResponse{}, nil
	}}
	recorder := &fakeRecorder{}
	h := NewHandler(engine, recorder)

	c, w := historyTestContext(t, "/attendance/events?employee_id="+subjectID, companyID, uuid.New().String(), "supervisor-1")
	h.GetHistory(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, subjectID, queried)
	assert.Len(t, recorder.async, 1)
	assert.Equal(t, subjectID, recorder.async[0].TargetID)
}

func TestHandler_GetHistory_FailedReadNotLogged(t *testing.T) {
	engine := &fakeEngine{historyFn: func(ctx context.Context, c, e string, limit int) ([]EventResponse, error) {
		return nil, errors.New("storage down")
	}}
	recorder := &fakeRecorder{}
	h := NewHandler(engine, recorder)

	c, w := historyTestContext(t, "/attendance/events", uuid.New().String(), uuid.New().String(), "user-1")
	h.GetHistory(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, recorder.async)
}
