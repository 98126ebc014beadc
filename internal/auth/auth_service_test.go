package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	autherrors "go-attend/internal/auth/errors"
	"go-attend/internal/domain"
)

type fakeUserRepo struct {
	createFn     func(ctx context.Context, user *User) error
	getByEmailFn func(ctx context.Context, email string) (*User, error)
	getByIDFn    func(ctx context.Context, id uuid.UUID) (*User, error)
}

func (f *fakeUserRepo) Create(ctx context.Context, user *User) error {
	return f.createFn(ctx, user)
}
func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return f.getByEmailFn(ctx, email)
}
func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return f.getByIDFn(ctx, id)
}

type fakeRBAC struct {
	loaded []string
}

func (f *fakeRBAC) LoadCompanyPolicy(companyID string) error {
	f.loaded = append(f.loaded, companyID)
	return nil
}
func (f *fakeRBAC) Enforce(req domain.EnforceRequest) (bool, error) { return true, nil }

type fakeAuditRecorder struct {
	entries []audit.Entry
	failure error
}

func (f *fakeAuditRecorder) Record(ctx context.Context, companyID string, e audit.Entry) (*audit.AuditRecord, error) {
	f.entries = append(f.entries, e)
	if f.failure != nil {
		return nil, f.failure
	}
	return &audit.AuditRecord{}, nil
}
func (f *fakeAuditRecorder) RecordTx(ctx context.Context, tx *gorm.DB, companyID string, e audit.Entry) (*audit.AuditRecord, error) {
	return f.Record(ctx, companyID, e)
}
func (f *fakeAuditRecorder) RecordAsync(ctx context.Context, tx *gorm.DB, companyID string, e audit.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func testUser(t *testing.T, password string) *User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return &User{
		ID:         uuid.New(),
		CompanyID:  uuid.New(),
		EmployeeID: uuid.New(),
		Email:      "jo@example.com",
		Name:       "Jo",
		Password:   string(hashed),
		Role:       domain.RoleEmployee,
		IsActive:   true,
	}
}

func TestService_Login_Success(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	user := testUser(t, "hunter22")

	repo := &fakeUserRepo{getByEmailFn: func(ctx context.Context, email string) (*User, error) {
		assert.Equal(t, user.Email, email)
		return user, nil
	}}
	rbacSvc := &fakeRBAC{}
	recorder := &fakeAuditRecorder{}

	svc := NewService(repo, rbacSvc, recorder)

	access, refresh, resp, err := svc.Login(context.Background(), user.Email, "hunter22")

	assert.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Equal(t, user.ID.String(), resp.ID)
	assert.Equal(t, []string{user.CompanyID.String()}, rbacSvc.loaded)
	assert.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionLogin, recorder.entries[0].Action)
	assert.Equal(t, audit.OutcomeSuccess, recorder.entries[0].Outcome)
}

func TestService_Login_WrongPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	user := testUser(t, "hunter22")

	repo := &fakeUserRepo{getByEmailFn: func(ctx context.Context, email string) (*User, error) {
		return user, nil
	}}
	recorder := &fakeAuditRecorder{}

	svc := NewService(repo, &fakeRBAC{}, recorder)

	_, _, _, err := svc.Login(context.Background(), user.Email, "wrong")

	assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	// The failed attempt still lands in the trail.
	assert.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFailure, recorder.entries[0].Outcome)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	repo := &fakeUserRepo{getByEmailFn: func(ctx context.Context, email string) (*User, error) {
		return nil, gorm.ErrRecordNotFound
	}}

	svc := NewService(repo, &fakeRBAC{}, &fakeAuditRecorder{})

	_, _, _, err := svc.Login(context.Background(), "nobody@example.com", "x")
	assert.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
}

func TestService_Login_AuditFailureBlocksTokenIssuance(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	user := testUser(t, "hunter22")

	repo := &fakeUserRepo{getByEmailFn: func(ctx context.Context, email string) (*User, error) {
		return user, nil
	}}
	recorder := &fakeAuditRecorder{failure: errors.New("audit store down")}

	svc := NewService(repo, &fakeRBAC{}, recorder)

	access, refresh, _, err := svc.Login(context.Background(), user.Email, "hunter22")

	assert.Error(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestService_RefreshToken_Roundtrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	user := testUser(t, "hunter22")

	repo := &fakeUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*User, error) { return user, nil },
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*User, error) {
			assert.Equal(t, user.ID, id)
			return user, nil
		},
	}

	svc := NewService(repo, &fakeRBAC{}, &fakeAuditRecorder{})

	_, refresh, _, err := svc.Login(context.Background(), user.Email, "hunter22")
	assert.NoError(t, err)

	newAccess, newRefresh, resp, err := svc.RefreshToken(context.Background(), refresh)
	assert.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
	assert.Equal(t, user.Email, resp.Email)
}

func TestService_RefreshToken_Garbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	svc := NewService(&fakeUserRepo{}, &fakeRBAC{}, &fakeAuditRecorder{})

	_, _, _, err := svc.RefreshToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, autherrors.ErrInvalidRefreshToken)
}

func TestService_GetMe_InvalidID(t *testing.T) {
	svc := NewService(&fakeUserRepo{}, &fakeRBAC{}, &fakeAuditRecorder{})

	_, err := svc.GetMe(context.Background(), "nope")
	assert.ErrorIs(t, err, autherrors.ErrInvalidUserID)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	repo := &fakeUserRepo{createFn: func(ctx context.Context, user *User) error {
		return errors.New("duplicate key value violates unique constraint")
	}}

	svc := NewService(repo, &fakeRBAC{}, &fakeAuditRecorder{})

	_, err := svc.Register(context.Background(), RegisterRequest{
		CompanyID:  uuid.New().String(),
		EmployeeID: uuid.New().String(),
		Email:      "jo@example.com",
		Name:       "Jo",
		Password:   "hunter22",
	})
	assert.ErrorIs(t, err, autherrors.ErrEmailAlreadyRegistered)
}

func TestService_Register_HashesPassword(t *testing.T) {
	var created *User
	repo := &fakeUserRepo{createFn: func(ctx context.Context, user *User) error {
		created = user
		return nil
	}}
	rbacSvc := &fakeRBAC{}

	svc := NewService(repo, rbacSvc, &fakeAuditRecorder{})

	companyID := uuid.New()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		CompanyID:  companyID.String(),
		EmployeeID: uuid.New().String(),
		Email:      "new@example.com",
		Name:       "New",
		Password:   "hunter22",
	})

	assert.NoError(t, err)
	assert.NotEqual(t, "hunter22", created.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("hunter22")))
	assert.Equal(t, "new@example.com", resp.Email)
	assert.Equal(t, []string{companyID.String()}, rbacSvc.loaded)
}
