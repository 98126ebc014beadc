package rbac

import (
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/stretchr/testify/assert"

	"go-attend/internal/domain"
)

const testModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && r.dom == p.dom && r.obj == p.obj && r.act == p.act
`

type fakeRBACRepo struct {
	employeeRoles   []EmployeeRoleRow
	rolePermissions []RolePermissionRow
}

func (f *fakeRBACRepo) GetEmployeeRoles(companyID string) ([]EmployeeRoleRow, error) {
	return f.employeeRoles, nil
}
func (f *fakeRBACRepo) GetRolePermissions(companyID string) ([]RolePermissionRow, error) {
	return f.rolePermissions, nil
}

func newTestEnforcer(t *testing.T) *casbin.Enforcer {
	t.Helper()
	m, err := model.NewModelFromString(testModel)
	assert.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	assert.NoError(t, err)
	return e
}

func TestService_Enforce_AllowsGrantedPermission(t *testing.T) {
	repo := &fakeRBACRepo{
		employeeRoles: []EmployeeRoleRow{
			{EmployeeID: "emp-1", RoleID: "role-supervisor"},
		},
		rolePermissions: []RolePermissionRow{
			{RoleID: "role-supervisor", Resource: "conflict", Action: "resolve"},
		},
	}

	svc := NewService(repo, newTestEnforcer(t), nil)

	allowed, err := svc.Enforce(domain.EnforceRequest{
		EmployeeID: "emp-1",
		CompanyID:  "company-1",
		Resource:   "conflict",
		Action:     "resolve",
	})

	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestService_Enforce_DeniesUngrantedPermission(t *testing.T) {
	repo := &fakeRBACRepo{
		employeeRoles: []EmployeeRoleRow{
			{EmployeeID: "emp-2", RoleID: "role-employee"},
		},
		rolePermissions: []RolePermissionRow{
			{RoleID: "role-employee", Resource: "attendance", Action: "submit"},
		},
	}

	svc := NewService(repo, newTestEnforcer(t), nil)

	allowed, err := svc.Enforce(domain.EnforceRequest{
		EmployeeID: "emp-2",
		CompanyID:  "company-1",
		Resource:   "conflict",
		Action:     "resolve",
	})

	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestService_Enforce_DeniesUnknownEmployee(t *testing.T) {
	repo := &fakeRBACRepo{
		rolePermissions: []RolePermissionRow{
			{RoleID: "role-admin", Resource: "settings", Action: "manage"},
		},
	}

	svc := NewService(repo, newTestEnforcer(t), nil)

	allowed, err := svc.Enforce(domain.EnforceRequest{
		EmployeeID: "ghost",
		CompanyID:  "company-1",
		Resource:   "settings",
		Action:     "manage",
	})

	assert.NoError(t, err)
	assert.False(t, allowed)
}
