package domain

// Roles seeded for every tenant.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleEmployee   = "employee"
)

// EnforceRequest is the authorization question: may this employee of
// this company perform action on resource.
type EnforceRequest struct {
	EmployeeID string
	CompanyID  string
	Resource   string
	Action     string
}
