package rbac

// Role names carried in the role claim of operator tokens.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleAuditor    = "auditor" // compliance, read-only
)

var (
	// WriteRoles may create and update communications.
	WriteRoles = []string{RoleAgent, RoleSupervisor}
	// ReadRoles may list communications and reports.
	ReadRoles = []string{RoleAgent, RoleSupervisor, RoleAuditor}
	// OversightRoles may read the audit trail of a record.
	OversightRoles = []string{RoleSupervisor, RoleAuditor}
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSupervisor, RoleAgent, RoleAuditor:
		return true
	}
	return false
}
