package enums

import "fmt"

// MemberRole identifies an authenticated platform actor.
type MemberRole string

const (
	MemberRoleSuperAdmin MemberRole = "super_admin"
	MemberRoleManager    MemberRole = "manager"
	MemberRoleAgent      MemberRole = "agent"
	MemberRoleDriver     MemberRole = "driver"
	MemberRoleCustomer   MemberRole = "customer"
)

var validMemberRoles = []MemberRole{
	MemberRoleSuperAdmin,
	MemberRoleManager,
	MemberRoleAgent,
	MemberRoleDriver,
	MemberRoleCustomer,
}

func (r MemberRole) String() string {
	return string(r)
}

func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role grants branch-operations access.
func (r MemberRole) IsStaff() bool {
	switch r {
	case MemberRoleSuperAdmin, MemberRoleManager, MemberRoleAgent:
		return true
	default:
		return false
	}
}

func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
