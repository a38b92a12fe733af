package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role UserRole
		cap  Capability
		want bool
	}{
		{RoleAdministrator, CapManageUsers, true},
		{RoleAdministrator, CapManageBilling, true},
		{RoleAdministrator, CapWorkMaintenance, true},
		{RoleAdministrator, CapSecurityOps, true},
		{RoleResident, CapManageUsers, false},
		{RoleResident, CapSecurityOps, false},
		{RoleSecurity, CapSecurityOps, true},
		{RoleSecurity, CapManageBilling, false},
		{RoleMaintenance, CapWorkMaintenance, true},
		{RoleMaintenance, CapManageMaintenance, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoleCan(tc.role, tc.cap), "%s / %s", tc.role, tc.cap)
	}
}

func TestRoleCanUnknownRole(t *testing.T) {
	assert.False(t, RoleCan(UserRole("JANITOR"), CapManageUsers))
}
