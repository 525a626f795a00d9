package azure

import (
	"testing"

	"github.com/praetorian-inc/quasar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDirectoryRoles_DirectAndInheritedKeptSeparate(t *testing.T) {
	assignments := []types.DirectoryRoleAssignment{
		{RoleName: "Global Reader", AssignmentType: types.AssignmentDirect},
		{RoleName: "Global Reader", AssignmentType: types.AssignmentInherited, InheritedFrom: "SecOps Team"},
		{RoleName: "Global Reader", AssignmentType: types.AssignmentInherited, InheritedFrom: "Audit Readers"},
	}

	merged := MergeDirectoryRoles(assignments)
	require.Len(t, merged, 3, "direct plus two distinct inheritance paths")
}

func TestMergeDirectoryRoles_DropsExactDuplicates(t *testing.T) {
	assignments := []types.DirectoryRoleAssignment{
		{RoleName: "User Administrator", AssignmentType: types.AssignmentInherited, InheritedFrom: "Helpdesk"},
		{RoleName: "User Administrator", AssignmentType: types.AssignmentInherited, InheritedFrom: "Helpdesk"},
		{RoleName: "Global Reader", AssignmentType: types.AssignmentDirect},
	}

	merged := MergeDirectoryRoles(assignments)
	require.Len(t, merged, 2)
	assert.Equal(t, "User Administrator", merged[0].RoleName)
	assert.Equal(t, "Global Reader", merged[1].RoleName)
}

func TestMergeDirectoryRoles_Empty(t *testing.T) {
	assert.Empty(t, MergeDirectoryRoles(nil))
}

func TestBuildDirectoryRoleAssignments_DirectTagging(t *testing.T) {
	names := map[string]string{
		"62e90394-69f5-4237-9190-012177145e10": "Global Administrator",
		"f2ef992c-3afb-46b9-b7cf-a126ee74c451": "Global Reader",
	}

	var lookups []string
	assignments := BuildDirectoryRoleAssignments(
		[]string{"62e90394-69f5-4237-9190-012177145e10", "", "f2ef992c-3afb-46b9-b7cf-a126ee74c451"},
		"",
		func(roleDefinitionID string) string {
			lookups = append(lookups, roleDefinitionID)
			return names[roleDefinitionID]
		})

	require.Len(t, assignments, 2, "blank definition IDs are skipped")
	assert.Len(t, lookups, 2, "no lookup for skipped entries")
	assert.Equal(t, "Global Administrator", assignments[0].RoleName)
	assert.Equal(t, types.AssignmentDirect, assignments[0].AssignmentType)
	assert.Empty(t, assignments[0].InheritedFrom)
}

func TestBuildDirectoryRoleAssignments_InheritedTagging(t *testing.T) {
	assignments := BuildDirectoryRoleAssignments(
		[]string{"f2ef992c-3afb-46b9-b7cf-a126ee74c451"},
		"SecOps Team",
		func(roleDefinitionID string) string { return "Global Reader" })

	require.Len(t, assignments, 1)
	assert.Equal(t, types.AssignmentInherited, assignments[0].AssignmentType)
	assert.Equal(t, "SecOps Team", assignments[0].InheritedFrom)
}
