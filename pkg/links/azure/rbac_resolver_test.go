package azure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/praetorian-inc/quasar/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	readerRoleID      = "/subscriptions/sub-1/providers/Microsoft.Authorization/roleDefinitions/acdd72a7-3385-48ef-bd42-f606fba81ae7"
	contributorRoleID = "/subscriptions/sub-2/providers/Microsoft.Authorization/roleDefinitions/b24988ac-6180-42a0-ab88-20f7382dd24c"
)

func TestRoleDefinitionGUID(t *testing.T) {
	assert.Equal(t, "acdd72a7-3385-48ef-bd42-f606fba81ae7", RoleDefinitionGUID(readerRoleID))
	assert.Equal(t, "bare-id", RoleDefinitionGUID("bare-id"))
}

func TestBuildResolvedRoles_DeduplicatesAcrossScopes(t *testing.T) {
	raws := []rawAssignment{
		{RoleDefinitionID: readerRoleID, Scope: "/subscriptions/sub-1"},
		{RoleDefinitionID: readerRoleID, Scope: "/subscriptions/sub-1/resourceGroups/rg-app"},
		{RoleDefinitionID: readerRoleID, Scope: "/subscriptions/sub-1"},
	}

	fetches := 0
	fetch := func(raw rawAssignment) (string, types.RolePermissions, error) {
		fetches++
		return "Reader", types.RolePermissions{ID: RoleDefinitionGUID(raw.RoleDefinitionID)}, nil
	}

	roles := BuildResolvedRoles(raws, fetch, func(string, ...any) {})
	require.Len(t, roles, 1)
	assert.Equal(t, 1, fetches, "one lookup per distinct role definition")
	assert.Equal(t, "Reader", roles[0].RoleName)
	assert.Equal(t, "acdd72a7-3385-48ef-bd42-f606fba81ae7", roles[0].RoleDefinitionID)
	assert.Equal(t, []string{"/subscriptions/sub-1", "/subscriptions/sub-1/resourceGroups/rg-app"}, roles[0].Scopes)
}

func TestBuildResolvedRoles_PreservesFirstSeenOrder(t *testing.T) {
	raws := []rawAssignment{
		{RoleDefinitionID: contributorRoleID, Scope: "/subscriptions/sub-2"},
		{RoleDefinitionID: readerRoleID, Scope: "/subscriptions/sub-1"},
	}

	fetch := func(raw rawAssignment) (string, types.RolePermissions, error) {
		return RoleDefinitionGUID(raw.RoleDefinitionID), types.RolePermissions{}, nil
	}

	roles := BuildResolvedRoles(raws, fetch, func(string, ...any) {})
	require.Len(t, roles, 2)
	assert.Equal(t, "b24988ac-6180-42a0-ab88-20f7382dd24c", roles[0].RoleDefinitionID)
	assert.Equal(t, "acdd72a7-3385-48ef-bd42-f606fba81ae7", roles[1].RoleDefinitionID)
}

func TestBuildResolvedRoles_FailedFetchDropsRole(t *testing.T) {
	raws := []rawAssignment{
		{RoleDefinitionID: readerRoleID, Scope: "/subscriptions/sub-1"},
		{RoleDefinitionID: contributorRoleID, Scope: "/subscriptions/sub-2"},
	}

	fetch := func(raw rawAssignment) (string, types.RolePermissions, error) {
		if RoleDefinitionGUID(raw.RoleDefinitionID) == "b24988ac-6180-42a0-ab88-20f7382dd24c" {
			return "", types.RolePermissions{}, errors.New("definition lookup failed")
		}
		return "Reader", types.RolePermissions{}, nil
	}

	var diags []string
	roles := BuildResolvedRoles(raws, fetch, func(format string, args ...any) {
		diags = append(diags, fmt.Sprintf(format, args...))
	})

	require.Len(t, roles, 1)
	assert.Equal(t, "Reader", roles[0].RoleName)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "b24988ac-6180-42a0-ab88-20f7382dd24c")
}

func TestBuildResolvedRoles_Empty(t *testing.T) {
	roles := BuildResolvedRoles(nil, func(rawAssignment) (string, types.RolePermissions, error) {
		t.Fatal("fetch should not be called")
		return "", types.RolePermissions{}, nil
	}, func(string, ...any) {})
	assert.Empty(t, roles)
}

func TestMergePermissionStatements_UnionsCategories(t *testing.T) {
	perms := []*armauthorization.Permission{
		{
			Actions:    []*string{to.Ptr("Microsoft.Compute/*/read"), to.Ptr("Microsoft.Storage/*/read")},
			NotActions: []*string{to.Ptr("Microsoft.Compute/virtualMachines/delete")},
		},
		{
			Actions:     []*string{to.Ptr("Microsoft.Compute/*/read"), to.Ptr("Microsoft.Authorization/*/read")},
			DataActions: []*string{to.Ptr("Microsoft.Storage/storageAccounts/blobServices/containers/blobs/read")},
		},
		nil,
	}

	merged := MergePermissionStatements("acdd72a7-3385-48ef-bd42-f606fba81ae7", perms)

	assert.Equal(t, "acdd72a7-3385-48ef-bd42-f606fba81ae7", merged.ID)
	assert.Equal(t, []string{
		"Microsoft.Authorization/*/read",
		"Microsoft.Compute/*/read",
		"Microsoft.Storage/*/read",
	}, merged.Actions)
	assert.Equal(t, []string{"Microsoft.Compute/virtualMachines/delete"}, merged.NotActions)
	assert.Equal(t, []string{"Microsoft.Storage/storageAccounts/blobServices/containers/blobs/read"}, merged.DataActions)
	assert.Empty(t, merged.NotDataActions)
}
