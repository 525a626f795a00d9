package azure

import (
	"context"
	"fmt"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/rolemanagement"
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/helpers"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// AzureDirectoryRolesLink resolves administrative Entra directory roles for
// the root identity and for each group it belongs to. Role display names
// live on a separate resource from the assignment and need a second lookup
// per assignment. The same role name can legitimately recur: once directly
// and once per distinct group it is inherited through; those entries are
// kept apart, not collapsed.
type AzureDirectoryRolesLink struct {
	*chain.Base
}

func NewAzureDirectoryRolesLink(configs ...cfg.Config) chain.Link {
	l := &AzureDirectoryRolesLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzureDirectoryRolesLink) Params() []cfg.Param {
	return []cfg.Param{
		options.AzureCallTimeout(),
		options.SkipEntraRoles(),
	}
}

func (l *AzureDirectoryRolesLink) Process(input any) error {
	surface, ok := input.(*types.PermissionSurface)
	if !ok {
		return fmt.Errorf("expected *types.PermissionSurface input, got %T", input)
	}

	if skip, _ := cfg.As[bool](l.Arg("skip-entra-roles")); skip {
		l.Logger.Debug("Entra directory role resolution skipped by configuration")
		return l.Send(surface)
	}

	cred, err := helpers.NewAzureCredential()
	if err != nil {
		message.Warning("Directory role resolution unavailable: %v", err)
		return l.Send(surface)
	}
	graphClient, err := helpers.NewGraphClient(cred)
	if err != nil {
		message.Warning("Directory role resolution unavailable: %v", err)
		return l.Send(surface)
	}

	var assignments []types.DirectoryRoleAssignment

	assignments = append(assignments, l.collectForPrincipal(graphClient, surface.Identity.ObjectID, "")...)
	for _, group := range surface.Groups {
		assignments = append(assignments, l.collectForPrincipal(graphClient, group.GroupID, group.GroupName)...)
	}

	surface.EntraDirectoryRoles = MergeDirectoryRoles(assignments)
	message.Info("Resolved %d Entra directory role assignment(s)", len(surface.EntraDirectoryRoles))
	return l.Send(surface)
}

// collectForPrincipal lists directory role assignments for one principal.
// An empty inheritedFrom label marks direct assignments; otherwise entries
// are tagged inherited through the named group. The listing and every
// per-assignment name lookup each run under their own deadline, so a slow
// listing cannot starve the lookups behind it.
func (l *AzureDirectoryRolesLink) collectForPrincipal(graphClient *msgraphsdk.GraphServiceClient, principalID, inheritedFrom string) []types.DirectoryRoleAssignment {
	timeout := callTimeout(l.Arg)
	listCtx, cancel := context.WithTimeout(l.Context(), timeout)
	defer cancel()

	filter := fmt.Sprintf("principalId eq '%s'", principalID)
	resp, err := graphClient.RoleManagement().Directory().RoleAssignments().Get(listCtx, &rolemanagement.RoleManagementDirectoryRoleAssignmentsRequestBuilderGetRequestConfiguration{
		QueryParameters: &rolemanagement.RoleManagementDirectoryRoleAssignmentsRequestBuilderGetQueryParameters{
			Filter: &filter,
		},
	})
	if err != nil {
		message.Warning("Could not list directory roles for %s: %v (%s)", principalID, err, ClassifyFailure(err))
		return nil
	}

	var roleDefinitionIDs []string
	for _, assignment := range resp.GetValue() {
		roleDefinitionIDs = append(roleDefinitionIDs, helpers.Deref(assignment.GetRoleDefinitionId()))
	}

	return BuildDirectoryRoleAssignments(roleDefinitionIDs, inheritedFrom, func(roleDefinitionID string) string {
		ctx, cancel := context.WithTimeout(l.Context(), timeout)
		defer cancel()
		return l.roleDisplayName(ctx, graphClient, roleDefinitionID)
	})
}

// roleDisplayName looks up the definition behind an assignment. Best effort:
// on failure the raw identifier stands in for the name.
func (l *AzureDirectoryRolesLink) roleDisplayName(ctx context.Context, graphClient *msgraphsdk.GraphServiceClient, roleDefinitionID string) string {
	def, err := graphClient.RoleManagement().Directory().RoleDefinitions().ByUnifiedRoleDefinitionId(roleDefinitionID).Get(ctx, nil)
	if err != nil {
		l.Logger.Debug("directory role definition lookup failed", "roleDefinitionId", roleDefinitionID, "error", err)
		return roleDefinitionID
	}
	if name := def.GetDisplayName(); name != nil && *name != "" {
		return *name
	}
	return roleDefinitionID
}

// BuildDirectoryRoleAssignments materializes listed assignments into typed
// entries, resolving each display name through lookup. Blank definition IDs
// are skipped; inheritedFrom set means the entries are tagged inherited.
func BuildDirectoryRoleAssignments(roleDefinitionIDs []string, inheritedFrom string, lookup func(roleDefinitionID string) string) []types.DirectoryRoleAssignment {
	assignmentType := types.AssignmentDirect
	if inheritedFrom != "" {
		assignmentType = types.AssignmentInherited
	}

	var assignments []types.DirectoryRoleAssignment
	for _, roleDefinitionID := range roleDefinitionIDs {
		if roleDefinitionID == "" {
			continue
		}
		assignments = append(assignments, types.DirectoryRoleAssignment{
			RoleName:         lookup(roleDefinitionID),
			RoleDefinitionID: roleDefinitionID,
			AssignmentType:   assignmentType,
			InheritedFrom:    inheritedFrom,
		})
	}

	return assignments
}

// MergeDirectoryRoles deduplicates directory role assignments on the
// (roleName, assignmentType, inheritedFrom) key, preserving first-seen
// order. A role held directly and inherited via two groups stays three
// entries.
func MergeDirectoryRoles(assignments []types.DirectoryRoleAssignment) []types.DirectoryRoleAssignment {
	seen := make(map[string]bool)
	var merged []types.DirectoryRoleAssignment

	for _, assignment := range assignments {
		key := fmt.Sprintf("%s|%s|%s", assignment.RoleName, assignment.AssignmentType, assignment.InheritedFrom)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, assignment)
	}

	return merged
}
