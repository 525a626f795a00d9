package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	u "github.com/mpvl/unique"
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/helpers"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// AzureRBACResolverLink resolves a principal's direct RBAC role assignments
// into fully materialized role records, then repeats the resolution for each
// transitive group so inherited access is attributed to the group it came
// through. A role assigned at five scopes triggers one definition lookup,
// not five: raw assignments are collapsed to distinct role definitions
// before any detail call goes out.
type AzureRBACResolverLink struct {
	*chain.Base
}

func NewAzureRBACResolverLink(configs ...cfg.Config) chain.Link {
	l := &AzureRBACResolverLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzureRBACResolverLink) Params() []cfg.Param {
	return []cfg.Param{
		options.AzureCallTimeout(),
		options.AzureSubscription(),
		options.SkipAzureRBAC(),
	}
}

// rawAssignment is one role assignment as listed, before definition details
// are attached. RoleDefinitionID is the full ARM path.
type rawAssignment struct {
	RoleDefinitionID string
	Scope            string
}

func (l *AzureRBACResolverLink) Process(input any) error {
	surface, ok := input.(*types.PermissionSurface)
	if !ok {
		return fmt.Errorf("expected *types.PermissionSurface input, got %T", input)
	}

	if skip, _ := cfg.As[bool](l.Arg("skip-azure-rbac")); skip {
		l.Logger.Debug("Azure RBAC resolution skipped by configuration")
		return l.Send(surface)
	}

	cred, err := helpers.NewAzureCredential()
	if err != nil {
		message.Warning("Azure RBAC resolution unavailable: %v", err)
		return l.Send(surface)
	}

	subscriptions := l.subscriptionIDs(cred)
	if len(subscriptions) == 0 {
		message.Warning("No reachable subscriptions; Azure RBAC resolution yields no results")
		return l.Send(surface)
	}

	roleDefClient, err := armauthorization.NewRoleDefinitionsClient(cred, &arm.ClientOptions{})
	if err != nil {
		message.Warning("Azure RBAC resolution unavailable: %v", err)
		return l.Send(surface)
	}

	timeout := callTimeout(l.Arg)
	fetch := func(raw rawAssignment) (string, types.RolePermissions, error) {
		ctx, cancel := context.WithTimeout(l.Context(), timeout)
		defer cancel()
		return l.fetchRoleDefinition(ctx, roleDefClient, raw.RoleDefinitionID)
	}

	surface.DirectAzureRBAC = l.resolvePrincipal(cred, subscriptions, surface.Identity.ObjectID, fetch)
	message.Info("Resolved %d direct Azure RBAC role(s)", len(surface.DirectAzureRBAC))

	for _, group := range surface.Groups {
		roles := l.resolvePrincipal(cred, subscriptions, group.GroupID, fetch)
		if len(roles) == 0 {
			continue
		}
		surface.InheritedFromGroups = append(surface.InheritedFromGroups, types.GroupRoles{
			GroupID:   group.GroupID,
			GroupName: group.GroupName,
			Roles:     roles,
		})
	}

	return l.Send(surface)
}

// resolvePrincipal lists raw assignments for one principal across every
// reachable subscription, then materializes one ResolvedRole per distinct
// role definition.
func (l *AzureRBACResolverLink) resolvePrincipal(cred *azidentity.DefaultAzureCredential, subscriptions []string, principalID string, fetch fetchRoleFunc) []types.ResolvedRole {
	var raws []rawAssignment
	timeout := callTimeout(l.Arg)

	for _, subscription := range subscriptions {
		client, err := armauthorization.NewRoleAssignmentsClient(subscription, cred, &arm.ClientOptions{})
		if err != nil {
			message.Warning("Skipping subscription %s: %v", subscription, err)
			continue
		}

		ctx, cancel := context.WithTimeout(l.Context(), timeout)
		subRaws, err := l.listRawAssignments(ctx, client, principalID)
		cancel()
		if err != nil {
			message.Warning("Could not list role assignments in subscription %s: %v (%s)",
				subscription, err, ClassifyFailure(err))
			continue
		}
		raws = append(raws, subRaws...)
	}

	return BuildResolvedRoles(raws, fetch, func(format string, args ...any) {
		message.Warning(format, args...)
	})
}

func (l *AzureRBACResolverLink) listRawAssignments(ctx context.Context, client *armauthorization.RoleAssignmentsClient, principalID string) ([]rawAssignment, error) {
	var raws []rawAssignment

	pager := client.NewListForSubscriptionPager(&armauthorization.RoleAssignmentsClientListForSubscriptionOptions{
		Filter: to.Ptr(fmt.Sprintf("principalId eq '%s'", principalID)),
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get role assignments page: %w", err)
		}

		for _, assignment := range page.Value {
			if assignment == nil || assignment.Properties == nil {
				continue
			}
			raws = append(raws, rawAssignment{
				RoleDefinitionID: helpers.Deref(assignment.Properties.RoleDefinitionID),
				Scope:            helpers.Deref(assignment.Properties.Scope),
			})
		}
	}

	return raws, nil
}

func (l *AzureRBACResolverLink) fetchRoleDefinition(ctx context.Context, client *armauthorization.RoleDefinitionsClient, roleDefinitionID string) (string, types.RolePermissions, error) {
	resp, err := client.GetByID(ctx, roleDefinitionID, nil)
	if err != nil {
		return "", types.RolePermissions{}, fmt.Errorf("failed to get role definition %s: %w", roleDefinitionID, err)
	}

	guid := RoleDefinitionGUID(roleDefinitionID)
	roleName := guid
	var perms []*armauthorization.Permission
	if resp.Properties != nil {
		if resp.Properties.RoleName != nil {
			roleName = *resp.Properties.RoleName
		}
		perms = resp.Properties.Permissions
	}

	return roleName, MergePermissionStatements(guid, perms), nil
}

func (l *AzureRBACResolverLink) subscriptionIDs(cred *azidentity.DefaultAzureCredential) []string {
	subscriptions, _ := cfg.As[[]string](l.Arg("subscription"))
	if len(subscriptions) > 0 && !(len(subscriptions) == 1 && strings.EqualFold(subscriptions[0], "all")) {
		return subscriptions
	}

	ctx, cancel := context.WithTimeout(l.Context(), callTimeout(l.Arg))
	defer cancel()

	all, err := helpers.ListSubscriptions(ctx, cred)
	if err != nil {
		message.Warning("Could not enumerate subscriptions: %v (%s)", err, ClassifyFailure(err))
		return nil
	}
	return all
}

// fetchRoleFunc retrieves the display name and flattened permissions for one
// role definition.
type fetchRoleFunc func(raw rawAssignment) (string, types.RolePermissions, error)

// RoleDefinitionGUID returns the trailing identifier segment of an ARM role
// definition ID.
func RoleDefinitionGUID(roleDefinitionID string) string {
	parts := strings.Split(roleDefinitionID, "/")
	return parts[len(parts)-1]
}

// BuildResolvedRoles collapses raw assignments down to one ResolvedRole per
// distinct role definition. Each distinct definition triggers exactly one
// fetch; the raw list is then re-scanned so the role carries every scope
// that references it, sorted and deduplicated. A failed fetch drops that
// role from the result set with a diagnostic instead of aborting the whole
// resolution.
func BuildResolvedRoles(raws []rawAssignment, fetch fetchRoleFunc, diag func(format string, args ...any)) []types.ResolvedRole {
	distinct := make(map[string]rawAssignment)
	var order []string
	for _, raw := range raws {
		guid := RoleDefinitionGUID(raw.RoleDefinitionID)
		if _, seen := distinct[guid]; !seen {
			distinct[guid] = raw
			order = append(order, guid)
		}
	}

	var roles []types.ResolvedRole
	for _, guid := range order {
		raw := distinct[guid]
		roleName, perms, err := fetch(raw)
		if err != nil {
			diag("Dropping role %s from results: %v", guid, err)
			continue
		}

		var scopes []string
		for _, r := range raws {
			if RoleDefinitionGUID(r.RoleDefinitionID) == guid && r.Scope != "" {
				scopes = append(scopes, r.Scope)
			}
		}
		u.Strings(&scopes)

		roles = append(roles, types.ResolvedRole{
			RoleName:         roleName,
			RoleDefinitionID: guid,
			Scopes:           scopes,
			Permissions:      perms,
		})
	}

	return roles
}

// MergePermissionStatements flattens a role definition's permission
// statements into one RolePermissions. A role may declare several statements
// whose action lists overlap; each of the four categories is unioned
// independently and comes back sorted with duplicates removed.
func MergePermissionStatements(id string, perms []*armauthorization.Permission) types.RolePermissions {
	out := types.RolePermissions{ID: id}

	for _, p := range perms {
		if p == nil {
			continue
		}
		out.Actions = append(out.Actions, derefAll(p.Actions)...)
		out.NotActions = append(out.NotActions, derefAll(p.NotActions)...)
		out.DataActions = append(out.DataActions, derefAll(p.DataActions)...)
		out.NotDataActions = append(out.NotDataActions, derefAll(p.NotDataActions)...)
	}

	u.Strings(&out.Actions)
	u.Strings(&out.NotActions)
	u.Strings(&out.DataActions)
	u.Strings(&out.NotDataActions)
	return out
}

func derefAll(in []*string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}
