package azure

import (
	"context"
	"fmt"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/helpers"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// AzureGroupExpanderLink retrieves the transitive closure of group
// memberships for the resolved identity. The directory service computes the
// closure server-side, so there is no client-side graph walk and no cycle
// handling. The raw collection interleaves directory-role objects; those are
// filtered out here so downstream stages only ever see groups.
type AzureGroupExpanderLink struct {
	*chain.Base
}

func NewAzureGroupExpanderLink(configs ...cfg.Config) chain.Link {
	l := &AzureGroupExpanderLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzureGroupExpanderLink) Params() []cfg.Param {
	return []cfg.Param{
		options.AzureCallTimeout(),
		options.SkipGroupExpansion(),
	}
}

func (l *AzureGroupExpanderLink) Process(input any) error {
	surface, ok := input.(*types.PermissionSurface)
	if !ok {
		return fmt.Errorf("expected *types.PermissionSurface input, got %T", input)
	}

	if skip, _ := cfg.As[bool](l.Arg("skip-groups")); skip {
		l.Logger.Debug("group expansion skipped by configuration")
		return l.Send(surface)
	}

	if surface.Identity.Type == types.PrincipalUnknown {
		l.Logger.Debug("identity unresolved, skipping group expansion")
		return l.Send(surface)
	}

	cred, err := helpers.NewAzureCredential()
	if err != nil {
		message.Warning("Group expansion unavailable: %v", err)
		return l.Send(surface)
	}
	graphClient, err := helpers.NewGraphClient(cred)
	if err != nil {
		message.Warning("Group expansion unavailable: %v", err)
		return l.Send(surface)
	}

	ctx, cancel := context.WithTimeout(l.Context(), callTimeout(l.Arg))
	defer cancel()

	groups, err := l.expandGroups(ctx, graphClient, surface.Identity)
	if err != nil {
		// Non fatal: an unreadable membership graph degrades to an empty set
		message.Warning("Could not expand group memberships for %s: %v (%s)",
			surface.Identity.ObjectID, err, ClassifyFailure(err))
		return l.Send(surface)
	}

	surface.Groups = groups
	message.Info("Principal is a transitive member of %d group(s)", len(groups))
	return l.Send(surface)
}

func (l *AzureGroupExpanderLink) expandGroups(ctx context.Context, graphClient *msgraphsdk.GraphServiceClient, identity types.Identity) ([]types.GroupMembership, error) {
	var (
		result models.DirectoryObjectCollectionResponseable
		err    error
	)

	switch identity.Type {
	case types.PrincipalUser:
		result, err = graphClient.Users().ByUserId(identity.ObjectID).TransitiveMemberOf().Get(ctx, nil)
	case types.PrincipalServicePrincipal:
		result, err = graphClient.ServicePrincipals().ByServicePrincipalId(identity.ObjectID).TransitiveMemberOf().Get(ctx, nil)
	case types.PrincipalGroup:
		result, err = graphClient.Groups().ByGroupId(identity.ObjectID).TransitiveMemberOf().Get(ctx, nil)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transitive memberships: %w", err)
	}

	pageIterator, err := msgraphcore.NewPageIterator[models.DirectoryObjectable](
		result,
		graphClient.GetAdapter(),
		models.CreateDirectoryObjectCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, fmt.Errorf("failed to create page iterator: %w", err)
	}

	var groups []types.GroupMembership
	err = pageIterator.Iterate(ctx, func(obj models.DirectoryObjectable) bool {
		// The collection mixes groups with directory roles; only keep groups.
		group, ok := obj.(*models.Group)
		if !ok {
			return true
		}
		groups = append(groups, types.GroupMembership{
			GroupID:   helpers.Deref(group.GetId()),
			GroupName: helpers.Deref(group.GetDisplayName()),
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to page transitive memberships: %w", err)
	}

	return groups, nil
}
