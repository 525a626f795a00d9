package azure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/rolemanagement"
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/helpers"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/types"
)

const (
	// Below this many subscriptions the fan-out runs sequentially; worker
	// coordination is not worth it for a handful of calls.
	pimSequentialThreshold = 3

	// Upper bound on concurrent per-subscription eligibility queries.
	pimMaxWorkers = 5
)

// AzurePIMScannerLink resolves time-bound eligible roles for the root
// identity: directory-level eligibility tenant-wide, and RBAC-level
// eligibility per subscription, since the platform exposes no tenant-wide
// endpoint for the latter. Eligibility is not inherited through groups, so
// only the root identity is scanned.
type AzurePIMScannerLink struct {
	*chain.Base
}

func NewAzurePIMScannerLink(configs ...cfg.Config) chain.Link {
	l := &AzurePIMScannerLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzurePIMScannerLink) Params() []cfg.Param {
	return []cfg.Param{
		options.AzureCallTimeout(),
		options.AzureSubscription(),
		options.AzureWorkerCount(),
		options.SkipPIM(),
	}
}

func (l *AzurePIMScannerLink) Process(input any) error {
	surface, ok := input.(*types.PermissionSurface)
	if !ok {
		return fmt.Errorf("expected *types.PermissionSurface input, got %T", input)
	}

	if skip, _ := cfg.As[bool](l.Arg("skip-pim")); skip {
		l.Logger.Debug("PIM scan skipped by configuration")
		return l.Send(surface)
	}

	cred, err := helpers.NewAzureCredential()
	if err != nil {
		message.Warning("PIM scan unavailable: %v", err)
		return l.Send(surface)
	}

	principalID := surface.Identity.ObjectID

	if graphClient, err := helpers.NewGraphClient(cred); err == nil {
		surface.PimEligible.EntraRoles = l.scanDirectory(graphClient, principalID)
	} else {
		message.Warning("PIM directory scan unavailable: %v", err)
	}

	surface.PimEligible.AzureRBAC = l.scanRBAC(cred, principalID)

	message.Info("Found %d eligible Entra role(s) and %d eligible Azure RBAC role(s)",
		len(surface.PimEligible.EntraRoles), len(surface.PimEligible.AzureRBAC))
	return l.Send(surface)
}

// directoryEligibility is one tenant-wide eligibility hit before name
// resolution.
type directoryEligibility struct {
	RoleDefinitionID string
	StartDateTime    *time.Time
	EndDateTime      *time.Time
}

// scanDirectory queries the tenant-wide eligible-role-instance resource and
// resolves each hit's display name with a secondary lookup. The listing and
// every name lookup each run under their own deadline.
func (l *AzurePIMScannerLink) scanDirectory(graphClient *msgraphsdk.GraphServiceClient, principalID string) []types.PimEligibleEntraRole {
	timeout := callTimeout(l.Arg)
	listCtx, cancel := context.WithTimeout(l.Context(), timeout)
	defer cancel()

	filter := fmt.Sprintf("principalId eq '%s'", principalID)
	resp, err := graphClient.RoleManagement().Directory().RoleEligibilityScheduleInstances().Get(listCtx, &rolemanagement.RoleManagementDirectoryRoleEligibilityScheduleInstancesRequestBuilderGetRequestConfiguration{
		QueryParameters: &rolemanagement.RoleManagementDirectoryRoleEligibilityScheduleInstancesRequestBuilderGetQueryParameters{
			Filter: &filter,
		},
	})
	if err != nil {
		message.Warning("Could not scan eligible directory roles: %v (%s)", err, ClassifyFailure(err))
		return nil
	}

	var hits []directoryEligibility
	for _, instance := range resp.GetValue() {
		hits = append(hits, directoryEligibility{
			RoleDefinitionID: helpers.Deref(instance.GetRoleDefinitionId()),
			StartDateTime:    instance.GetStartDateTime(),
			EndDateTime:      instance.GetEndDateTime(),
		})
	}

	return BuildEligibleEntraRoles(hits, func(roleDefinitionID string) string {
		ctx, cancel := context.WithTimeout(l.Context(), timeout)
		defer cancel()
		if def, err := graphClient.RoleManagement().Directory().RoleDefinitions().ByUnifiedRoleDefinitionId(roleDefinitionID).Get(ctx, nil); err == nil {
			if name := def.GetDisplayName(); name != nil && *name != "" {
				return *name
			}
		}
		return roleDefinitionID
	})
}

// BuildEligibleEntraRoles materializes directory eligibility hits, resolving
// each display name through lookup. Blank definition IDs are skipped; lookup
// falls back to the raw identifier on failure.
func BuildEligibleEntraRoles(hits []directoryEligibility, lookup func(roleDefinitionID string) string) []types.PimEligibleEntraRole {
	var eligible []types.PimEligibleEntraRole
	for _, hit := range hits {
		if hit.RoleDefinitionID == "" {
			continue
		}
		eligible = append(eligible, types.PimEligibleEntraRole{
			RoleName:         lookup(hit.RoleDefinitionID),
			RoleDefinitionID: hit.RoleDefinitionID,
			Status:           types.PimStatusEligible,
			StartDateTime:    hit.StartDateTime,
			EndDateTime:      hit.EndDateTime,
		})
	}
	return eligible
}

// rbacEligibility is one per-subscription hit before name resolution.
// RoleDefinitionID is the full ARM path.
type rbacEligibility struct {
	RoleDefinitionID string
	Scope            string
}

// scanRBAC enumerates every visible subscription and queries each one for
// eligible role instances. Small subscription counts run sequentially;
// larger ones fan out over a bounded worker pool where each worker writes to
// its own sink, and the sinks are only read after all workers have joined.
func (l *AzurePIMScannerLink) scanRBAC(cred *azidentity.DefaultAzureCredential, principalID string) []types.PimEligibleRbacRole {
	subscriptions := l.subscriptionsForScan(cred)
	if len(subscriptions) == 0 {
		return nil
	}

	client, err := armauthorization.NewRoleEligibilityScheduleInstancesClient(cred, &arm.ClientOptions{})
	if err != nil {
		message.Warning("PIM RBAC scan unavailable: %v", err)
		return nil
	}

	timeout := callTimeout(l.Arg)
	scan := func(subscription string) []rbacEligibility {
		ctx, cancel := context.WithTimeout(l.Context(), timeout)
		defer cancel()
		hits, err := scanSubscriptionEligibility(ctx, client, subscription, principalID)
		if err != nil {
			message.Warning("Could not scan eligible roles in subscription %s: %v (%s)",
				subscription, err, ClassifyFailure(err))
			return nil
		}
		return hits
	}

	workers, _ := cfg.As[int](l.Arg("workers"))
	if workers <= 0 || workers > pimMaxWorkers {
		workers = pimMaxWorkers
	}

	sinks := make([][]rbacEligibility, len(subscriptions))
	if len(subscriptions) <= pimSequentialThreshold {
		for i, subscription := range subscriptions {
			sinks[i] = scan(subscription)
		}
	} else {
		l.Logger.Debug("scanning subscriptions in parallel", "count", len(subscriptions), "workers", workers)

		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					// Each index is owned by exactly one worker, so the
					// sink slice needs no locking.
					sinks[i] = scan(subscriptions[i])
				}
			}()
		}
		for i := range subscriptions {
			jobs <- i
		}
		close(jobs)
		wg.Wait() // join barrier: sinks are read only past this point
	}

	merged := MergeEligibilitySinks(sinks)
	return l.resolveEligibilityNames(cred, merged, timeout)
}

func scanSubscriptionEligibility(ctx context.Context, client *armauthorization.RoleEligibilityScheduleInstancesClient, subscription, principalID string) ([]rbacEligibility, error) {
	scope := fmt.Sprintf("/subscriptions/%s", subscription)
	pager := client.NewListForScopePager(scope, &armauthorization.RoleEligibilityScheduleInstancesClientListForScopeOptions{
		Filter: to.Ptr(fmt.Sprintf("assignedTo('%s')", principalID)),
	})

	var hits []rbacEligibility
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get eligibility page: %w", err)
		}

		for _, instance := range page.Value {
			if instance == nil || instance.Properties == nil {
				continue
			}
			hits = append(hits, rbacEligibility{
				RoleDefinitionID: helpers.Deref(instance.Properties.RoleDefinitionID),
				Scope:            helpers.Deref(instance.Properties.Scope),
			})
		}
	}

	return hits, nil
}

// MergeEligibilitySinks concatenates per-worker sinks and deduplicates on
// the (roleDefinitionId, scope) composite key. Two subscriptions reporting
// the same pair collapse to one entry.
func MergeEligibilitySinks(sinks [][]rbacEligibility) []rbacEligibility {
	seen := make(map[string]bool)
	var merged []rbacEligibility

	for _, sink := range sinks {
		for _, hit := range sink {
			if hit.RoleDefinitionID == "" {
				continue
			}
			key := RoleDefinitionGUID(hit.RoleDefinitionID) + "|" + hit.Scope
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, hit)
		}
	}

	return merged
}

// resolveEligibilityNames maps role definition GUIDs to display names, best
// effort with one lookup per distinct definition. A failed or timed-out
// lookup keeps the GUID as the displayed name rather than dropping the
// entry.
func (l *AzurePIMScannerLink) resolveEligibilityNames(cred *azidentity.DefaultAzureCredential, hits []rbacEligibility, timeout time.Duration) []types.PimEligibleRbacRole {
	if len(hits) == 0 {
		return nil
	}

	roleDefClient, err := armauthorization.NewRoleDefinitionsClient(cred, &arm.ClientOptions{})
	if err != nil {
		roleDefClient = nil
	}

	names := make(map[string]string)
	out := make([]types.PimEligibleRbacRole, 0, len(hits))
	for _, hit := range hits {
		guid := RoleDefinitionGUID(hit.RoleDefinitionID)

		name, resolved := names[guid]
		if !resolved {
			name = guid
			if roleDefClient != nil {
				ctx, cancel := context.WithTimeout(l.Context(), timeout)
				if resp, err := roleDefClient.GetByID(ctx, hit.RoleDefinitionID, nil); err == nil {
					if resp.Properties != nil && resp.Properties.RoleName != nil {
						name = *resp.Properties.RoleName
					}
				} else {
					l.Logger.Debug("role definition name lookup failed", "roleDefinitionId", guid, "error", err)
				}
				cancel()
			}
			names[guid] = name
		}

		out = append(out, types.PimEligibleRbacRole{
			RoleName:         name,
			RoleDefinitionID: guid,
			Scope:            hit.Scope,
			Status:           types.PimStatusEligible,
		})
	}

	return out
}

func (l *AzurePIMScannerLink) subscriptionsForScan(cred *azidentity.DefaultAzureCredential) []string {
	subscriptions, _ := cfg.As[[]string](l.Arg("subscription"))
	if len(subscriptions) > 0 && !(len(subscriptions) == 1 && strings.EqualFold(subscriptions[0], "all")) {
		return subscriptions
	}

	ctx, cancel := context.WithTimeout(l.Context(), callTimeout(l.Arg))
	defer cancel()

	all, err := helpers.ListSubscriptions(ctx, cred)
	if err != nil {
		message.Warning("Could not enumerate subscriptions for PIM scan: %v (%s)", err, ClassifyFailure(err))
		return nil
	}
	return all
}
