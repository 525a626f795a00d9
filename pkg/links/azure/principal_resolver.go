package azure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/helpers"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// AzurePrincipalResolverLink classifies an object ID as a user, service
// principal, or group. Probes run in that fixed order, each under its own
// timeout, and stop at the first definitive match. A failed probe never
// aborts the sequence; if every probe fails the identity comes back as
// unknown with the most specific failure reason, and the rest of the
// pipeline runs in degraded mode.
type AzurePrincipalResolverLink struct {
	*chain.Base
}

func NewAzurePrincipalResolverLink(configs ...cfg.Config) chain.Link {
	l := &AzurePrincipalResolverLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzurePrincipalResolverLink) Params() []cfg.Param {
	return []cfg.Param{
		options.AzurePrincipalID(),
		options.AzureCallTimeout(),
	}
}

// NormalizeObjectID validates a raw principal identifier and returns it in
// canonical hyphenated form. Accepted shapes are the hyphenated 8-4-4-4-12
// UUID and 32 contiguous hex characters; anything else is rejected before
// any network activity.
func NormalizeObjectID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) != 36 && len(s) != 32 {
		return "", fmt.Errorf("invalid object ID %q: expected a hyphenated UUID or 32 hex characters", raw)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid object ID %q: %w", raw, err)
	}
	return id.String(), nil
}

func (l *AzurePrincipalResolverLink) Process(input any) error {
	principalID, _ := cfg.As[string](l.Arg("principal-id"))

	objectID, err := NormalizeObjectID(principalID)
	if err != nil {
		// The only fatal condition in the pipeline. Surfaces as a nonzero
		// exit with no network calls behind it.
		return err
	}

	timeout := callTimeout(l.Arg)
	surface := &types.PermissionSurface{
		Identity: types.Identity{
			ObjectID: objectID,
			Type:     types.PrincipalUnknown,
		},
	}

	cred, err := helpers.NewAzureCredential()
	if err != nil {
		message.Error("Could not acquire Azure credentials: %v", err)
		surface.Identity.ResolutionError = types.FailureAccessDenied
		return l.Send(surface)
	}

	graphClient, err := helpers.NewGraphClient(cred)
	if err != nil {
		message.Error("Could not create Graph client: %v", err)
		surface.Identity.ResolutionError = types.FailureAccessDenied
		return l.Send(surface)
	}

	surface.Identity = ResolveIdentity(l.Context(), objectID, graphIdentityProbes(graphClient, objectID), timeout,
		func(kind types.PrincipalType, err error) {
			l.Logger.Debug("principal probe failed", "type", kind, "error", err)
		})

	switch surface.Identity.Type {
	case types.PrincipalUnknown:
		message.Warning("Principal %s could not be resolved (%s); continuing with a partial report",
			objectID, surface.Identity.ResolutionError)
	default:
		message.Success("Resolved %s as %s %q", objectID, surface.Identity.Type, surface.Identity.DisplayName)
	}

	return l.Send(surface)
}

// identityProbe resolves the display name for one candidate principal type.
type identityProbe struct {
	Kind  types.PrincipalType
	Fetch func(ctx context.Context) (string, error)
}

// graphIdentityProbes builds the fixed user, service principal, group probe
// sequence against the directory.
func graphIdentityProbes(graphClient *msgraphsdk.GraphServiceClient, objectID string) []identityProbe {
	return []identityProbe{
		{types.PrincipalUser, func(ctx context.Context) (string, error) {
			user, err := graphClient.Users().ByUserId(objectID).Get(ctx, nil)
			if err != nil {
				return "", err
			}
			return helpers.Deref(user.GetDisplayName()), nil
		}},
		{types.PrincipalServicePrincipal, func(ctx context.Context) (string, error) {
			sp, err := graphClient.ServicePrincipals().ByServicePrincipalId(objectID).Get(ctx, nil)
			if err != nil {
				return "", err
			}
			return helpers.Deref(sp.GetDisplayName()), nil
		}},
		{types.PrincipalGroup, func(ctx context.Context) (string, error) {
			group, err := graphClient.Groups().ByGroupId(objectID).Get(ctx, nil)
			if err != nil {
				return "", err
			}
			return helpers.Deref(group.GetDisplayName()), nil
		}},
	}
}

// ResolveIdentity runs the probes in order, each under its own deadline, and
// stops at the first success. A failed probe never aborts the sequence; when
// every probe fails the identity comes back unknown carrying the most
// specific failure reason seen across all probes.
func ResolveIdentity(parent context.Context, objectID string, probes []identityProbe, timeout time.Duration, diag func(kind types.PrincipalType, err error)) types.Identity {
	identity := types.Identity{
		ObjectID: objectID,
		Type:     types.PrincipalUnknown,
	}

	var reason types.ResolutionFailure
	for _, probe := range probes {
		ctx, cancel := context.WithTimeout(parent, timeout)
		displayName, err := probe.Fetch(ctx)
		cancel()

		if err == nil {
			identity.Type = probe.Kind
			identity.DisplayName = displayName
			return identity
		}

		reason = MoreSpecific(reason, ClassifyFailure(err))
		if diag != nil {
			diag(probe.Kind, err)
		}
	}

	if reason == "" {
		reason = types.FailureNotFound
	}
	identity.ResolutionError = reason
	return identity
}

// callTimeout reads the shared per-call timeout argument.
func callTimeout(arg func(string) any) time.Duration {
	seconds, _ := cfg.As[int](arg("timeout"))
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
