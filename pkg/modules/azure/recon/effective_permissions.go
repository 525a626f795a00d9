package recon

import (
	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/registry"
	"github.com/praetorian-inc/quasar/pkg/links/azure"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/outputters"
)

func init() {
	registry.Register("azure", "recon", AzureEffectivePermissions.Metadata().Properties()["id"].(string), *AzureEffectivePermissions)
}

var AzureEffectivePermissions = chain.NewModule(
	cfg.NewMetadata(
		"Effective Permissions",
		"Resolve the complete effective permission surface of a single principal: direct and group-inherited Azure RBAC roles, Entra directory roles, and PIM eligible assignments",
	).WithProperties(map[string]any{
		"id":          "effective-permissions",
		"platform":    "azure",
		"opsec_level": "stealth",
		"authors":     []string{"Praetorian"},
		"references": []string{
			"https://learn.microsoft.com/en-us/azure/role-based-access-control/overview",
			"https://learn.microsoft.com/en-us/entra/identity/role-based-access-control/custom-overview",
			"https://learn.microsoft.com/en-us/entra/id-governance/privileged-identity-management/pim-configure",
		},
	}),
).WithLinks(
	azure.NewAzurePrincipalResolverLink,
	azure.NewAzureGroupExpanderLink,
	azure.NewAzureRBACResolverLink,
	azure.NewAzureDirectoryRolesLink,
	azure.NewAzurePIMScannerLink,
	azure.NewAzureSurfaceFormatterLink,
).WithOutputters(
	outputters.NewRuntimeJSONOutputter,
	outputters.NewRuntimeMarkdownOutputter,
).WithInputParam(
	options.AzurePrincipalID(),
).WithAutoRun()
