package options

import (
	"os"
	"strconv"

	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
)

// AzurePrincipalID is the object ID of the user, service principal, or group
// to audit. Validated before any network call is made.
func AzurePrincipalID() cfg.Param {
	return cfg.NewParam[string](
		"principal-id",
		"Object ID of the principal to audit (hyphenated UUID or 32 hex characters)",
	).WithShortcode("p").AsRequired()
}

// AzureSubscription scopes the PIM RBAC fan-out. Default enumerates every
// subscription visible to the caller.
func AzureSubscription() cfg.Param {
	return cfg.NewParam[[]string](
		"subscription",
		"The Azure subscription to use. Can be a subscription ID or 'all'.",
	).WithShortcode("s").WithDefault([]string{"all"})
}

func AzureWorkerCount() cfg.Param {
	return cfg.NewParam[int]("workers", "Number of concurrent workers for per-subscription scans").
		WithShortcode("w").
		WithDefault(5)
}

// AzureCallTimeout bounds each individual remote call. There are no retries:
// a call either succeeds within its deadline or its result is absent for the
// run. QUASAR_TIMEOUT (seconds) overrides the default.
func AzureCallTimeout() cfg.Param {
	return cfg.NewParam[int]("timeout", "Per-call timeout in seconds for remote API calls").
		WithShortcode("t").
		WithDefault(defaultTimeoutSeconds())
}

func defaultTimeoutSeconds() int {
	if v := os.Getenv("QUASAR_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 30
}

func SkipAzureRBAC() cfg.Param {
	return cfg.NewParam[bool]("skip-azure-rbac", "Skip resolution of Azure RBAC role assignments").
		WithDefault(false)
}

func SkipGroupExpansion() cfg.Param {
	return cfg.NewParam[bool]("skip-groups", "Skip transitive group membership expansion").
		WithDefault(false)
}

func SkipEntraRoles() cfg.Param {
	return cfg.NewParam[bool]("skip-entra-roles", "Skip resolution of Entra directory roles").
		WithDefault(false)
}

func SkipPIM() cfg.Param {
	return cfg.NewParam[bool]("skip-pim", "Skip the PIM eligible role scan").
		WithDefault(false)
}

func OutputDir() cfg.Param {
	return cfg.NewParam[string]("output", "Directory to write report files to").
		WithShortcode("o").
		WithDefault(".")
}

// AzureAuditBaseOptions provides the options shared by every resolution link.
func AzureAuditBaseOptions() []cfg.Param {
	return []cfg.Param{
		AzurePrincipalID(),
		AzureCallTimeout(),
		OutputDir(),
	}
}
