package azure

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/janus-framework/pkg/chain"
	"github.com/praetorian-inc/janus-framework/pkg/chain/cfg"
	"github.com/praetorian-inc/quasar/internal/message"
	"github.com/praetorian-inc/quasar/pkg/links/options"
	"github.com/praetorian-inc/quasar/pkg/outputters"
	"github.com/praetorian-inc/quasar/pkg/types"
)

// AzureSurfaceFormatterLink finalizes the permission surface: it derives the
// summary counts, prints the console digest, and emits the JSON report plus
// Markdown tables for the file outputters.
type AzureSurfaceFormatterLink struct {
	*chain.Base
}

func NewAzureSurfaceFormatterLink(configs ...cfg.Config) chain.Link {
	l := &AzureSurfaceFormatterLink{}
	l.Base = chain.NewBase(l, configs...)
	return l
}

func (l *AzureSurfaceFormatterLink) Params() []cfg.Param {
	return []cfg.Param{
		options.OutputDir(),
	}
}

func (l *AzureSurfaceFormatterLink) Process(input any) error {
	surface, ok := input.(*types.PermissionSurface)
	if !ok {
		return fmt.Errorf("expected *types.PermissionSurface input, got %T", input)
	}

	surface.EnsureArrays()
	surface.Summary = Summarize(surface)
	l.printConsoleDigest(surface)

	outputDir, _ := cfg.As[string](l.Arg("output"))
	baseFilename := fmt.Sprintf("effective-permissions-%s", surface.Identity.ObjectID)
	jsonFilePath := filepath.Join(outputDir, baseFilename+".json")
	mdFilePath := filepath.Join(outputDir, baseFilename+".md")

	if err := l.Send(outputters.NewNamedOutputData(surface, jsonFilePath)); err != nil {
		return fmt.Errorf("failed to send JSON output: %w", err)
	}

	for _, table := range SurfaceTables(surface) {
		if err := l.Send(outputters.NewNamedOutputData(table, mdFilePath)); err != nil {
			return fmt.Errorf("failed to send Markdown output: %w", err)
		}
	}

	message.Success("Report written to %s and %s", jsonFilePath, mdFilePath)
	return nil
}

func (l *AzureSurfaceFormatterLink) printConsoleDigest(surface *types.PermissionSurface) {
	identity := surface.Identity
	name := identity.DisplayName
	if name == "" {
		name = identity.ObjectID
	}

	message.Section("Effective permission surface for %s (%s)", name, identity.Type)
	if identity.ResolutionError != "" {
		message.Warning("Identity resolution was inconclusive: %s", identity.ResolutionError)
	}

	s := surface.Summary
	message.Info("Direct Azure RBAC roles:        %d", s.DirectRoleCount)
	message.Info("Inherited Azure RBAC roles:     %d (via %d group(s))", s.InheritedRoleCount, s.ContributingGroupCount)
	message.Info("Direct directory roles:         %d", s.DirectDirectoryRoleCount)
	message.Info("Inherited directory roles:      %d", s.InheritedDirectoryRoleCount)
	message.Info("PIM eligible directory roles:   %d", s.PimEligibleEntraRoleCount)
	message.Info("PIM eligible Azure RBAC roles:  %d", s.PimEligibleAzureRBACCount)
}

// Summarize derives the report counts from the assembled surface. Only
// groups that actually contribute at least one resolved role count as
// contributing groups.
func Summarize(surface *types.PermissionSurface) types.SurfaceSummary {
	summary := types.SurfaceSummary{
		DirectRoleCount:           len(surface.DirectAzureRBAC),
		PimEligibleEntraRoleCount: len(surface.PimEligible.EntraRoles),
		PimEligibleAzureRBACCount: len(surface.PimEligible.AzureRBAC),
	}

	for _, group := range surface.InheritedFromGroups {
		if len(group.Roles) == 0 {
			continue
		}
		summary.ContributingGroupCount++
		summary.InheritedRoleCount += len(group.Roles)
	}

	for _, role := range surface.EntraDirectoryRoles {
		if role.AssignmentType == types.AssignmentDirect {
			summary.DirectDirectoryRoleCount++
		} else {
			summary.InheritedDirectoryRoleCount++
		}
	}

	return summary
}

// SurfaceTables renders the surface as Markdown tables, one per report
// section. Empty sections still produce a table so the report shape is
// stable across principals.
func SurfaceTables(surface *types.PermissionSurface) []types.MarkdownTable {
	identity := surface.Identity

	rbac := types.MarkdownTable{
		TableHeading: fmt.Sprintf("Azure RBAC Roles\nPrincipal: %s (%s)", identity.ObjectID, identity.Type),
		Headers:      []string{"Role Name", "Source", "Scopes"},
	}
	for _, role := range surface.DirectAzureRBAC {
		rbac.Rows = append(rbac.Rows, []string{role.RoleName, "direct", strings.Join(role.Scopes, ", ")})
	}
	for _, group := range surface.InheritedFromGroups {
		for _, role := range group.Roles {
			rbac.Rows = append(rbac.Rows, []string{role.RoleName, "group: " + group.GroupName, strings.Join(role.Scopes, ", ")})
		}
	}

	directory := types.MarkdownTable{
		TableHeading: "Entra Directory Roles",
		Headers:      []string{"Role Name", "Assignment", "Inherited From"},
	}
	for _, role := range surface.EntraDirectoryRoles {
		directory.Rows = append(directory.Rows, []string{role.RoleName, string(role.AssignmentType), role.InheritedFrom})
	}

	pim := types.MarkdownTable{
		TableHeading: "PIM Eligible Roles",
		Headers:      []string{"Role Name", "Kind", "Scope"},
	}
	for _, role := range surface.PimEligible.EntraRoles {
		pim.Rows = append(pim.Rows, []string{role.RoleName, "directory", ""})
	}
	for _, role := range surface.PimEligible.AzureRBAC {
		pim.Rows = append(pim.Rows, []string{role.RoleName, "azureRBAC", role.Scope})
	}

	return []types.MarkdownTable{rbac, directory, pim}
}
