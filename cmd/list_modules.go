package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/praetorian-inc/quasar/internal/registry"
	"github.com/spf13/cobra"
)

var listModulesCmd = &cobra.Command{
	Use:   "list-modules",
	Short: "Display available Quasar modules in a tree structure",
	Run: func(cmd *cobra.Command, args []string) {
		displayModuleTree()
	},
}

func displayModuleTree() {
	if noColorFlag {
		color.NoColor = true
	}
	bold := color.New(color.Bold)

	hierarchy := registry.GetHierarchy()

	platforms := make([]string, 0, len(hierarchy))
	for platform := range hierarchy {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	for _, platform := range platforms {
		fmt.Printf("\n%s\n", bold.Sprint(platform))

		categories := make([]string, 0, len(hierarchy[platform]))
		for category := range hierarchy[platform] {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		for _, category := range categories {
			fmt.Printf("├─ %s\n", category)

			modules := append([]string(nil), hierarchy[platform][category]...)
			sort.Strings(modules)
			for _, module := range modules {
				description := ""
				if entry, ok := registry.GetRegistryEntry(module); ok {
					description = entry.Module.Metadata().Description
				}
				fmt.Printf("  ├─ %s - %s\n", module, description)
			}
		}
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(listModulesCmd)
}
