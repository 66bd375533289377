package main

import (
	"fmt"

	"comicgrabber/pkg/auth"
	"comicgrabber/pkg/scraper"
	"comicgrabber/pkg/sites"
	"comicgrabber/pkg/ui"

	"github.com/spf13/cobra"
)

// sitesCmd represents the sites command
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List supported sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := scraper.NewRegistry()
		if err := sites.Register(reg, sites.Deps{}); err != nil {
			return err
		}

		ui.PrintHighlight("Supported sites")
		for _, name := range reg.Names() {
			fmt.Printf("  • %-10s %s\n", name, ui.Dim("cookie: "+auth.EnvKey(name)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}
