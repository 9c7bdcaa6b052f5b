package cmd

import (
	"github.com/spf13/cobra"
)

var routesConfigFlag string

var routesCmd = &cobra.Command{
	Use:   "routes [config-file]",
	Short: "Print the route table without opening any socket",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, routes, err := loadRoutes(args, routesConfigFlag)
		if err != nil {
			return err
		}

		cmd.Printf("%d route(s) from %s\n", len(routes), path)
		for _, r := range routes {
			cmd.Printf("  %-24s -> %s\n", r.Source, r.Destination)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringVarP(&routesConfigFlag, "config", "c", "", "Route file to load")
}
