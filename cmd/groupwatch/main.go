// Command groupwatch joins ad-hoc location sharing groups and watches them:
// it reports the local position, polls the group, raises geofence alerts
// and serves a live view to a map widget.
//
// Usage:
//
//	groupwatch identity --name Ann
//	groupwatch create --name Hike --expiry 4 --watch
//	groupwatch join ABC123 --name Bob
//	groupwatch watch ABC123 --radius 200 --view
//	groupwatch delete ABC123
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "groupwatch",
		Short:         "Real-time group location sharing with geofence alerts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().String("api-url", "", "Group service base URL")
	root.PersistentFlags().String("store", "", "Identity store driver (memory, sqlite, redis)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(identityCmd(a))
	root.AddCommand(createCmd(a))
	root.AddCommand(joinCmd(a))
	root.AddCommand(watchCmd(a))
	root.AddCommand(deleteCmd(a))

	if err := root.Execute(); err != nil {
		a.close()
		os.Exit(1)
	}
}
