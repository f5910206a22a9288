package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func identityCmd(a *app) *cobra.Command {
	var (
		name  string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show or change the local member identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if reset {
				if err := a.identity.Clear(ctx); err != nil {
					return err
				}
			}
			if name = strings.TrimSpace(name); name != "" {
				if err := a.identity.SetDisplayName(ctx, name); err != nil {
					return err
				}
			}

			identity, err := a.identity.Identity(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "member id:    %s\n", identity.MemberID)
			fmt.Fprintf(out, "display name: %s\n", identity.DisplayName)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Set the display name")
	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the member id and display name")
	return cmd
}
