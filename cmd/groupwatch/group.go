package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danghamo/groupwatch/internal/app/command"
	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
)

func createCmd(a *app) *cobra.Command {
	var (
		name     string
		display  string
		interval int
		expiry   int
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group and join it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if display == "" {
				display, _ = a.identity.DisplayName(ctx)
			}
			var expiryHours *int
			if expiry > 0 {
				expiryHours = &expiry
			}

			result, err := a.commands.Handle(ctx, command.NewCreateGroupCommand(name, display, interval, expiryHours))
			if err != nil {
				return userError(err)
			}
			meta := result.Data.(group.Meta)
			printMeta(cmd, "Created", meta)

			if watch {
				return runWatch(cmd, a, meta.GroupID, watchOptions{RefreshInterval: interval})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Group name")
	cmd.Flags().StringVar(&display, "display-name", "", "Your display name (defaults to the stored one)")
	cmd.Flags().IntVar(&interval, "interval", 30, "Refresh interval in seconds (10, 30, 60)")
	cmd.Flags().IntVar(&expiry, "expiry", 0, "Expiry in hours (2, 4, 8, 24); 0 never expires")
	cmd.Flags().BoolVar(&watch, "watch", false, "Start watching the group after creating it")
	return cmd
}

func joinCmd(a *app) *cobra.Command {
	var (
		display string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "join <group-id>",
		Short: "Join an existing group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if display == "" {
				display, _ = a.identity.DisplayName(ctx)
			}

			result, err := a.commands.Handle(ctx, command.NewJoinGroupCommand(args[0], display))
			if err != nil {
				return userError(err)
			}
			meta := result.Data.(group.Meta)
			printMeta(cmd, "Joined", meta)

			if watch {
				return runWatch(cmd, a, meta.GroupID, watchOptions{})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&display, "display-name", "", "Your display name (defaults to the stored one)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Start watching the group after joining it")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group-id>",
		Short: "Delete a group for every member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.commands.Handle(cmd.Context(), command.NewDeleteGroupCommand(args[0])); err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s\n", command.NormalizeGroupID(args[0]))
			return nil
		},
	}
}

func printMeta(cmd *cobra.Command, verb string, meta group.Meta) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s group %s", verb, meta.GroupID)
	if meta.Name != "" {
		fmt.Fprintf(out, " (%s)", meta.Name)
	}
	fmt.Fprintln(out)
	if meta.ExpiresAt != nil {
		fmt.Fprintf(out, "Expires at %s\n", meta.ExpiresAt.Local().Format(time.Kitchen))
	}
}

// userError replaces coded errors with their user-facing message
func userError(err error) error {
	if shared.CodeOf(err) == 0 {
		return err
	}
	return fmt.Errorf("%s", shared.UserMessage(err))
}
