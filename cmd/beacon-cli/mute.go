package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMuteCommand(ctx *commandContext) *cobra.Command {
	var (
		duration time.Duration
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "mute [group]",
		Short: "Mute a group, or list active mutes",
		Long:  "Notifications in a muted group are archived but delivered passive and silent until the mute ends.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := ctx.preferenceStore(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()

			if list || len(args) == 0 {
				if _, err := prefs.PurgeExpiredMutes(cmd.Context(), now); err != nil {
					return err
				}
				mutes, err := prefs.Mutes(cmd.Context())
				if err != nil {
					return err
				}
				if len(mutes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active mutes.")
					return nil
				}
				groups := make([]string, 0, len(mutes))
				for g := range mutes {
					groups = append(groups, g)
				}
				sort.Strings(groups)
				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					rows = append(rows, []string{g, mutes[g].Local().Format(time.RFC3339), humanize.Time(mutes[g])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Group", "Until", "Ends"}, rows, nil))
				return nil
			}

			if duration <= 0 {
				return fmt.Errorf("--for must be positive")
			}
			until := now.Add(duration)
			if err := prefs.SetMute(cmd.Context(), args[0], until); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Muted %s until %s.\n", args[0], until.Local().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "for", time.Hour, "Mute duration")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List active mutes")
	return cmd
}

func newUnmuteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unmute <group>",
		Short: "Remove a group's mute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := ctx.preferenceStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := prefs.ClearMute(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unmuted %s.\n", args[0])
			return nil
		},
	}
}
