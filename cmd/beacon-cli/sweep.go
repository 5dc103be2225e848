package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beacon/internal/archive"
	"beacon/internal/logger"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired messages and lapsed mutes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.messageStore(cmd.Context())
			if err != nil {
				return err
			}
			prefs, err := ctx.preferenceStore(cmd.Context())
			if err != nil {
				return err
			}
			res, err := archive.NewSweeper(store, prefs, 0, logger.NopLogger()).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s and %s.\n",
				plural(res.Messages, "expired message"), plural(int64(res.Mutes), "lapsed mute"))
			return nil
		},
	}
}
