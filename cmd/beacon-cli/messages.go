package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"beacon/internal/constants"
	"beacon/internal/messages"
	"beacon/pkg/models"
)

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Inspect and manage archived messages",
	}
	cmd.AddCommand(newMessagesListCommand(ctx))
	cmd.AddCommand(newMessagesReadAllCommand(ctx))
	cmd.AddCommand(newMessagesDeleteCommand(ctx))
	return cmd
}

func newMessagesListCommand(ctx *commandContext) *cobra.Command {
	var (
		filter messages.Filter
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.messageStore(cmd.Context())
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				if list == nil {
					list = []models.PersistedMessage{}
				}
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMessages(cmd, list))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.Group, "group", "g", "", "Only messages in this group")
	cmd.Flags().BoolVarP(&filter.UnreadOnly, "unread", "u", false, "Only unread messages")
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Search title, subtitle and body")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", constants.DefaultLimit, "Maximum rows")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderMessages(cmd *cobra.Command, list []models.PersistedMessage) string {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(list))
	for _, m := range list {
		expires := "never"
		if at, ok := m.ExpiresAt(); ok {
			expires = humanize.Time(at)
		}
		rows = append(rows, []string{
			unreadMarker(out, m.ID, m.Read),
			m.Group,
			truncate(firstNonEmpty(m.Title, m.Body), 40),
			strconv.Itoa(m.Level),
			humanize.Time(m.CreatedAt),
			expires,
		})
	}
	return renderTable(
		[]string{"ID", "Group", "Title", "Level", "Received", "Expires"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func newMessagesReadAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every message read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.messageStore(cmd.Context())
			if err != nil {
				return err
			}
			n, err := store.MarkAllRead(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read.\n", plural(n, "message"))
			return nil
		},
	}
}

func newMessagesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete messages by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.messageStore(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", plural(int64(len(args)), "message"))
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func plural(n int64, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(n) + " " + noun + "s"
}
