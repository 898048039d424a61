package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/your-org/clipline/internal/metadata"
)

func newEventsCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List events and their stored renditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			events, err := store.ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events")
				return nil
			}

			variants := make(map[int64][]metadata.VideoVariant, len(events))
			for _, event := range events {
				vs, err := store.ListVariants(cmd.Context(), event.ID)
				if err != nil {
					return err
				}
				variants[event.ID] = vs
			}

			out := renderTable(
				[]string{"ID", "Slug", "Title", "Variants", "Best", "Created"},
				buildEventRows(events, variants),
				1, 4,
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func buildEventRows(events []*metadata.Event, variants map[int64][]metadata.VideoVariant) [][]string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		vs := variants[event.ID]
		best := "-"
		if len(vs) > 0 {
			best = vs[0].QualityLabel
		}
		slug := event.Slug
		if slug == "" {
			slug = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(event.ID, 10),
			slug,
			truncate(event.Title, 40),
			strconv.Itoa(len(vs)),
			best,
			event.CreatedAt.Format("2006-01-02"),
		})
	}
	return rows
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
