package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/your-org/clipline/internal/metadata"
	"github.com/your-org/clipline/internal/purge"
)

func newPurgeCommand(ctx *cliContext) *cobra.Command {
	var dropEvent bool

	cmd := &cobra.Command{
		Use:   "purge <event-id>",
		Short: "Hard-delete every stored object version for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || eventID <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			objects, err := ctx.openObjects()
			if err != nil {
				return err
			}
			defer objects.Close() //nolint:errcheck

			res := purge.New(objects, store, ctx.logr).Purge(cmd.Context(), eventID)

			if dropEvent {
				if err := store.DeleteEvent(cmd.Context(), eventID); err != nil {
					if !errors.Is(err, metadata.ErrNotFound) {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "event %d has no metadata row\n", eventID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "event %d row deleted\n", eventID)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged event %d: %d object versions deleted, %d errors\n",
				eventID, res.Deleted, res.Errors)
			if res.Errors > 0 {
				return fmt.Errorf("purge finished with %d errors; re-run to retry", res.Errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dropEvent, "drop-event", false, "also delete the event's metadata row")
	return cmd
}
