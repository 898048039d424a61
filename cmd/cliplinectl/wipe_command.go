package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/clipline/internal/purge"
	"github.com/your-org/clipline/internal/scratch"
)

func newWipeCommand(ctx *cliContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Destroy every stored object version and reset the metadata schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("wipe destroys all media and metadata; re-run with --yes to confirm")
			}

			// Holding the scratch-root lock guarantees no service instance
			// is mid-ingestion while the bucket empties.
			root, err := scratch.NewRoot(ctx.cfg.App.ScratchDir)
			if err != nil {
				return fmt.Errorf("refusing to wipe: %w", err)
			}
			defer root.Close() //nolint:errcheck

			objects, err := ctx.openObjects()
			if err != nil {
				return err
			}
			defer objects.Close() //nolint:errcheck

			res := purge.WipeAll(cmd.Context(), objects, ctx.logr)
			fmt.Fprintf(cmd.OutOrStdout(), "bucket wiped: %d object versions deleted, %d errors\n",
				res.Deleted, res.Errors)

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			if err := store.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset metadata schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "metadata schema reset")

			if res.Errors > 0 {
				return fmt.Errorf("wipe finished with %d errors; re-run to retry", res.Errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive wipe")
	return cmd
}
