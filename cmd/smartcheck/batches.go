package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/service"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func newBatchesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "batches",
		Aliases: []string{"batch"},
		Short:   "List and manage uploaded document batches",
	}
	cmd.AddCommand(
		newBatchesListCmd(a),
		newBatchesShowCmd(a),
		newBatchesRenameCmd(a),
		newBatchesDeleteCmd(a),
		newBatchesDownloadCmd(a),
	)
	return cmd
}

func newBatchesListCmd(a *app) *cobra.Command {
	var page models.Page
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			batches, err := a.client.ListBatches(cmd.Context(), page)
			if err != nil {
				return err
			}
			return a.printer.Print(batches, render.Batches(batches))
		},
	}
	cmd.Flags().IntVar(&page.Skip, "skip", 0, "number of batches to skip")
	cmd.Flags().IntVar(&page.Limit, "limit", 100, "maximum number of batches")
	return cmd
}

func newBatchesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show BATCH_ID",
		Short: "Show one batch with its page map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			b, err := a.client.GetBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printer.Print(b, render.Batch(b))
		},
	}
}

func newBatchesRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename BATCH_ID NAME",
		Short: "Rename a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			name := args[1]
			b, err := a.client.UpdateBatch(cmd.Context(), id, models.DocumentBatchUpdate{Name: &name})
			if err != nil {
				return err
			}
			return a.printer.Print(b, render.Batch(b))
		},
	}
}

func newBatchesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete BATCH_ID",
		Short: "Delete a batch and its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.client.DeleteBatch(cmd.Context(), id); err != nil {
				return err
			}
			// A pending grouping draft of a deleted batch is useless.
			if store, err := a.db(cmd.Context()); err == nil {
				_ = store.DeleteDraft(cmd.Context(), id)
			}
			a.printer.Messagef("Deleted batch %d", id)
			return nil
		},
	}
}

func newBatchesDownloadCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download BATCH_ID -o FILE",
		Short: "Download the original PDF of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("batch-%d.pdf", id)
			}
			rc, err := a.client.DownloadBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer rc.Close()
			if err := service.WriteFileAtomic(out, rc); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			if info, err := os.Stat(out); err == nil {
				a.printer.Messagef("Saved %s (%d bytes)", out, info.Size())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default batch-ID.pdf)")
	return cmd
}
