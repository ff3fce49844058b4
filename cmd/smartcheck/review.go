package main

import (
	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/service"
)

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review BATCH_ID",
		Short: "Show the deals of a batch and the exceptions to handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			svc := service.NewReviewService(a.client, a.client, a.cfg.DownloadConcurrency, a.logger)
			r, err := svc.Review(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printer.Print(r, render.Review(r))
		},
	}
}

const statsPageSize = 100

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize all batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			var all []models.DocumentBatch
			for skip := 0; ; skip += statsPageSize {
				page, err := a.client.ListBatches(cmd.Context(), models.Page{Skip: skip, Limit: statsPageSize})
				if err != nil {
					return err
				}
				all = append(all, page...)
				if len(page) < statsPageSize {
					break
				}
			}
			sum := service.Summarize(all)
			return a.printer.Print(sum, render.Summary(sum))
		},
	}
}
