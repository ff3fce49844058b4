package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/api"
	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/service"
)

func newDealsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deals",
		Aliases: []string{"deal"},
		Short:   "List deals and download their PDFs",
	}
	cmd.AddCommand(newDealsListCmd(a), newDealsDownloadCmd(a), newDealsDownloadAllCmd(a))
	return cmd
}

func newDealsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list BATCH_ID",
		Short: "List the deals extracted from a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			deals, err := a.client.ListDeals(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printer.Print(deals, render.Deals(deals))
		},
	}
}

func dealPart(s string) (models.DealPart, error) {
	part := models.DealPart(s)
	if _, err := api.DealPDFPath(1, part); err != nil {
		return "", err
	}
	return part, nil
}

func newDealsDownloadCmd(a *app) *cobra.Command {
	var part, out string
	cmd := &cobra.Command{
		Use:   "download DEAL_ID -o FILE",
		Short: "Download the PDF of one deal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "deal")
			if err != nil {
				return err
			}
			p, err := dealPart(part)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			if out == "" {
				out = service.DealFileName(models.Deal{ID: id}, p)
			}
			rc, err := a.client.DownloadDeal(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			defer rc.Close()
			if err := service.WriteFileAtomic(out, rc); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.printer.Messagef("Saved %s", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&part, "part", string(models.DealPartFull), "full, spending-unit or receiving-unit")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func newDealsDownloadAllCmd(a *app) *cobra.Command {
	var part, dir string
	cmd := &cobra.Command{
		Use:   "download-all BATCH_ID -d DIR",
		Short: "Download the PDFs of every deal of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			p, err := dealPart(part)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			svc := service.NewReviewService(a.client, a.client, a.cfg.DownloadConcurrency, a.logger)
			paths, err := svc.DownloadDeals(cmd.Context(), id, dir, p)
			if err != nil {
				return err
			}
			return a.printer.Print(paths, func(s render.Styles) string {
				t := render.NewTable(fmt.Sprintf("Downloaded %d deals", len(paths)), "FILE")
				for _, path := range paths {
					t.AddRow(path)
				}
				return t.View(s)
			})
		},
	}
	cmd.Flags().StringVar(&part, "part", string(models.DealPartFull), "full, spending-unit or receiving-unit")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	return cmd
}
