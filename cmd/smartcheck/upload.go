package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/adapters/source"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/progress"
	"smartcheck/internal/core/service"
)

type uploadOutput struct {
	File    string                `json:"file" yaml:"file"`
	Batch   *models.DocumentBatch `json:"batch,omitempty" yaml:"batch,omitempty"`
	Skipped bool                  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// PreviousBatchID is the batch that already holds a skipped file.
	PreviousBatchID int64  `json:"previous_batch_id,omitempty" yaml:"previous_batch_id,omitempty"`
	Error           string `json:"error,omitempty" yaml:"error,omitempty"`
}

func uploadOutputs(results []service.UploadResult) []uploadOutput {
	out := make([]uploadOutput, 0, len(results))
	for _, r := range results {
		o := uploadOutput{File: r.File.Name, Batch: r.Batch, Skipped: r.Skipped}
		if r.Previous != nil {
			o.PreviousBatchID = r.Previous.BatchID
		}
		if r.Err != nil {
			o.Error = r.Err.Error()
		}
		out = append(out, o)
	}
	return out
}

type uploadFlags struct {
	name   string
	force  bool
	source bool
	watch  bool
	detach bool
}

func newUploadCmd(a *app) *cobra.Command {
	var f uploadFlags
	cmd := &cobra.Command{
		Use:   "upload [FILES...]",
		Short: "Upload scanned PDFs and follow their processing",
		Long: `Uploads PDF files one at a time, in the given order. With --source the
files come from the configured scan source (a folder or a scan-station feed)
instead, starting after the last file uploaded from it. Files whose content
was uploaded before are skipped unless --force is given.

After uploading, the new batches are followed until processing ends unless
--detach is given. --watch keeps uploading new files from the scan folder
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !f.source && !f.watch {
				return fmt.Errorf("nothing to upload: pass files or --source")
			}
			if len(args) > 0 && (f.source || f.watch) {
				return fmt.Errorf("files cannot be combined with --source or --watch")
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			return a.upload(cmd.Context(), args, f)
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "batch name (numbered when several files are uploaded)")
	cmd.Flags().BoolVar(&f.force, "force", false, "upload files even if their content was uploaded before")
	cmd.Flags().BoolVar(&f.source, "source", false, "upload new files from the configured scan source")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "keep watching the scan folder for new files")
	cmd.Flags().BoolVar(&f.detach, "detach", false, "do not follow processing after uploading")
	return cmd
}

func (a *app) upload(ctx context.Context, paths []string, f uploadFlags) error {
	store, err := a.db(ctx)
	if err != nil {
		return err
	}
	svc := service.NewUploadService(a.client, store, store, a.cfg.MaxUploadBytes, a.logger)
	opts := service.UploadOptions{
		Name:  f.name,
		Force: f.force,
		OnResult: func(r service.UploadResult) {
			switch {
			case r.Err != nil:
				a.printer.Messagef("✗ %s: %v", r.File.Name, r.Err)
			case r.Skipped:
				a.printer.Messagef("· %s already uploaded as batch %d", r.File.Name, r.Previous.BatchID)
			default:
				a.printer.Messagef("✓ %s → batch %d", r.File.Name, r.Batch.ID)
			}
		},
	}

	if f.watch {
		return a.watch(ctx, svc, opts)
	}

	var results []service.UploadResult
	if len(paths) > 0 {
		results, err = svc.UploadPaths(ctx, paths, opts)
	} else {
		src, key := service.CreateScanSource(a.cfg, a.logger)
		results, err = svc.Sync(ctx, src, key, opts)
	}
	if perr := a.printer.Print(uploadOutputs(results), render.UploadResults(results)); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return err
	}

	failed := 0
	board := progress.NewBoard(a.cfg.Stages(), a.cfg.Placeholder())
	tracked := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if r.Batch != nil {
			board.Track(*r.Batch, a.now())
			tracked++
		}
	}
	if !f.detach && tracked > 0 {
		if err := a.follow(ctx, board); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to upload", failed, len(results))
	}
	return nil
}

// watch uploads what is already waiting in the scan folder, then every new
// file as it settles, until ctx ends.
func (a *app) watch(ctx context.Context, svc *service.UploadService, opts service.UploadOptions) error {
	src, key := service.CreateScanSource(a.cfg, a.logger)
	dir, ok := src.(*source.DirSource)
	if !ok {
		return fmt.Errorf("--watch needs a folder scan source (source_type: dir)")
	}

	events, err := dir.Watch(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Sync(ctx, src, key, opts); err != nil {
		return err
	}
	a.printer.Messagef("Watching %s for new scans (Ctrl+C to stop)", a.cfg.ScanDir)

	for range events {
		// The watermark and the upload ledger make a repeated sync cheap
		// and never upload a file twice.
		if _, err := svc.Sync(ctx, src, key, opts); err != nil {
			if errors.Is(err, ports.ErrAuthExpired) {
				return err
			}
			a.logger.Warn("sync after file event failed", zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
