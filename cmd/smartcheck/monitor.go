package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/progress"
	"smartcheck/internal/core/service"
)

func newMonitorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Follow batches until none is processing",
		Long: `Polls the batch list and shows every batch with its pipeline stage until
nothing is processing. Interrupting the monitor does not affect server-side
processing; run it again to resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			return a.follow(cmd.Context(), progress.NewBoard(a.cfg.Stages(), a.cfg.Placeholder()))
		},
	}
}

// follow runs a monitor over board and renders it as it changes.
func (a *app) follow(ctx context.Context, board *progress.Board) error {
	view := &boardView{a: a, board: render.NewBoard(board.Stages(), 40), stages: board.Stages()}
	m := service.NewMonitor(a.client, board, a.cfg.PollInterval, a.logger,
		service.WithGuard(a.breaker()),
		service.OnUpdate(view.update),
	)
	err := m.Run(ctx)

	jobs := board.Jobs()
	if perr := a.printer.Print(jobs, func(s render.Styles) string {
		return view.board.View(jobs, s)
	}); perr != nil && err == nil {
		err = perr
	}
	return err
}

// boardView redraws the board in table mode whenever a job changes stage or
// status. Placeholder ticks within a stage are not printed.
type boardView struct {
	a      *app
	board  *render.Board
	stages progress.Stages
	last   string
}

func (v *boardView) update(jobs []progress.Job) {
	if v.a.printer.Format() != render.FormatTable {
		return
	}
	var key strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&key, "%d:%d:%s;", j.ID, v.stages.Index(j.Progress), j.Status)
	}
	if key.String() == v.last {
		return
	}
	v.last = key.String()
	fmt.Fprint(v.a.stdout, v.board.View(jobs, v.a.printer.Styles()))
}
