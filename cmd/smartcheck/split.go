package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/pagemap"
	"smartcheck/internal/core/service"
	"smartcheck/internal/core/splitting"
)

func newSplitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Regroup the pages of a batch into deals",
		Long: `Edits the page-to-deal grouping of a batch. Edits are kept in a local
draft until "split push" sends them to the server or "split discard" drops them.

  smartcheck split show 12
  smartcheck split select 12 7 9-11
  smartcheck split create 12
  smartcheck split assign 12 DEAL_8F3A2C1B
  smartcheck split push 12`,
	}
	cmd.AddCommand(
		newSplitShowCmd(a),
		newSplitSelectCmd(a),
		newSplitEditCmd(a, "clear BATCH_ID", "Clear the page selection", cobra.ExactArgs(1),
			func(ed *splitting.Editor, _ []string) (string, error) {
				ed.ClearSelection()
				return "Selection cleared", nil
			}),
		newSplitEditCmd(a, "create BATCH_ID", "Move the selected pages into a new deal", cobra.ExactArgs(1),
			func(ed *splitting.Editor, _ []string) (string, error) {
				id, err := ed.CreateGroup()
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Created deal %s", id), nil
			}),
		newSplitEditCmd(a, "assign BATCH_ID DEAL", "Move the selected pages into an existing deal", cobra.ExactArgs(2),
			func(ed *splitting.Editor, args []string) (string, error) {
				if err := ed.AssignToGroup(args[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Assigned to %s", args[0]), nil
			}),
		newSplitEditCmd(a, "filter BATCH_ID [DEAL]", "Show only the pages of one deal; no DEAL clears the filter", cobra.RangeArgs(1, 2),
			func(ed *splitting.Editor, args []string) (string, error) {
				if len(args) == 0 {
					ed.ClearFilter()
					return "Filter cleared", nil
				}
				ed.SetFilter(args[0])
				return fmt.Sprintf("Showing %s", args[0]), nil
			}),
		newSplitPushCmd(a),
		newSplitDiscardCmd(a),
	)
	return cmd
}

func (a *app) splitService(ctx context.Context) (*service.SplitService, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	store, err := a.db(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewSplitService(a.client, store, a.logger), nil
}

func newSplitShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show BATCH_ID",
		Short: "Show the pages, deals and selection of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			svc, err := a.splitService(cmd.Context())
			if err != nil {
				return err
			}
			ed, fromDraft, err := svc.Open(cmd.Context(), id)
			if err != nil {
				return err
			}
			if fromDraft {
				a.printer.Messagef("Unsaved draft of batch %d", id)
			}
			return a.printer.Print(ed.Draft(), render.Editor(ed))
		},
	}
}

// parsePages expands "3", "5-7" style arguments into page numbers.
func parsePages(args []string) ([]int, error) {
	var pages []int
	for _, arg := range args {
		start, end, err := pagemap.ParseSpan(arg)
		if err != nil {
			return nil, err
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func newSplitSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select BATCH_ID PAGES...",
		Short: "Toggle pages in the selection",
		Long:  `Toggles every listed page; spans like 5-7 toggle each page in them.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			pages, err := parsePages(args[1:])
			if err != nil {
				return err
			}
			svc, err := a.splitService(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := svc.Edit(cmd.Context(), id, func(ed *splitting.Editor) error {
				for _, p := range pages {
					if err := ed.ToggleSelection(p); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return a.printer.Print(ed.Draft(), render.Editor(ed))
		},
	}
}

// newSplitEditCmd builds a command that applies one editor action to the
// draft of the batch named by the first argument.
func newSplitEditCmd(a *app, use, short string, args cobra.PositionalArgs, action func(*splitting.Editor, []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			svc, err := a.splitService(cmd.Context())
			if err != nil {
				return err
			}
			var msg string
			ed, err := svc.Edit(cmd.Context(), id, func(ed *splitting.Editor) error {
				var err error
				msg, err = action(ed, args[1:])
				return err
			})
			if err != nil {
				return err
			}
			a.printer.Messagef("%s", msg)
			return a.printer.Print(ed.Draft(), render.Editor(ed))
		},
	}
}

func newSplitPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push BATCH_ID",
		Short: "Send the draft grouping to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			svc, err := a.splitService(cmd.Context())
			if err != nil {
				return err
			}
			b, err := svc.Push(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.printer.Messagef("Saved page map of batch %d (%d deals)", b.ID, b.DealsDetected)
			return a.printer.Print(b, render.Batch(b))
		},
	}
}

func newSplitDiscardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discard BATCH_ID",
		Short: "Drop the local draft of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "batch")
			if err != nil {
				return err
			}
			store, err := a.db(cmd.Context())
			if err != nil {
				return err
			}
			if err := service.NewSplitService(a.client, store, a.logger).Discard(cmd.Context(), id); err != nil {
				return err
			}
			a.printer.Messagef("Discarded draft of batch %d", id)
			return nil
		},
	}
}
