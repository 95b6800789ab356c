package cli

import (
	"fmt"

	"jotline/internal/mutate"
	"jotline/internal/outline"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// selectView names the outline a selection's visible order comes from.
type selectView struct {
	day    string
	folder string
}

func (v *selectView) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&v.day, "day", "", "Day whose visible order is used (default: today)")
	cmd.PersistentFlags().StringVar(&v.folder, "folder", "", "Use a folder's visible order instead of a day's")
}

func (v *selectView) tree(cmd *cobra.Command, app *App, s *session) (*outline.Tree, error) {
	if v.folder != "" {
		if _, ok := s.db.Folder(v.folder); !ok {
			return nil, errNotFound("folder", v.folder)
		}
		return s.core.Folder(v.folder), nil
	}
	d, err := parseDateArg(v.day, app.now())
	if err != nil {
		return nil, errUsage("--day: %v", err)
	}
	return s.core.Day(d), nil
}

// restoreSelection rebuilds the state machine from the saved ids. The first
// id is the anchor.
func restoreSelection(ids []string) *mutate.Selection {
	sel := &mutate.Selection{}
	switch len(ids) {
	case 0:
	case 1:
		sel.Click(ids[0])
	default:
		for _, id := range ids {
			sel.ToggleClick(id)
		}
	}
	return sel
}

func newSelectCmd(app *App) *cobra.Command {
	var view selectView
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Block selection over the visible outline",
		Long: `Block selection over the visible outline.

The selection is kept in the data dir's view state between commands. Ranges
follow the visible order of the day (or folder) given with --day / --folder.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, app, &view, nil)
		},
	}
	view.register(cmd)

	step := func(use, short string, nargs cobra.PositionalArgs, fn func(sel *mutate.Selection, visible, args []string)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  nargs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSelect(cmd, app, &view, func(sel *mutate.Selection, visible []string) {
					fn(sel, visible, args)
				})
			},
		}
	}
	cmd.AddCommand(step("click <id>", "Select one line (the anchor)", cobra.ExactArgs(1),
		func(sel *mutate.Selection, _, args []string) { sel.Click(args[0]) }))
	cmd.AddCommand(step("shift <id>", "Extend the selection from the anchor to a line", cobra.ExactArgs(1),
		func(sel *mutate.Selection, visible, args []string) { sel.ShiftClick(visible, args[0]) }))
	cmd.AddCommand(step("toggle <id>", "Add or remove one line", cobra.ExactArgs(1),
		func(sel *mutate.Selection, _, args []string) { sel.ToggleClick(args[0]) }))
	cmd.AddCommand(step("all", "Select every visible line", cobra.NoArgs,
		func(sel *mutate.Selection, visible, _ []string) { sel.SelectAll(visible) }))
	cmd.AddCommand(step("clear", "Clear the selection", cobra.NoArgs,
		func(sel *mutate.Selection, _, _ []string) { sel.Escape() }))

	cmd.AddCommand(newSelectCopyCmd(app, &view))
	cmd.AddCommand(newSelectEditCmd(app, &view, "delete", "Delete the selected lines", (*mutate.Selection).Delete))
	cmd.AddCommand(newSelectEditCmd(app, &view, "indent", "Indent the selected lines", (*mutate.Selection).IndentAll))
	cmd.AddCommand(newSelectEditCmd(app, &view, "outdent", "Outdent the selected lines", (*mutate.Selection).OutdentAll))
	cmd.AddCommand(newSelectDragCmd(app, &view))
	return cmd
}

func runSelect(cmd *cobra.Command, app *App, view *selectView, step func(sel *mutate.Selection, visible []string)) error {
	s, err := openSession(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	tree, err := view.tree(cmd, app, s)
	if err != nil {
		return writeErr(cmd, err)
	}
	visible := tree.VisibleIDs()
	sel := restoreSelection(s.core.View.Selection)
	if step != nil {
		step(sel, visible)
		s.core.View.Selection = sel.IDs(visible)
		if err := s.saveView(); err != nil {
			return writeErr(cmd, err)
		}
	}
	ids := sel.IDs(visible)
	if ids == nil {
		ids = []string{}
	}
	return writeData(cmd, app, map[string]any{
		"state":  sel.State().String(),
		"anchor": sel.Anchor(),
		"ids":    ids,
	})
}

func newSelectCopyCmd(app *App, view *selectView) *cobra.Command {
	var toClipboard bool
	cmd := &cobra.Command{
		Use:   "copy [id]...",
		Short: "Copy lines as text, in visible order (default: the current selection)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			tree, err := view.tree(cmd, app, s)
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := args
			if len(ids) == 0 {
				ids = restoreSelection(s.core.View.Selection).IDs(tree.VisibleIDs())
			}
			text := mutate.Copy(tree, ids)
			if toClipboard {
				if err := clipboard.WriteAll(text); err != nil {
					return writeErr(cmd, fmt.Errorf("clipboard: %w", err))
				}
			}
			if app.Format == "text" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}
			return writeData(cmd, app, map[string]any{"text": text, "clipboard": toClipboard})
		},
	}
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "Also write the text to the system clipboard")
	return cmd
}

func newSelectEditCmd(app *App, view *selectView, use, short string, opOf func(*mutate.Selection, []string) mutate.Op) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			tree, err := view.tree(cmd, app, s)
			if err != nil {
				return writeErr(cmd, err)
			}
			sel := restoreSelection(s.core.View.Selection)
			if sel.State() == mutate.SelectionEmpty {
				return writeErr(cmd, errUsage("nothing selected"))
			}
			return runEdit(cmd, app, opOf(sel, tree.VisibleIDs()))
		},
	}
}

func newSelectDragCmd(app *App, view *selectView) *cobra.Command {
	var df dropFlags
	cmd := &cobra.Command{
		Use:   "drag <id>",
		Short: "Drag a line; dragging a selected line moves the whole selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			tree, err := view.tree(cmd, app, s)
			if err != nil {
				return writeErr(cmd, err)
			}
			sel := restoreSelection(s.core.View.Selection)
			return runEdit(cmd, app, sel.DragOp(tree.VisibleIDs(), args[0], df.drop()))
		},
	}
	df.register(cmd)
	return cmd
}
