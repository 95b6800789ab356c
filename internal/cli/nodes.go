package cli

import (
	"strings"

	"jotline/internal/mutate"

	"github.com/spf13/cobra"
)

func newNodesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node", "n"},
		Short:   "Line editing commands",
	}

	cmd.AddCommand(newNodesAddCmd(app))
	cmd.AddCommand(newNodesShowCmd(app))
	cmd.AddCommand(newNodesEditCmd(app))
	cmd.AddCommand(newNodesSplitCmd(app))
	cmd.AddCommand(newNodesBackspaceCmd(app))
	cmd.AddCommand(newNodesIndentCmd(app, true))
	cmd.AddCommand(newNodesIndentCmd(app, false))
	cmd.AddCommand(newNodesMoveCmd(app))
	cmd.AddCommand(newNodesMoveSelectionCmd(app))
	cmd.AddCommand(newNodesDeleteCmd(app))
	cmd.AddCommand(newNodesToggleCmd(app))
	cmd.AddCommand(newNodesStarCmd(app))
	cmd.AddCommand(newNodesFileCmd(app))
	cmd.AddCommand(newNodesCollapseCmd(app, true))
	cmd.AddCommand(newNodesCollapseCmd(app, false))
	return cmd
}

// runEdit applies op through the core and prints the resulting delta.
func runEdit(cmd *cobra.Command, app *App, op mutate.Op) error {
	s, err := openSession(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	d, err := s.core.ApplyEdit(ctxOf(cmd), op)
	if err != nil {
		return writeErr(cmd, err)
	}
	if !d.Empty() {
		app.mutated = true
	}
	return writeData(cmd, app, d)
}

func newNodesAddCmd(app *App) *cobra.Command {
	var in, after, id string
	var indent int
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a line (appends to the container, or after --after)",
		Example: strings.TrimSpace(`
  jotline nodes add "call the bank"
  jotline nodes add --in tomorrow "[ ] renew passport !!"
  jotline nodes add --in folder:fld-work "weekly review"
  jotline nodes add --after nd-0192... "next line"
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := mutate.Create{
				ID:          id,
				AfterID:     after,
				Content:     strings.Join(args, " "),
				IndentLevel: indent,
			}
			if after == "" || in != "" {
				c, err := parseContainerArg(in, app.now())
				if err != nil {
					return writeErr(cmd, errUsage("--in: %v", err))
				}
				op.Container = c
			}
			return runEdit(cmd, app, op)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Container: date, keyword (today, tomorrow, fri) or folder:<id> (default: today)")
	cmd.Flags().StringVar(&after, "after", "", "Insert after this line, in its group")
	cmd.Flags().StringVar(&id, "id", "", "Use this id instead of generating one")
	cmd.Flags().IntVar(&indent, "indent", 0, "Indent level")
	return cmd
}

func newNodesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, ok := s.core.Nodes.Get(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("node", args[0]))
			}
			return writeData(cmd, app, n)
		},
	}
}

func newNodesEditCmd(app *App) *cobra.Command {
	var clearDue, clearPriority bool
	cmd := &cobra.Command{
		Use:   "edit <id> <content>",
		Short: "Replace a line's content (task tokens are re-parsed)",
		Example: strings.TrimSpace(`
  # Drop a task's due date while keeping its text
  jotline nodes edit nd-0192... "[ ] call the bank" --clear-due
`),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.SetContent{
				ID:            args[0],
				Content:       strings.Join(args[1:], " "),
				ClearDue:      clearDue,
				ClearPriority: clearPriority,
			})
		},
	}
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the task's due date unless the content restates one")
	cmd.Flags().BoolVar(&clearPriority, "clear-priority", false, "Remove the task's priority unless the content restates one")
	return cmd
}

func newNodesSplitCmd(app *App) *cobra.Command {
	var at int
	var newID string
	cmd := &cobra.Command{
		Use:   "split <id>",
		Short: "Split a line at a character offset (Enter)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if at < 0 {
				return writeErr(cmd, errUsage("--at must be >= 0"))
			}
			return runEdit(cmd, app, mutate.Split{ID: args[0], Offset: at, NewID: newID})
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "Character offset into the line's text")
	cmd.Flags().StringVar(&newID, "new-id", "", "Id for the new line")
	return cmd
}

func newNodesBackspaceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backspace <id>",
		Short: "Backspace at the start of a line (merge into the previous line, or delete it when empty)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.DeleteBackward{ID: args[0]})
		},
	}
}

func newNodesIndentCmd(app *App, in bool) *cobra.Command {
	use, short := "indent <id>...", "Indent lines (0 to 1 under a filed anchor links the line)"
	if !in {
		use, short = "outdent <id>...", "Outdent lines (at 0, a linked line is unlinked)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var op mutate.Op
			switch {
			case in && len(args) == 1:
				op = mutate.Indent{ID: args[0]}
			case in:
				op = mutate.IndentMany{IDs: args}
			case len(args) == 1:
				op = mutate.Outdent{ID: args[0]}
			default:
				op = mutate.OutdentMany{IDs: args}
			}
			return runEdit(cmd, app, op)
		},
	}
}

type dropFlags struct {
	before, after, inside string
}

func (f *dropFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.before, "before", "", "Drop before this line")
	cmd.Flags().StringVar(&f.after, "after", "", "Drop after this line")
	cmd.Flags().StringVar(&f.inside, "inside", "", "Drop as the first linked child of this filed line")
	cmd.MarkFlagsMutuallyExclusive("before", "after", "inside")
	cmd.MarkFlagsOneRequired("before", "after", "inside")
}

func (f *dropFlags) drop() mutate.Drop {
	switch {
	case f.before != "":
		return mutate.Drop{TargetID: f.before, Side: mutate.SideBefore}
	case f.inside != "":
		return mutate.Drop{TargetID: f.inside, Side: mutate.SideInside}
	default:
		return mutate.Drop{TargetID: f.after, Side: mutate.SideAfter}
	}
}

func newNodesMoveCmd(app *App) *cobra.Command {
	var df dropFlags
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a line next to, or inside, another line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.Move{ID: args[0], Drop: df.drop()})
		},
	}
	df.register(cmd)
	return cmd
}

func newNodesMoveSelectionCmd(app *App) *cobra.Command {
	var df dropFlags
	cmd := &cobra.Command{
		Use:   "move-selection <id>...",
		Short: "Move several lines as one contiguous block",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.MoveSelection{IDs: args, Drop: df.drop()})
		},
	}
	df.register(cmd)
	return cmd
}

func newNodesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete lines (linked children of a deleted line are unlinked, not lost)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.Delete{IDs: args})
		},
	}
}

func newNodesToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a task's checkbox (a plain line becomes an open task)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.ToggleTask{ID: args[0]})
		},
	}
}

func newNodesStarCmd(app *App) *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "star <id>",
		Short: "Star a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, app, mutate.SetStarred{ID: args[0], Starred: !off})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Remove the star")
	return cmd
}

func newNodesFileCmd(app *App) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "file <id> [folder-id]",
		Short: "File a root-level line into a folder so lines indented under it are linked",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := mutate.SetFolder{ID: args[0]}
			switch {
			case clear && len(args) == 2:
				return writeErr(cmd, errUsage("--clear takes no folder id"))
			case !clear && len(args) == 1:
				return writeErr(cmd, errUsage("missing folder id (or pass --clear)"))
			case !clear:
				op.FolderID = args[1]
			}
			return runEdit(cmd, app, op)
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Unfile the line and unlink its children")
	return cmd
}

func newNodesCollapseCmd(app *App, collapse bool) *cobra.Command {
	use, short := "collapse <id>...", "Hide a line's children in outline output"
	if !collapse {
		use, short = "expand <id>...", "Show a collapsed line's children again"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			for _, id := range args {
				if err := s.core.SetCollapsed(id, collapse); err != nil {
					return writeErr(cmd, err)
				}
			}
			if err := s.saveView(); err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, map[string]any{"collapsed": s.core.View.CollapsedIDs()})
		},
	}
}
