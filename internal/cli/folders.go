package cli

import (
	"errors"
	"strings"

	"jotline/internal/format"
	"jotline/internal/model"
	"jotline/internal/store"

	"github.com/spf13/cobra"
)

func newFoldersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "folders",
		Aliases: []string{"folder"},
		Short:   "Folder commands",
	}
	cmd.AddCommand(newFoldersAddCmd(app))
	cmd.AddCommand(newFoldersListCmd(app))
	cmd.AddCommand(newFoldersRenameCmd(app))
	cmd.AddCommand(newFoldersDeleteCmd(app))
	cmd.AddCommand(newFoldersShowCmd(app))
	return cmd
}

func newFoldersAddCmd(app *App) *cobra.Command {
	var parent string
	var order int64
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if parent != "" {
				if _, ok := s.db.Folder(parent); !ok {
					return writeErr(cmd, errNotFound("folder", parent))
				}
			}
			f, err := s.core.PutFolder(ctxOf(cmd), model.Folder{
				Name:           strings.Join(args, " "),
				ParentFolderID: parent,
				Order:          order,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.mutated = true
			return writeData(cmd, app, f, "jotline nodes file <node-id> "+f.ID)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent folder id")
	cmd.Flags().Int64Var(&order, "order", 0, "Sort order among siblings")
	return cmd
}

func newFoldersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			fs, err := s.db.Folders(ctxOf(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, fs)
		},
	}
}

func newFoldersRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <folder-id> <name>",
		Short: "Rename a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			f, err := s.db.GetFolder(ctxOf(cmd), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return writeErr(cmd, errNotFound("folder", args[0]))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			f.Name = strings.Join(args[1:], " ")
			f.Slug = ""
			f, err = s.core.PutFolder(ctxOf(cmd), f)
			if err != nil {
				return writeErr(cmd, err)
			}
			app.mutated = true
			return writeData(cmd, app, f)
		},
	}
}

func newFoldersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete a folder no node refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			err = s.core.DeleteFolder(ctxOf(cmd), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return writeErr(cmd, errNotFound("folder", args[0]))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			app.mutated = true
			return writeData(cmd, app, map[string]any{"deleted": args[0]})
		},
	}
}

func newFoldersShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <folder-id>",
		Short: "Show a folder's outline, including anchors filed into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			f, ok := s.db.Folder(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("folder", args[0]))
			}
			tree := s.core.Folder(f.ID)
			return writeData(cmd, app, format.NewOutline(f.Name, tree.Visible()))
		},
	}
}
