package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gtgtree/gtgtree/pkg/loader"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

func addCmd(a *app) *cobra.Command {
	var parent string
	var tags []string
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task, optionally under a parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			var n *tasks.Node
			if parent != "" {
				pid, err := uuid.Parse(parent)
				if err != nil {
					return fmt.Errorf("invalid --parent %q: %w", parent, err)
				}
				n, err = store.NewChild(args[0], pid)
				if err != nil {
					return err
				}
			} else if n, err = store.New(args[0]); err != nil {
				return err
			}
			if len(tags) > 0 {
				if err := store.Update(n.ID(), func(t *model.Task) { t.Tags = tags }); err != nil {
					return err
				}
			}

			if err := loader.SaveToFile(store, a.cfg.Tasks.Path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent task id")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags (without @)")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	var propagate, toggle bool
	cmd := &cobra.Command{
		Use:   "status [id] [active|done|dismissed]",
		Short: "Change a task's status",
		Long: `Change a task's status. Reactivating a task reactivates its closed
ancestors. With --propagate, descendants take the same status.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}

			switch {
			case toggle:
				err = store.ToggleStatus(id, propagate)
			case len(args) == 2:
				status := model.Status(args[1])
				if !status.IsValid() {
					return fmt.Errorf("unknown status %q", args[1])
				}
				err = store.SetStatus(id, status, propagate)
			default:
				return errors.New("give a status or --toggle")
			}
			if err != nil {
				return err
			}

			if err := loader.SaveToFile(store, a.cfg.Tasks.Path); err != nil {
				return err
			}
			t, err := store.Task(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t, t.Status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&propagate, "propagate", false, "Apply the status to descendants too")
	cmd.Flags().BoolVar(&toggle, "toggle", false, "Toggle between active and done")
	return cmd
}
