package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gtgtree/gtgtree/pkg/loader"
	"github.com/gtgtree/gtgtree/pkg/persist"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

func snapshotCmd(a *app) *cobra.Command {
	var driver, dsn, root string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy the task tree to or from a SQL database",
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: sqlite, sqlite3 or pgx (overrides persist.driver)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database DSN or sqlite path (overrides persist.dsn)")

	target := func(cmd *cobra.Command) (string, string) {
		d, s := a.cfg.Persist.Driver, a.cfg.Persist.DSN
		if cmd.Flags().Changed("driver") {
			d = driver
		}
		if cmd.Flags().Changed("dsn") {
			s = dsn
		}
		return d, s
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the task file into the database, replacing its contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var store *tasks.Store
			var err error
			if root != "" {
				store, err = a.openSubtree(root)
			} else {
				store, err = a.openStore()
			}
			if err != nil {
				return err
			}
			d, s := target(cmd)
			db, err := persist.Open(cmd.Context(), d, s, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.Save(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d tasks to %s\n", n, d)
			return nil
		},
	}
	save.Flags().StringVar(&root, "root", "", "Save only this task and its subtasks")
	cmd.AddCommand(save)

	cmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Rewrite the task file from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, s := target(cmd)
			db, err := persist.Open(cmd.Context(), d, s, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			store := tasks.NewStore(tasks.WithLogger(a.logger))
			if err := db.Load(cmd.Context(), store); err != nil {
				return err
			}
			if err := loader.SaveToFile(store, a.cfg.Tasks.Path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d tasks into %s\n", store.Count(false), a.cfg.Tasks.Path)
			return nil
		},
	})
	return cmd
}
