package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gtgtree/gtgtree/pkg/adapter"
	"github.com/gtgtree/gtgtree/pkg/filter"
	"github.com/gtgtree/gtgtree/pkg/larch"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

func mirrorCmd(a *app) *cobra.Command {
	var ff filterFlags
	var paths bool
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the filtered tree into a multi-parent tree and print it back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			fc := ff.resolve(cmd, a.cfg.Filter)
			v := filter.New(store, predicate(fc, ff.actionable, store.Now()), fc.Blocking,
				filter.WithLogger(a.logger), filter.WithName("mirror"))
			defer v.Close()

			lt := larch.New[*viewNode](a.logger)
			m, err := adapter.NewMirror(v, lt, adapter.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer m.Close()
			vs := adapter.NewViewStore(lt, adapter.WithLogger(a.logger))
			defer vs.Close()

			out := cmd.OutOrStdout()
			if paths {
				return writePaths(out, lt, vs)
			}
			_, err = io.WriteString(out, vs.String())
			return err
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&paths, "paths", false, "Print every larch path instead of the tree")
	return cmd
}

func writePaths(out io.Writer, lt *larch.Tree[*viewNode], vs *adapter.ViewStore[*viewNode]) error {
	for _, root := range vs.Roots() {
		var err error
		root.Walk(func(n *tree.Node[uuid.UUID, *adapter.Entry[*viewNode]]) bool {
			for _, p := range lt.Paths(n.Value.NodeID) {
				if _, err = fmt.Fprintf(out, "/%s\t%s\n", strings.Join(p, "/"), n.Value); err != nil {
					return false
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
