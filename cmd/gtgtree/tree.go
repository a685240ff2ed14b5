package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gtgtree/gtgtree/pkg/export"
	"github.com/gtgtree/gtgtree/pkg/filter"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
	"github.com/gtgtree/gtgtree/pkg/tree"
	"github.com/gtgtree/gtgtree/pkg/ui"
)

// viewNode is a node of a filtered task view.
type viewNode = tree.Node[uuid.UUID, *tasks.Node]

func viewTask(n *tasks.Node) *model.Task { return n.Value }

// renderOpts are the display flags shared by tree and watch.
type renderOpts struct {
	root    string
	excerpt bool
	ids     bool
	width   int
}

func (r *renderOpts) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&r.root, "root", "", "Only show the subtree of this task id")
	fl.BoolVar(&r.excerpt, "excerpt", false, "Show the first line of each task's content")
	fl.BoolVar(&r.ids, "ids", false, "Show short task ids")
	fl.IntVarP(&r.width, "width", "w", 0, "Output width (default: terminal width)")
}

func treeCmd(a *app) *cobra.Command {
	var ff filterFlags
	var ro renderOpts
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the task tree through a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			fc := ff.resolve(cmd, a.cfg.Filter)
			v := filter.New(store, predicate(fc, ff.actionable, store.Now()), fc.Blocking,
				filter.WithLogger(a.logger), filter.WithName("tree"))
			defer v.Close()

			out := cmd.OutOrStdout()
			if asJSON {
				return export.WriteJSON(out, export.Build(v.Roots(), viewTask, store.Count(false), store.Now()))
			}
			s, err := renderView(out, v, store.Count(false), ro)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, s)
			return err
		},
	}
	ff.register(cmd)
	ro.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the filtered tree as JSON")
	return cmd
}

// renderView draws the view's roots, or the subtree at ro.root, followed by
// a summary footer.
func renderView(out io.Writer, v *filter.View[uuid.UUID, *model.Task], total int, ro renderOpts) (string, error) {
	roots := v.Roots()
	if ro.root != "" {
		id, err := uuid.Parse(ro.root)
		if err != nil {
			return "", fmt.Errorf("invalid --root %q: %w", ro.root, err)
		}
		p, ok := v.ProxyFor(id)
		if !ok {
			return "", fmt.Errorf("task %s is not shown by the current filter", id)
		}
		roots = []*viewNode{p}
	}

	r := ui.NewRenderer(out, outputWidth(out, ro.width))
	r.ShowExcerpt = ro.excerpt
	r.ShowIDs = ro.ids
	rows := ui.Rows(roots, viewTask)
	return r.Render(rows) + r.Footer(len(rows), total), nil
}

// outputWidth returns the explicit width, else the terminal's, else 0 for
// no truncation.
func outputWidth(out io.Writer, explicit int) int {
	if explicit > 0 {
		return explicit
	}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
