// Package ui renders task trees for the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tree"
)

// Row is one rendered line: a task and its depth in the displayed tree.
type Row struct {
	Depth int
	Task  *model.Task
	Last  bool
}

// Rows flattens the subtrees under roots depth-first. task extracts the
// payload from a node value, so stores and views render alike.
func Rows[K comparable, V any](roots []*tree.Node[K, V], task func(V) *model.Task) []Row {
	var rows []Row
	var stack []rowFrame[K, V]
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, rowFrame[K, V]{roots[i], 0, i == len(roots)-1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		rows = append(rows, Row{Depth: f.depth, Task: task(f.node.Value), Last: f.last})
		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, rowFrame[K, V]{children[i], f.depth + 1, i == len(children)-1})
		}
	}
	return rows
}

type rowFrame[K comparable, V any] struct {
	node  *tree.Node[K, V]
	depth int
	last  bool
}

// Renderer writes rows as an indented, styled tree.
type Renderer struct {
	Width       int
	ShowExcerpt bool
	ShowIDs     bool
	styles      Styles
}

// NewRenderer creates a renderer whose color support follows w.
func NewRenderer(w io.Writer, width int) *Renderer {
	return &Renderer{Width: width, styles: NewStyles(lipgloss.NewRenderer(w))}
}

// Render returns the rows, one per line, with titles cut to fit Width.
func (r *Renderer) Render(rows []Row) string {
	var sb strings.Builder
	for _, row := range rows {
		prefix := strings.Repeat("   ", row.Depth) + " └ "
		badge := r.styles.StatusBadge(row.Task.Status)
		title := row.Task.Title
		if r.ShowIDs {
			title = fmt.Sprintf("%s (%s)", title, row.Task.ID.String()[:8])
		}

		used := runewidth.StringWidth(prefix) + lipgloss.Width(badge) + 1
		if r.Width > 0 {
			title = runewidth.Truncate(title, max(r.Width-used, 1), "…")
		}
		style := r.styles.Title
		if row.Task.Status.IsClosed() {
			style = r.styles.Closed
		}

		sb.WriteString(r.styles.Guide.Render(prefix))
		sb.WriteString(badge)
		sb.WriteByte(' ')
		sb.WriteString(style.Render(title))
		if len(row.Task.Tags) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(r.styles.Tag.Render("@" + strings.Join(row.Task.Tags, " @")))
		}
		sb.WriteByte('\n')

		if r.ShowExcerpt {
			if ex := row.Task.Excerpt(); ex != "" {
				indent := strings.Repeat("   ", row.Depth+1) + "   "
				if r.Width > 0 {
					ex = runewidth.Truncate(ex, max(r.Width-runewidth.StringWidth(indent), 1), "…")
				}
				sb.WriteString(indent)
				sb.WriteString(r.styles.Excerpt.Render(ex))
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// Footer renders a divider and a summary line.
func (r *Renderer) Footer(shown, total int) string {
	width := r.Width
	if width <= 0 {
		width = 40
	}
	return r.styles.RenderDivider(width) + "\n" + fmt.Sprintf("%d of %d tasks shown\n", shown, total)
}
