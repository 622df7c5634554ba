package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"siteplan/pkg/task"
	"siteplan/pkg/wbs"
)

// Styles for tree output.
type Styles struct {
	Name      lipgloss.Style
	ID        lipgloss.Style
	Milestone lipgloss.Style
	Percent   lipgloss.Style
	Status    map[task.Status]lipgloss.Style
}

// DefaultStyles returns the default tree styling.
func DefaultStyles() Styles {
	return Styles{
		Name:      lipgloss.NewStyle().Bold(true),
		ID:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Milestone: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Percent:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Status: map[task.Status]lipgloss.Style{
			task.StatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
			task.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			task.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
			task.StatusDelayed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		},
	}
}

// PlainStyles returns unstyled output, used when writing to a pipe or file.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	st := Styles{Name: plain, ID: plain, Milestone: plain, Percent: plain, Status: map[task.Status]lipgloss.Style{}}
	for _, s := range task.Statuses {
		st.Status[s] = plain
	}
	return st
}

// stylesFor picks colored styles only when w is a terminal.
func stylesFor(w io.Writer, noColor bool) Styles {
	if f, ok := w.(*os.File); ok && !noColor && isatty.IsTerminal(f.Fd()) {
		return DefaultStyles()
	}
	return PlainStyles()
}

// renderTree writes the forest with box-drawing guides, one node per line:
//
//	Foundation [completed] 50% (id)
//	├── Excavation [completed] (id)
//	└── Pouring [pending] (id)
func renderTree(w io.Writer, tree []*wbs.Node, st Styles, showIDs bool) {
	for _, n := range tree {
		writeNode(w, n, "", "", st, showIDs)
	}
}

func writeNode(w io.Writer, n *wbs.Node, prefix, branch string, st Styles, showIDs bool) {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(branch)
	b.WriteString(st.Name.Render(n.Name))
	b.WriteString(" ")
	b.WriteString(st.Status[n.Status].Render("[" + string(n.Status) + "]"))
	if n.Milestone {
		b.WriteString(" ")
		b.WriteString(st.Milestone.Render("◆ milestone"))
	}
	if !n.IsLeaf() {
		b.WriteString(" ")
		b.WriteString(st.Percent.Render(fmt.Sprintf("%d%%", wbs.NodeCompletion(n))))
	}
	if showIDs {
		b.WriteString(" ")
		b.WriteString(st.ID.Render("(" + n.ID + ")"))
	}
	fmt.Fprintln(w, b.String())

	childPrefix := prefix
	switch branch {
	case "├── ":
		childPrefix += "│   "
	case "└── ":
		childPrefix += "    "
	}
	for i, c := range n.Children {
		next := "├── "
		if i == len(n.Children)-1 {
			next = "└── "
		}
		writeNode(w, c, childPrefix, next, st, showIDs)
	}
}

// progressBar renders completion as a fixed-width bar.
func progressBar(percent, width int) string {
	filled := percent * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
