package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"quicklaunch/internal/item"
	"quicklaunch/internal/tree"
)

var (
	colorPrimary = lipgloss.Color("#A78BFA")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorError   = lipgloss.Color("#DC2626")

	folderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	appStyle    = lipgloss.NewStyle()
	dimStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
)

func renderApp(a item.Application) string {
	return appStyle.Render(a.Name) + "  " + dimStyle.Render(a.Location)
}

func renderItem(it item.Item) string {
	if it.IsFolder() {
		return folderStyle.Render(it.Name() + "/")
	}
	a, _ := it.Application()
	return renderApp(a)
}

// renderTree prints the root list with folders expanded, in display order.
func renderTree(e *tree.Engine) string {
	var b strings.Builder
	var walk func(containerID string, depth int)
	walk = func(containerID string, depth int) {
		items, ok := e.Items(containerID)
		if !ok {
			return
		}
		tree.SortForDisplay(items)
		for _, it := range items {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(renderItem(it))
			b.WriteString("\n")
			if id, ok := it.FolderID(); ok {
				walk(id, depth+1)
			}
		}
	}
	walk(tree.RootID, 0)
	return b.String()
}

// renderMarkdown renders a chat reply for the terminal, falling back to the
// raw text when rendering fails.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
