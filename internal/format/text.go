package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"jotline/internal/model"
	"jotline/internal/outline"
)

type styles struct {
	marker    lipgloss.Style
	done      lipgloss.Style
	star      lipgloss.Style
	projected lipgloss.Style
	overdue   lipgloss.Style
	meta      lipgloss.Style
}

// newStyles picks colors for w's terminal, honoring NO_COLOR and
// CLICOLOR_FORCE. Non-terminal writers get plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	return styles{
		marker:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "244", Dark: "240"}),
		done:      r.NewStyle().Faint(true).Strikethrough(true),
		star:      r.NewStyle().Foreground(lipgloss.Color("214")),
		projected: r.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "62", Dark: "111"}),
		overdue:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("160")),
		meta:      r.NewStyle().Faint(true),
	}
}

// Outline is a rendered list of visible rows.
type Outline struct {
	Title string        `json:"title"`
	Rows  []outline.Row `json:"-"`
	Lines []OutlineLine `json:"rows"`
}

// OutlineLine is the JSON shape of one visible row.
type OutlineLine struct {
	ID          string      `json:"id"`
	Depth       int         `json:"depth"`
	ParentID    string      `json:"parentId,omitempty"`
	HasChildren bool        `json:"hasChildren,omitempty"`
	Collapsed   bool        `json:"collapsed,omitempty"`
	Projected   bool        `json:"projected,omitempty"`
	Overdue     bool        `json:"overdue,omitempty"`
	Node        *model.Node `json:"node"`
}

func NewOutline(title string, rows []outline.Row) Outline {
	o := Outline{Title: title, Rows: rows, Lines: make([]OutlineLine, 0, len(rows))}
	for _, r := range rows {
		o.Lines = append(o.Lines, OutlineLine{
			ID:          r.Node.ID,
			Depth:       r.Depth,
			ParentID:    r.ParentID,
			HasChildren: r.HasChildren,
			Collapsed:   r.Collapsed,
			Projected:   r.Projected,
			Overdue:     r.Overdue,
			Node:        r.Node,
		})
	}
	return o
}

func (o Outline) WriteText(w io.Writer, width int) error {
	st := newStyles(w)
	var b strings.Builder
	if o.Title != "" {
		b.WriteString(o.Title)
		b.WriteByte('\n')
	}
	for _, r := range o.Rows {
		marker := "•"
		if r.HasChildren && r.Collapsed {
			marker = "▸"
		} else if r.HasChildren {
			marker = "▾"
		}
		line := strings.Repeat("  ", r.Depth) + st.marker.Render(marker) + " " + nodeText(st, r.Node)
		switch {
		case r.Overdue && r.Node.Task != nil:
			line += " " + st.overdue.Render("overdue "+string(r.Node.Task.DueDate))
		case r.Projected:
			line += " " + st.projected.Render("↳ "+r.Node.Container.String())
		}
		line += "  " + st.meta.Render(r.Node.ID)
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func nodeText(st styles, n *model.Node) string {
	s := n.Content
	if n.Task != nil {
		if n.Task.Completed {
			s = st.done.Render(s)
		}
		switch n.Task.Priority {
		case model.PriorityLow:
			s += " !"
		case model.PriorityMedium:
			s += " !!"
		case model.PriorityHigh:
			s += " !!!"
		}
		if n.Task.DueDate != "" {
			s += " " + st.meta.Render("@"+string(n.Task.DueDate))
		}
	}
	if n.Starred {
		s = st.star.Render("★") + " " + s
	}
	return s
}

// Tasks is a flat task listing.
type Tasks struct {
	Title string        `json:"title"`
	Nodes []*model.Node `json:"nodes"`
}

func (t Tasks) WriteText(w io.Writer, width int) error {
	st := newStyles(w)
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(t.Title)
		b.WriteByte('\n')
	}
	if len(t.Nodes) == 0 {
		b.WriteString(st.meta.Render("(none)"))
		b.WriteByte('\n')
	}
	for _, n := range t.Nodes {
		due := "          "
		if n.Task != nil && n.Task.DueDate != "" {
			due = string(n.Task.DueDate)
		}
		line := fmt.Sprintf("%s  %s  %s", due, nodeText(st, n), st.meta.Render(n.Container.String()))
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
