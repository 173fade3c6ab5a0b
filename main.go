//go:build !gui

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/calloway/folio/internal/format"
	"github.com/calloway/folio/internal/paginate"
	"github.com/calloway/folio/internal/position"
	"github.com/calloway/folio/internal/session"
	"github.com/calloway/folio/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	tocSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFAA00"))

	tocEntryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
)

type model struct {
	sess  *session.Controller
	store *state.Store

	vp     viewport.Model
	width  int
	height int

	showTOC   bool
	toc       []session.OutlineItem
	tocCursor int

	showMarks  bool
	marks      []bookmarkRow
	markCursor int

	quitting bool
}

// bookmarkRow is one saved bookmark resolved against the current
// pagination.
type bookmarkRow struct {
	title string
	token string
	page  int
}

func newModel(sess *session.Controller, store *state.Store) model {
	vp := viewport.New(80, 22)
	return model{sess: sess, store: store, vp: vp, width: 80, height: 24}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showTOC {
			return m.updateTOC(msg)
		}
		if m.showMarks {
			return m.updateMarks(msg)
		}
		switch msg.String() {
		case "right", "l", " ", "pgdown":
			m.sess.GotoPage(m.sess.Current() + 1)
			m.refresh()
			return m, nil

		case "left", "h", "pgup":
			m.sess.GotoPage(m.sess.Current() - 1)
			m.refresh()
			return m, nil

		case "home", "g":
			m.sess.GotoPage(0)
			m.refresh()
			return m, nil

		case "end", "G":
			m.sess.GotoPage(m.sess.PageCount() - 1)
			m.refresh()
			return m, nil

		case "up", "k":
			m.vp.ScrollUp(1)
			return m, nil

		case "down", "j":
			m.vp.ScrollDown(1)
			return m, nil

		case "t":
			if toc, err := m.sess.Outline(); err == nil && len(toc) > 0 {
				m.toc = toc
				m.tocCursor = 0
				m.showTOC = true
			}
			return m, nil

		case "b":
			if bm, err := m.sess.Bookmark(); err == nil && m.store != nil {
				current, _ := m.sess.Progress()
				m.store.AddBookmark(bm.Identity, state.NamedBookmark{
					Title: fmt.Sprintf("Page %d", current),
					Token: bm.Token(),
				})
			}
			return m, nil

		case "B":
			m.loadMarks()
			if len(m.marks) > 0 {
				m.markCursor = 0
				m.showMarks = true
			}
			return m, nil

		case "q", "Q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-3, 1)
		// Terminal cells: one unit wide, one unit tall.
		m.sess.SetViewport(context.Background(), paginate.Viewport{
			Width:  msg.Width,
			Height: m.vp.Height,
			Font:   paginate.FontMetrics{LineHeight: 1, CharWidth: 1},
		})
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m model) updateTOC(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.tocCursor > 0 {
			m.tocCursor--
		}
	case "down", "j":
		if m.tocCursor < len(m.toc)-1 {
			m.tocCursor++
		}
	case "enter":
		m.sess.GotoPage(m.toc[m.tocCursor].Page)
		m.refresh()
		m.showTOC = false
	case "t", "esc", "q":
		m.showTOC = false
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateMarks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.markCursor > 0 {
			m.markCursor--
		}
	case "down", "j":
		if m.markCursor < len(m.marks)-1 {
			m.markCursor++
		}
	case "enter":
		m.sess.GotoPage(m.marks[m.markCursor].page)
		m.refresh()
		m.showMarks = false
	case "d", "x":
		if m.store != nil {
			m.store.RemoveBookmark(m.sess.Identity(), m.marks[m.markCursor].token)
		}
		m.loadMarks()
		if m.markCursor >= len(m.marks) {
			m.markCursor = len(m.marks) - 1
		}
		if len(m.marks) == 0 {
			m.showMarks = false
		}
	case "B", "esc", "q":
		m.showMarks = false
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// loadMarks reads the saved bookmarks and resolves each to a page under
// the current pagination, sorted by position in the book.
func (m *model) loadMarks() {
	m.marks = nil
	if m.store == nil {
		return
	}
	for _, nb := range m.store.Bookmarks(m.sess.Identity()) {
		bm, err := position.ParseToken(nb.Token)
		if err != nil {
			continue
		}
		page, err := m.sess.Locate(bm)
		if err != nil {
			continue
		}
		m.marks = append(m.marks, bookmarkRow{title: nb.Title, token: nb.Token, page: page})
	}
	sort.SliceStable(m.marks, func(i, j int) bool { return m.marks[i].page < m.marks[j].page })
}

// refresh loads the current page into the viewport.
func (m *model) refresh() {
	view, err := m.sess.CurrentPage()
	if err != nil {
		m.vp.SetContent(err.Error())
		return
	}
	m.vp.SetContent(wrapText(view.Text(), m.vp.Width))
	m.vp.GotoTop()
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	if m.showTOC {
		return m.viewTOC()
	}
	if m.showMarks {
		return m.viewMarks()
	}

	title := m.sess.Title()
	if author := m.sess.Author(); author != "" {
		title += " — " + author
	}

	current, total := m.sess.Progress()
	status := statusStyle.Render(fmt.Sprintf("Page %d/%d (%.0f%%)", current, total, m.sess.ProgressPercent()))
	controls := controlsStyle.Render("←/→: page  ↑/↓: scroll  T: contents  b/B: bookmarks  Q: quit")

	return titleStyle.Render(title) + "\n" +
		m.vp.View() + "\n" +
		status + " " + controls
}

func (m model) viewTOC() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Contents"))
	sb.WriteString("\n")

	avail := max(m.height-3, 1)
	start := 0
	if m.tocCursor >= avail {
		start = m.tocCursor - avail + 1
	}
	for i := start; i < len(m.toc) && i < start+avail; i++ {
		e := m.toc[i]
		line := strings.Repeat("  ", e.Level) + e.Title + fmt.Sprintf("  (p.%d)", e.Page+1)
		if i == m.tocCursor {
			sb.WriteString(tocSelectedStyle.Render("> " + line))
		} else {
			sb.WriteString(tocEntryStyle.Render("  " + line))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(controlsStyle.Render("↑/↓: select  ENTER: go  ESC: back"))
	return sb.String()
}

func (m model) viewMarks() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Bookmarks"))
	sb.WriteString("\n")

	avail := max(m.height-3, 1)
	start := 0
	if m.markCursor >= avail {
		start = m.markCursor - avail + 1
	}
	for i := start; i < len(m.marks) && i < start+avail; i++ {
		row := m.marks[i]
		line := fmt.Sprintf("%s  (p.%d)", row.title, row.page+1)
		if i == m.markCursor {
			sb.WriteString(tocSelectedStyle.Render("> " + line))
		} else {
			sb.WriteString(tocEntryStyle.Render("  " + line))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(controlsStyle.Render("↑/↓: select  ENTER: go  D: delete  ESC: back"))
	return sb.String()
}

// wrapText word-wraps text to the given width, preserving paragraph
// breaks. Words longer than the width are split hard.
func wrapText(text string, width int) string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		if len(out) > 0 {
			out = append(out, "")
		}
		line := ""
		for _, word := range strings.Fields(para) {
			for len(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				out = append(out, word[:width])
				word = word[width:]
			}
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func main() {
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Folio - Terminal Book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  folio [options] <file>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSupported formats:\n")
		for _, f := range format.Supported() {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Previous/next page\n")
		fmt.Fprintf(os.Stderr, "  ↑/↓      Scroll within page\n")
		fmt.Fprintf(os.Stderr, "  T        Table of contents\n")
		fmt.Fprintf(os.Stderr, "  b        Save a bookmark on the current page\n")
		fmt.Fprintf(os.Stderr, "  B        List bookmarks (ENTER jumps, D deletes)\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit (position is saved)\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("folio %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No file provided.")
		fmt.Fprintln(os.Stderr, "Try: folio -h")
		os.Exit(1)
	}

	sess := session.New(paginate.Viewport{
		Width:  80,
		Height: 22,
		Font:   paginate.FontMetrics{LineHeight: 1, CharWidth: 1},
	}, nil)
	defer sess.Close()

	if err := sess.Open(context.Background(), flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", openErrorMessage(flag.Arg(0), err))
		os.Exit(1)
	}

	store, err := state.NewStore()
	if err == nil {
		if token := store.Token(sess.Identity()); token != "" {
			if bm, err := position.ParseToken(token); err == nil {
				sess.GotoBookmark(bm)
			}
		}
	}

	m := newModel(sess, store)
	m.refresh()
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if store != nil {
		if bm, err := sess.Bookmark(); err == nil {
			store.SetToken(bm.Identity, bm.Token())
		}
	}
}

// openErrorMessage turns an open failure into a human message.
func openErrorMessage(path string, err error) string {
	switch {
	case errors.Is(err, format.ErrUnsupported):
		return fmt.Sprintf("%s: unsupported file type (supported: %s)", path, strings.Join(format.Supported(), "; "))
	case errors.Is(err, format.ErrEncrypted):
		return fmt.Sprintf("%s: file is encrypted and cannot be opened", path)
	case errors.Is(err, format.ErrCorrupt):
		return fmt.Sprintf("%s: file is damaged or not a valid book", path)
	}
	return err.Error()
}
