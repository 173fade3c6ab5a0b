//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

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

type gui struct {
	sess  *session.Controller
	store *state.Store

	content  *widget.Label
	status   *widget.Label
	marks    *widget.Select
	markRows []guiMark
}

// guiMark is one saved bookmark resolved against the current
// pagination.
type guiMark struct {
	label string
	token string
	page  int
}

func (g *gui) refresh() {
	view, err := g.sess.CurrentPage()
	if err != nil {
		g.content.SetText(err.Error())
		return
	}
	g.content.SetText(view.Text())
	current, total := g.sess.Progress()
	g.status.SetText(fmt.Sprintf("Page %d/%d (%.0f%%)", current, total, g.sess.ProgressPercent()))
}

// reloadMarks rebuilds the bookmark dropdown from the store, sorted by
// position in the book.
func (g *gui) reloadMarks() {
	g.markRows = nil
	if g.store == nil || g.marks == nil {
		return
	}
	for _, nb := range g.store.Bookmarks(g.sess.Identity()) {
		bm, err := position.ParseToken(nb.Token)
		if err != nil {
			continue
		}
		page, err := g.sess.Locate(bm)
		if err != nil {
			continue
		}
		g.markRows = append(g.markRows, guiMark{
			label: fmt.Sprintf("%s (p.%d)", nb.Title, page+1),
			token: nb.Token,
			page:  page,
		})
	}
	sort.SliceStable(g.markRows, func(i, j int) bool { return g.markRows[i].page < g.markRows[j].page })

	opts := make([]string, len(g.markRows))
	for i, row := range g.markRows {
		opts[i] = row.label
	}
	g.marks.Options = opts
	g.marks.Refresh()
}

func (g *gui) savePosition() {
	if g.store == nil {
		return
	}
	if bm, err := g.sess.Bookmark(); err == nil {
		g.store.SetToken(bm.Identity, bm.Token())
	}
}

func main() {
	showVersion := flag.Bool("v", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("folio-gui %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No file provided.")
		os.Exit(1)
	}

	// Approximate page capacity for the default window size; fyne
	// handles the actual glyph layout.
	sess := session.New(paginate.Viewport{
		Width:  760,
		Height: 520,
		Font:   paginate.FontMetrics{LineHeight: 22, CharWidth: 9},
	}, nil)
	defer sess.Close()

	if err := sess.Open(context.Background(), flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, _ := state.NewStore()
	if store != nil {
		if token := store.Token(sess.Identity()); token != "" {
			if bm, err := position.ParseToken(token); err == nil {
				sess.GotoBookmark(bm)
			}
		}
	}

	a := app.New()
	title := sess.Title()
	if author := sess.Author(); author != "" {
		title += " — " + author
	}
	w := a.NewWindow(title)

	g := &gui{sess: sess, store: store}
	g.content = widget.NewLabel("")
	g.content.Wrapping = fyne.TextWrapWord
	g.status = widget.NewLabel("")

	prev := widget.NewButton("◀ Prev", func() {
		g.sess.GotoPage(g.sess.Current() - 1)
		g.refresh()
	})
	next := widget.NewButton("Next ▶", func() {
		g.sess.GotoPage(g.sess.Current() + 1)
		g.refresh()
	})
	addMark := widget.NewButton("Bookmark", func() {
		if g.store == nil {
			return
		}
		if bm, err := g.sess.Bookmark(); err == nil {
			current, _ := g.sess.Progress()
			g.store.AddBookmark(bm.Identity, state.NamedBookmark{
				Title: fmt.Sprintf("Page %d", current),
				Token: bm.Token(),
			})
			g.reloadMarks()
		}
	})

	g.marks = widget.NewSelect(nil, func(selected string) {
		for _, row := range g.markRows {
			if row.label == selected {
				g.sess.GotoPage(row.page)
				g.refresh()
				return
			}
		}
	})
	g.marks.PlaceHolder = "Bookmarks"
	g.reloadMarks()

	var tocSelect *widget.Select
	if toc, err := sess.Outline(); err == nil && len(toc) > 0 {
		titles := make([]string, len(toc))
		for i, e := range toc {
			titles[i] = e.Title
		}
		tocSelect = widget.NewSelect(titles, func(selected string) {
			for i, t := range titles {
				if t == selected {
					g.sess.GotoPage(toc[i].Page)
					g.refresh()
					return
				}
			}
		})
		tocSelect.PlaceHolder = "Contents"
	}

	var top fyne.CanvasObject
	if tocSelect != nil {
		top = container.NewBorder(nil, nil, prev, next, tocSelect)
	} else {
		top = container.NewBorder(nil, nil, prev, next, widget.NewLabel(""))
	}
	bottom := container.NewBorder(nil, nil, nil, container.NewHBox(addMark, g.marks), g.status)

	w.SetContent(container.NewBorder(top, bottom, nil, nil, container.NewScroll(g.content)))
	w.Resize(fyne.NewSize(800, 600))
	w.SetCloseIntercept(func() {
		g.savePosition()
		w.Close()
	})

	g.refresh()
	w.ShowAndRun()
}
