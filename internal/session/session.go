// Package session orchestrates one reading session: adapter selection,
// the live document, pagination state, and the query surface the UI
// consumes. The controller is the only writer of session state;
// adapters and the paginator are pure functions of their inputs.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/calloway/folio/internal/document"
	"github.com/calloway/folio/internal/format"
	"github.com/calloway/folio/internal/paginate"
	"github.com/calloway/folio/internal/position"
)

// State is the controller's lifecycle state.
type State int

const (
	Empty State = iota
	Loading
	Ready
	Paginating
	Closed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Paginating:
		return "paginating"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrClosed indicates the session was closed; Closed is terminal.
	ErrClosed = errors.New("session: session is closed")

	// ErrNoDocument indicates no document is open.
	ErrNoDocument = errors.New("session: no document open")

	// ErrInvalidPage indicates a page index outside the current
	// pagination.
	ErrInvalidPage = errors.New("session: page index out of range")

	// ErrSuperseded indicates a newer Open or SetViewport took over
	// while this one was in flight; its result was discarded.
	ErrSuperseded = errors.New("session: operation superseded")

	// ErrWrongDocument indicates a bookmark whose identity does not
	// match the open document.
	ErrWrongDocument = errors.New("session: bookmark is for a different document")
)

// Controller holds exactly one live document and its pagination.
//
// Open and SetViewport may be long-running; a newer call supersedes an
// in-flight one, and a superseded result is never applied. The goto
// operations only touch in-memory state and never block on I/O.
type Controller struct {
	mu       sync.Mutex
	state    State
	doc      *document.Document
	viewport paginate.Viewport
	measure  paginate.MeasureFunc
	pages    []paginate.Page
	current  int

	generation uint64
	cancel     context.CancelFunc
}

// New creates an empty session using the given viewport and measurement
// function. A nil measure falls back to paginate.EstimateHeight.
func New(vp paginate.Viewport, measure paginate.MeasureFunc) *Controller {
	return &Controller{state: Empty, viewport: vp, measure: measure}
}

// Open loads the document at path and paginates it for the current
// viewport. On failure the session returns to its prior state with its
// prior document intact; no partial state is retained.
func (c *Controller) Open(ctx context.Context, path string) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	ctx, gen := c.begin(ctx, Loading)
	vp, measure := c.viewport, c.measure
	c.mu.Unlock()

	doc, pages, err := loadAndPaginate(ctx, path, vp, measure)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.state == Closed {
		return ErrSuperseded
	}
	c.cancel = nil
	if err != nil {
		c.state = c.settledState()
		return err
	}
	c.doc = doc
	c.pages = pages
	c.current = 0
	c.state = Ready
	return nil
}

// SetViewport recomputes pagination for the new viewport and re-resolves
// the current position, preserving it across the transition. On failure
// the previous pagination remains in effect. With no document open the
// viewport is recorded for the next Open.
func (c *Controller) SetViewport(ctx context.Context, vp paginate.Viewport) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.doc == nil {
		c.viewport = vp
		c.mu.Unlock()
		return nil
	}
	ctx, gen := c.begin(ctx, Paginating)
	doc, measure := c.doc, c.measure
	bm := position.BookmarkFor(c.current, c.pages, c.doc)
	c.mu.Unlock()

	pages, err := repaginate(ctx, doc, vp, measure)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.state == Closed {
		return ErrSuperseded
	}
	c.cancel = nil
	c.state = c.settledState()
	if err != nil {
		return err
	}
	c.viewport = vp
	c.pages = pages
	c.current = position.Resolve(bm, pages, doc)
	return nil
}

// begin claims a new generation for an in-flight operation, cancelling
// any previous one. Caller holds the lock.
func (c *Controller) begin(ctx context.Context, s State) (context.Context, uint64) {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.generation++
	c.state = s
	return ctx, c.generation
}

// settledState is the state to return to after a failed or finished
// in-flight operation.
func (c *Controller) settledState() State {
	if c.doc != nil {
		return Ready
	}
	return Empty
}

func loadAndPaginate(ctx context.Context, path string, vp paginate.Viewport, measure paginate.MeasureFunc) (*document.Document, []paginate.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	doc, err := format.Load(path)
	if err != nil {
		return nil, nil, err
	}
	pages, err := repaginate(ctx, doc, vp, measure)
	if err != nil {
		return nil, nil, err
	}
	return doc, pages, nil
}

func repaginate(ctx context.Context, doc *document.Document, vp paginate.Viewport, measure paginate.MeasureFunc) ([]paginate.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := paginate.Paginate(doc, vp, measure)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// GotoPage sets the current page index. Ready state only.
func (c *Controller) GotoPage(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return err
	}
	if n < 0 || n >= len(c.pages) {
		return ErrInvalidPage
	}
	c.current = n
	return nil
}

// GotoBookmark resolves the bookmark against the current pagination and
// moves there. Resolution is total; the returned index is always valid.
func (c *Controller) GotoBookmark(bm position.Bookmark) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, err
	}
	if bm.Identity != "" && bm.Identity != c.doc.Identity {
		return c.current, ErrWrongDocument
	}
	c.current = position.Resolve(bm, c.pages, c.doc)
	return c.current, nil
}

// Locate resolves a bookmark against the current pagination without
// moving. Used to show where saved bookmarks fall under the viewport
// currently in effect.
func (c *Controller) Locate(bm position.Bookmark) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, err
	}
	if bm.Identity != "" && bm.Identity != c.doc.Identity {
		return 0, ErrWrongDocument
	}
	return position.Resolve(bm, c.pages, c.doc), nil
}

// GotoOutline moves to the page containing the outline entry's block.
func (c *Controller) GotoOutline(entry document.FlatOutlineEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return 0, err
	}
	c.current = position.OutlineToPage(entry, c.pages)
	return c.current, nil
}

// ready asserts the session is Ready. Caller holds the lock.
func (c *Controller) ready() error {
	switch {
	case c.state == Closed:
		return ErrClosed
	case c.doc == nil || c.state != Ready:
		return ErrNoDocument
	}
	return nil
}

// Close releases the document. Closed is terminal: no operation is
// valid afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.doc = nil
	c.pages = nil
	c.current = 0
	c.state = Closed
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the current page index.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// PageCount returns the number of pages in the current pagination.
func (c *Controller) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// Progress returns the 1-based current page and the total page count.
func (c *Controller) Progress() (current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return 0, 0
	}
	return c.current + 1, len(c.pages)
}

// ProgressPercent returns how far through the book the current page is,
// 0-100.
func (c *Controller) ProgressPercent() float64 {
	current, total := c.Progress()
	if total == 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

// PageView is the rendered content of one page plus its navigation
// metadata, handed to the UI. Views are snapshots; they stay coherent
// even if the session re-paginates afterwards.
type PageView struct {
	Index  int
	Total  int
	Blocks []document.ContentBlock
}

// Text renders the page's blocks as plain text, paragraphs separated by
// blank lines. Images render as a reference marker; an empty page
// renders an explicit no-content marker.
func (v PageView) Text() string {
	if len(v.Blocks) == 0 {
		return "(no content)"
	}
	parts := make([]string, 0, len(v.Blocks))
	for _, b := range v.Blocks {
		switch b.Kind {
		case document.Text:
			parts = append(parts, b.Text)
		case document.Image:
			parts = append(parts, "[image: "+b.ImageRef+"]")
		}
	}
	return strings.Join(parts, "\n\n")
}

// Page returns the view for page n under the current pagination.
func (c *Controller) Page(n int) (PageView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return PageView{}, err
	}
	if n < 0 || n >= len(c.pages) {
		return PageView{}, ErrInvalidPage
	}
	pg := c.pages[n]
	view := PageView{Index: n, Total: len(c.pages)}
	if !pg.Empty() {
		view.Blocks = append([]document.ContentBlock(nil), c.doc.Blocks[pg.Start:pg.End]...)
	}
	return view, nil
}

// CurrentPage returns the view for the current page.
func (c *Controller) CurrentPage() (PageView, error) {
	return c.Page(c.Current())
}

// Bookmark returns a bookmark for the current page, suitable for
// persistence as a flat token.
func (c *Controller) Bookmark() (position.Bookmark, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return position.Bookmark{}, err
	}
	return position.BookmarkFor(c.current, c.pages, c.doc), nil
}

// OutlineItem is one table-of-contents row resolved against the current
// pagination. Page is only valid until the next re-pagination.
type OutlineItem struct {
	Title string
	Level int
	Page  int
}

// Outline returns the document outline with page indices for the
// pagination currently in effect.
func (c *Controller) Outline() ([]OutlineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ready(); err != nil {
		return nil, err
	}
	flat := c.doc.FlatOutline()
	items := make([]OutlineItem, 0, len(flat))
	for _, e := range flat {
		items = append(items, OutlineItem{
			Title: e.Title,
			Level: e.Level,
			Page:  position.OutlineToPage(e, c.pages),
		})
	}
	return items, nil
}

// Identity returns the open document's identity, or "".
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return ""
	}
	return c.doc.Identity
}

// Title returns the open document's title, or "".
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return ""
	}
	return c.doc.Title
}

// Author returns the open document's author, or "".
func (c *Controller) Author() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return ""
	}
	return c.doc.Author
}
