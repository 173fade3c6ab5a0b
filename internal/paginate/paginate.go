// Package paginate slices a document into discrete pages sized to a
// viewport. Pagination is a pure function of (document, viewport,
// measure): the same inputs always produce the same page ranges.
package paginate

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/calloway/folio/internal/document"
)

// ErrMeasureFailed indicates the measurement callback failed or
// returned an invalid size. Pagination aborts; any previously computed
// pages remain valid.
var ErrMeasureFailed = errors.New("paginate: measure failed")

// FontMetrics describes the font in abstract display units. The core
// never inspects rendering details beyond these numbers.
type FontMetrics struct {
	LineHeight int
	CharWidth  int
}

// Viewport is the display area pagination capacity is computed against.
type Viewport struct {
	Width  int
	Height int
	Font   FontMetrics
}

// Columns returns how many characters fit on one line. At least 1.
func (v Viewport) Columns() int {
	w := v.Font.CharWidth
	if w <= 0 {
		w = 1
	}
	if c := v.Width / w; c > 1 {
		return c
	}
	return 1
}

// Rows returns how many lines fit on one page. At least 1.
func (v Viewport) Rows() int {
	h := v.Font.LineHeight
	if h <= 0 {
		h = 1
	}
	if r := v.Height / h; r > 1 {
		return r
	}
	return 1
}

// MeasureFunc estimates the height of a block, in lines, when laid out
// in the given viewport. Supplied by the caller; the default is
// EstimateHeight.
type MeasureFunc func(document.ContentBlock, Viewport) (int, error)

// Page is a materialized view over a contiguous half-open block range
// [Start, End). Pages are invalidated by the next pagination pass and
// must not be reused across one.
type Page struct {
	Start int
	End   int
}

// Contains reports whether the page's range covers block index i.
func (p Page) Contains(i int) bool {
	return i >= p.Start && i < p.End
}

// Empty reports whether the page covers no blocks (the "no content"
// page of a zero-block document).
func (p Page) Empty() bool {
	return p.Start >= p.End
}

// PaginationError wraps a measurement failure with the offending block.
type PaginationError struct {
	Block int
	Cause error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("%v: block %d: %v", ErrMeasureFailed, e.Block, e.Cause)
}

func (e *PaginationError) Unwrap() error { return ErrMeasureFailed }

// Paginate computes the page sequence for doc under the viewport.
//
// Fixed-layout documents paginate by the identity mapping: one page per
// block, independent of the viewport. Reflowable documents pack blocks
// greedily until the next block would exceed the viewport's row
// capacity; a block that alone exceeds capacity still gets its own page,
// and PageBreakHint blocks force a boundary before the next block.
//
// A zero-block document yields a single empty page so the caller always
// has an addressable page. The pass is a single O(n) walk; viewport
// changes recompute from scratch.
func Paginate(doc *document.Document, vp Viewport, measure MeasureFunc) ([]Page, error) {
	if measure == nil {
		measure = EstimateHeight
	}
	if len(doc.Blocks) == 0 {
		return []Page{{Start: 0, End: 0}}, nil
	}

	if doc.Format == document.FixedLayout {
		pages := make([]Page, len(doc.Blocks))
		for i := range doc.Blocks {
			pages[i] = Page{Start: i, End: i + 1}
		}
		return pages, nil
	}

	capacity := vp.Rows()
	var pages []Page
	start, used := 0, 0

	for i, b := range doc.Blocks {
		if b.Kind == document.PageBreakHint {
			// The hint belongs to the page it terminates.
			pages = append(pages, Page{Start: start, End: i + 1})
			start, used = i+1, 0
			continue
		}

		h, err := measure(b, vp)
		if err != nil {
			return nil, &PaginationError{Block: i, Cause: err}
		}
		if h < 0 {
			return nil, &PaginationError{Block: i, Cause: fmt.Errorf("negative height %d", h)}
		}

		if i > start && used+h > capacity {
			pages = append(pages, Page{Start: start, End: i})
			start, used = i, 0
		}
		used += h
	}
	if start < len(doc.Blocks) {
		pages = append(pages, Page{Start: start, End: len(doc.Blocks)})
	}
	return pages, nil
}

// EstimateHeight is the default measurement: text height is the line
// count after naive wrapping at the viewport's column width, images
// occupy a full page, page-break hints are free.
func EstimateHeight(b document.ContentBlock, vp Viewport) (int, error) {
	switch b.Kind {
	case document.PageBreakHint:
		return 0, nil
	case document.Image:
		return vp.Rows(), nil
	}
	cols := vp.Columns()
	runes := utf8.RuneCountInString(b.Text)
	lines := (runes + cols - 1) / cols
	if lines < 1 {
		lines = 1
	}
	return lines, nil
}

// PageFor returns the index of the page containing block i, or -1 when
// no page covers it.
func PageFor(pages []Page, i int) int {
	for p, pg := range pages {
		if pg.Contains(i) {
			return p
		}
	}
	return -1
}
