// Package position maps between page indices, outline entries, and
// serializable bookmarks. Bookmarks anchor to source locators, never to
// page indices, so they survive re-pagination and viewport changes.
package position

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/calloway/folio/internal/document"
	"github.com/calloway/folio/internal/paginate"
)

// errAnchorNotFound is internal: resolution always converts it into the
// nearest-preceding fallback before returning.
var errAnchorNotFound = errors.New("position: anchor not found")

// Bookmark is a pagination-independent reading-position token.
type Bookmark struct {
	Identity string
	Locator  document.Locator
	Offset   int // intra-block offset, e.g. character offset for text
}

// BookmarkFor derives a bookmark from the first block of the page at
// pageIndex. The offset defaults to 0; callers tracking a finer
// in-page scroll position may set it afterwards.
func BookmarkFor(pageIndex int, pages []paginate.Page, doc *document.Document) Bookmark {
	bm := Bookmark{Identity: doc.Identity}
	if pageIndex < 0 || pageIndex >= len(pages) {
		return bm
	}
	if b, ok := doc.BlockAt(pages[pageIndex].Start); ok {
		bm.Locator = b.Locator
	}
	return bm
}

// Resolve finds the page whose range contains the block the bookmark
// anchors to. Resolution is total: a locator that no longer exists
// falls back to the nearest preceding block with a valid locator, and
// if none precedes it, to page 0.
func Resolve(bm Bookmark, pages []paginate.Page, doc *document.Document) int {
	idx, err := anchorBlock(doc, bm.Locator)
	if err != nil {
		idx = nearestPreceding(doc, bm.Locator)
	}
	if idx < 0 {
		return 0
	}
	if p := paginate.PageFor(pages, idx); p >= 0 {
		return p
	}
	return 0
}

// OutlineToPage maps an outline entry to the page containing its
// referenced block, by the same range-containment lookup.
func OutlineToPage(entry document.FlatOutlineEntry, pages []paginate.Page) int {
	if p := paginate.PageFor(pages, entry.Block); p >= 0 {
		return p
	}
	return 0
}

func anchorBlock(doc *document.Document, loc document.Locator) (int, error) {
	if idx := doc.BlockFor(loc); idx >= 0 {
		return idx, nil
	}
	return -1, errAnchorNotFound
}

// nearestPreceding finds the last block whose locator orders at or
// before loc in the source structure: by page number for fixed-layout
// locators, by ordinal within the same section for reflowable ones.
// Returns -1 when nothing precedes.
func nearestPreceding(doc *document.Document, loc document.Locator) int {
	if loc.Page > 0 {
		best := -1
		for i, b := range doc.Blocks {
			if b.Locator.Page > 0 && b.Locator.Page <= loc.Page && (best < 0 || b.Locator.Page > doc.Blocks[best].Locator.Page) {
				best = i
			}
		}
		return best
	}

	section, ordinal := splitSection(loc.Section)
	if section == "" {
		return -1
	}
	best, bestOrd := -1, -1
	for i, b := range doc.Blocks {
		s, o := splitSection(b.Locator.Section)
		if s == section && o <= ordinal && o > bestOrd {
			best, bestOrd = i, o
		}
	}
	return best
}

// splitSection splits a "section#ordinal" locator into its parts. A
// locator without an ordinal suffix gets ordinal 0.
func splitSection(s string) (string, int) {
	idx := strings.LastIndex(s, "#")
	if idx < 0 {
		return s, 0
	}
	ord, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return s, 0
	}
	return s[:idx], ord
}

// Token encodes the bookmark as a flat string so an external store can
// persist it without understanding its structure. Fields are
// url-escaped and joined with "|".
func (bm Bookmark) Token() string {
	locator := ""
	if bm.Locator.Page > 0 {
		locator = "page:" + strconv.Itoa(bm.Locator.Page)
	} else if bm.Locator.Section != "" {
		locator = "section:" + url.QueryEscape(bm.Locator.Section)
	}
	return strings.Join([]string{
		url.QueryEscape(bm.Identity),
		locator,
		strconv.Itoa(bm.Offset),
	}, "|")
}

// ParseToken decodes a token produced by Token.
func ParseToken(token string) (Bookmark, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return Bookmark{}, fmt.Errorf("position: malformed token %q", token)
	}

	identity, err := url.QueryUnescape(parts[0])
	if err != nil {
		return Bookmark{}, fmt.Errorf("position: malformed token %q: %w", token, err)
	}
	bm := Bookmark{Identity: identity}

	switch {
	case parts[1] == "":
	case strings.HasPrefix(parts[1], "page:"):
		n, err := strconv.Atoi(strings.TrimPrefix(parts[1], "page:"))
		if err != nil {
			return Bookmark{}, fmt.Errorf("position: malformed token %q: %w", token, err)
		}
		bm.Locator.Page = n
	case strings.HasPrefix(parts[1], "section:"):
		s, err := url.QueryUnescape(strings.TrimPrefix(parts[1], "section:"))
		if err != nil {
			return Bookmark{}, fmt.Errorf("position: malformed token %q: %w", token, err)
		}
		bm.Locator.Section = s
	default:
		return Bookmark{}, fmt.Errorf("position: malformed token %q", token)
	}

	offset, err := strconv.Atoi(parts[2])
	if err != nil {
		return Bookmark{}, fmt.Errorf("position: malformed token %q: %w", token, err)
	}
	bm.Offset = offset
	return bm, nil
}
