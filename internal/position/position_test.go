package position

import (
	"fmt"
	"strings"
	"testing"

	"github.com/calloway/folio/internal/document"
	"github.com/calloway/folio/internal/paginate"
)

func reflowableDoc() (*document.Document, []paginate.Page) {
	doc := &document.Document{
		Identity: "deadbeef:book.epub",
		Format:   document.Reflowable,
	}
	for i := 0; i < 6; i++ {
		doc.Blocks = append(doc.Blocks, document.ContentBlock{
			Kind:    document.Text,
			Text:    fmt.Sprintf("paragraph %d", i),
			Locator: document.Locator{Section: fmt.Sprintf("ch1.xhtml#%d", i)},
		})
	}
	pages := []paginate.Page{{Start: 0, End: 2}, {Start: 2, End: 4}, {Start: 4, End: 6}}
	return doc, pages
}

func fixedDoc(pageNumbers ...int) (*document.Document, []paginate.Page) {
	doc := &document.Document{Identity: "cafe:doc.pdf", Format: document.FixedLayout}
	var pages []paginate.Page
	for i, n := range pageNumbers {
		doc.Blocks = append(doc.Blocks, document.ContentBlock{
			Kind:    document.Text,
			Text:    fmt.Sprintf("page %d", n),
			Locator: document.Locator{Page: n},
		})
		pages = append(pages, paginate.Page{Start: i, End: i + 1})
	}
	return doc, pages
}

func TestBookmarkRoundTrip(t *testing.T) {
	doc, pages := reflowableDoc()

	for p := range pages {
		bm := BookmarkFor(p, pages, doc)
		if bm.Identity != doc.Identity {
			t.Errorf("BookmarkFor(%d).Identity = %q, want %q", p, bm.Identity, doc.Identity)
		}
		if got := Resolve(bm, pages, doc); got != p {
			t.Errorf("Resolve(BookmarkFor(%d)) = %d, want %d", p, got, p)
		}
	}
}

func TestBookmarkFor_OutOfRange(t *testing.T) {
	doc, pages := reflowableDoc()

	bm := BookmarkFor(99, pages, doc)
	if bm.Locator != (document.Locator{}) {
		t.Errorf("BookmarkFor(99).Locator = %v, want zero", bm.Locator)
	}
	if got := Resolve(bm, pages, doc); got != 0 {
		t.Errorf("Resolve(empty anchor) = %d, want 0", got)
	}
}

func TestResolve_FallbackToPrecedingOrdinal(t *testing.T) {
	doc, pages := reflowableDoc()

	// Ordinal 9 no longer exists; nearest preceding is #5 on page 2.
	bm := Bookmark{Identity: doc.Identity, Locator: document.Locator{Section: "ch1.xhtml#9"}}
	if got := Resolve(bm, pages, doc); got != 2 {
		t.Errorf("Resolve(removed ordinal) = %d, want 2", got)
	}
}

func TestResolve_FallbackToPageZero(t *testing.T) {
	doc, pages := reflowableDoc()

	bm := Bookmark{Identity: doc.Identity, Locator: document.Locator{Section: "gone.xhtml#2"}}
	if got := Resolve(bm, pages, doc); got != 0 {
		t.Errorf("Resolve(unknown section) = %d, want 0", got)
	}
}

func TestResolve_FixedLayoutRenumbered(t *testing.T) {
	// Source pages 1,2,4,5: page 3 no longer exists.
	doc, pages := fixedDoc(1, 2, 4, 5)

	bm := Bookmark{Identity: doc.Identity, Locator: document.Locator{Page: 3}}
	if got := Resolve(bm, pages, doc); got != 1 {
		t.Errorf("Resolve(removed page 3) = %d, want 1 (nearest preceding page 2)", got)
	}

	bm = Bookmark{Identity: doc.Identity, Locator: document.Locator{Page: 4}}
	if got := Resolve(bm, pages, doc); got != 2 {
		t.Errorf("Resolve(page 4) = %d, want 2", got)
	}
}

func TestOutlineToPage(t *testing.T) {
	_, pages := reflowableDoc()

	tests := []struct {
		block int
		want  int
	}{
		{0, 0}, {3, 1}, {5, 2}, {42, 0},
	}
	for _, tt := range tests {
		entry := document.FlatOutlineEntry{Title: "ch", Block: tt.block}
		if got := OutlineToPage(entry, pages); got != tt.want {
			t.Errorf("OutlineToPage(block %d) = %d, want %d", tt.block, got, tt.want)
		}
	}
}

func TestToken_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		bm   Bookmark
	}{
		{"section", Bookmark{Identity: "deadbeef:book.epub", Locator: document.Locator{Section: "ch1.xhtml#4"}, Offset: 120}},
		{"page", Bookmark{Identity: "cafe:doc.pdf", Locator: document.Locator{Page: 17}}},
		{"awkward identity", Bookmark{Identity: "ab|c d:my book.epub", Locator: document.Locator{Section: "a b#1"}, Offset: 3}},
		{"empty locator", Bookmark{Identity: "cafe:x.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.bm.Token()
			if strings.Count(token, "|") != 2 {
				t.Errorf("Token() = %q, want exactly two separators", token)
			}
			got, err := ParseToken(token)
			if err != nil {
				t.Fatalf("ParseToken(%q) error = %v", token, err)
			}
			if got != tt.bm {
				t.Errorf("ParseToken(Token()) = %+v, want %+v", got, tt.bm)
			}
		})
	}
}

func TestParseToken_Malformed(t *testing.T) {
	tokens := []string{
		"",
		"onlyidentity",
		"id|page:x|0",
		"id|bogus:3|0",
		"id|page:1|notanumber",
		"id|page:1|0|extra",
	}
	for _, token := range tokens {
		if _, err := ParseToken(token); err == nil {
			t.Errorf("ParseToken(%q) error = nil, want error", token)
		}
	}
}
