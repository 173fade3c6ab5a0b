// Package document defines the format-agnostic in-memory model that all
// format adapters produce: an ordered sequence of content blocks plus an
// outline tree, addressed by stable locators into the source structure.
package document

// Format distinguishes the two content models the engine reconciles.
type Format int

const (
	// Reflowable content computes its layout at display time from
	// flowing text (EPUB, plain text, markdown).
	Reflowable Format = iota

	// FixedLayout content has one predetermined layout per source page
	// (PDF). One source page maps to exactly one block.
	FixedLayout
)

func (f Format) String() string {
	switch f {
	case Reflowable:
		return "reflowable"
	case FixedLayout:
		return "fixed-layout"
	}
	return "unknown"
}

// BlockKind is the kind of payload a ContentBlock carries.
type BlockKind int

const (
	// Text is a run of flowing text, typically one paragraph.
	Text BlockKind = iota

	// Image is an image reference (or a placeholder for a fixed-layout
	// page that yielded no extractable text).
	Image

	// PageBreakHint forces a page boundary before the next block,
	// regardless of remaining viewport capacity.
	PageBreakHint
)

// Locator is an opaque back-reference into the originating adapter's
// native structure. Exactly one of Section or Page is meaningful,
// selected by the document's Format: reflowable adapters set Section
// (a source section id such as a spine href), fixed-layout adapters set
// Page (the 1-based source page number). Locators are used only for
// lookup, never for ownership.
type Locator struct {
	Section string
	Page    int
}

// ContentBlock is the atomic unit of content. Blocks are never mutated
// after adapter construction; pagination only groups block ranges.
type ContentBlock struct {
	Kind     BlockKind
	Text     string
	ImageRef string
	Locator  Locator
}

// OutlineEntry is one chapter/section entry. Outline is a tree; each
// entry references the index of the first block of its section.
type OutlineEntry struct {
	Title    string
	Block    int
	Children []OutlineEntry
}

// Document is the root entity for one opened book.
//
// The block ordering is stable for the lifetime of a Document, and
// re-opening the same identity reproduces the same ordering.
type Document struct {
	// Identity is a stable string unique per opened file, derived from
	// the file path and a content hash.
	Identity string

	// Title is the document title from format metadata, or the file
	// basename when the format carries none.
	Title string

	// Author is the primary author from format metadata, if any.
	Author string

	Format  Format
	Blocks  []ContentBlock
	Outline []OutlineEntry
}

// BlockAt returns the block at index i, or false if i is out of range.
func (d *Document) BlockAt(i int) (ContentBlock, bool) {
	if i < 0 || i >= len(d.Blocks) {
		return ContentBlock{}, false
	}
	return d.Blocks[i], true
}

// BlockFor returns the index of the first block whose locator matches
// loc, or -1 if no block matches.
func (d *Document) BlockFor(loc Locator) int {
	for i, b := range d.Blocks {
		if b.Locator == loc {
			return i
		}
	}
	return -1
}

// FlatOutline returns the outline flattened in depth-first order with
// the nesting level of each entry, for front ends that render the table
// of contents as an indented list.
func (d *Document) FlatOutline() []FlatOutlineEntry {
	var out []FlatOutlineEntry
	var walk func(entries []OutlineEntry, level int)
	walk = func(entries []OutlineEntry, level int) {
		for _, e := range entries {
			out = append(out, FlatOutlineEntry{Title: e.Title, Block: e.Block, Level: level})
			walk(e.Children, level+1)
		}
	}
	walk(d.Outline, 0)
	return out
}

// FlatOutlineEntry is one row of a flattened outline.
type FlatOutlineEntry struct {
	Title string
	Block int
	Level int
}
