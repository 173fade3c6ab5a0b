package format

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/calloway/folio/internal/document"
)

// TextAdapter loads plain-text and markdown files as reflowable
// documents: one TEXT block per blank-line-separated paragraph. For
// markdown, headers start a new page and form the outline.
type TextAdapter struct{}

func init() {
	Register(&TextAdapter{})
}

func (a *TextAdapter) Name() string         { return "Text" }
func (a *TextAdapter) Extensions() []string { return []string{".txt", ".md", ".markdown"} }

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// paragraphRegex splits on blank lines, tolerating trailing whitespace.
var paragraphRegex = regexp.MustCompile(`\r?\n\s*\r?\n`)

func (a *TextAdapter) Load(p string) (*document.Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, formatErr(p, ErrCorrupt, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, formatErr(p, ErrCorrupt, err)
	}

	ext := strings.ToLower(filepath.Ext(p))
	markdown := ext == ".md" || ext == ".markdown"

	doc := &document.Document{Format: document.Reflowable}

	var flat []document.FlatOutlineEntry
	for _, para := range splitParagraphs(text) {
		loc := document.Locator{Section: fmt.Sprintf("para#%d", len(doc.Blocks))}

		if markdown {
			if m := headerRegex.FindStringSubmatch(para); m != nil {
				// Headers force a page boundary, except at the very top.
				if len(doc.Blocks) > 0 {
					doc.Blocks = append(doc.Blocks, document.ContentBlock{
						Kind:    document.PageBreakHint,
						Locator: loc,
					})
					loc = document.Locator{Section: fmt.Sprintf("para#%d", len(doc.Blocks))}
				}
				title := strings.TrimSpace(m[2])
				flat = append(flat, document.FlatOutlineEntry{
					Title: title,
					Block: len(doc.Blocks),
					Level: len(m[1]) - 1,
				})
				doc.Blocks = append(doc.Blocks, document.ContentBlock{
					Kind:    document.Text,
					Text:    title,
					Locator: loc,
				})
				continue
			}
		}

		doc.Blocks = append(doc.Blocks, document.ContentBlock{
			Kind:    document.Text,
			Text:    strings.Join(strings.Fields(para), " "),
			Locator: loc,
		})
	}

	doc.Outline = nestOutline(flat)
	return doc, nil
}

// decodeText interprets raw bytes as UTF-8, falling back to Latin-1 for
// legacy files.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// splitParagraphs splits text on blank lines, dropping empty chunks.
func splitParagraphs(text string) []string {
	var out []string
	for _, chunk := range paragraphRegex.Split(text, -1) {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// nestOutline converts a flat, depth-annotated entry list into the
// outline tree. An entry deeper than its predecessor nests under it;
// an entry with no shallower predecessor is promoted to the current
// level.
func nestOutline(flat []document.FlatOutlineEntry) []document.OutlineEntry {
	var build func(level int, pos *int) []document.OutlineEntry
	build = func(level int, pos *int) []document.OutlineEntry {
		var out []document.OutlineEntry
		for *pos < len(flat) {
			e := flat[*pos]
			switch {
			case e.Level < level:
				return out
			case e.Level > level && len(out) > 0:
				out[len(out)-1].Children = build(level+1, pos)
			default:
				*pos++
				out = append(out, document.OutlineEntry{Title: e.Title, Block: e.Block})
			}
		}
		return out
	}
	pos := 0
	return build(0, &pos)
}
