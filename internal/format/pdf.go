package format

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/calloway/folio/internal/document"
)

// PDFAdapter loads PDF files as fixed-layout documents: exactly one
// block per source page, locator = 1-based page number. Pages whose
// content streams yield no usable text become image placeholders.
type PDFAdapter struct{}

func init() {
	Register(&PDFAdapter{})
}

func (a *PDFAdapter) Name() string         { return "PDF" }
func (a *PDFAdapter) Extensions() []string { return []string{".pdf"} }

func (a *PDFAdapter) Load(p string) (*document.Document, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, formatErr(p, ErrCorrupt, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, formatErr(p, classifyPDFError(err), err)
	}

	doc := &document.Document{
		Format: document.FixedLayout,
		Title:  infoString(ctx, "Title"),
		Author: infoString(ctx, "Author"),
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		loc := document.Locator{Page: pageNr}
		text := extractPageText(ctx, pageNr)
		if text == "" {
			doc.Blocks = append(doc.Blocks, document.ContentBlock{
				Kind:     document.Image,
				ImageRef: fmt.Sprintf("#page=%d", pageNr),
				Locator:  loc,
			})
			continue
		}
		doc.Blocks = append(doc.Blocks, document.ContentBlock{
			Kind:    document.Text,
			Text:    text,
			Locator: loc,
		})
	}

	doc.Outline = pdfOutline(f, conf)
	return doc, nil
}

// classifyPDFError maps a pdfcpu read failure onto the error taxonomy.
// pdfcpu exports no stable sentinel for decryption failures, so the
// password prompt in the message is the signal.
func classifyPDFError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return ErrEncrypted
	}
	return ErrCorrupt
}

// extractPageText pulls the decoded content stream for one page and
// recovers its text. Best effort: a page that cannot be read simply
// yields no text.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return contentStreamText(data)
}

// pdfOutline converts the document's bookmark tree into outline
// entries. Bookmarks address 1-based pages; block index is page-1 since
// fixed-layout blocks map 1:1 to pages.
func pdfOutline(rs io.ReadSeeker, conf *model.Configuration) []document.OutlineEntry {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	bms, err := api.Bookmarks(rs, conf)
	if err != nil {
		return nil
	}
	return bookmarkTree(bms)
}

func bookmarkTree(bms []pdfcpu.Bookmark) []document.OutlineEntry {
	var entries []document.OutlineEntry
	for _, bm := range bms {
		block := bm.PageFrom - 1
		if block < 0 {
			block = 0
		}
		entries = append(entries, document.OutlineEntry{
			Title:    strings.TrimSpace(bm.Title),
			Block:    block,
			Children: bookmarkTree(bm.Kids),
		})
	}
	return entries
}

// infoString reads a string entry from the document info dictionary.
func infoString(ctx *model.Context, key string) string {
	if ctx.Info == nil {
		return ""
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || d == nil {
		return ""
	}
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	obj, err = ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch s := obj.(type) {
	case types.StringLiteral:
		if v, err := types.StringLiteralToString(s); err == nil {
			return strings.TrimSpace(v)
		}
	case types.HexLiteral:
		if v, err := types.HexLiteralToString(s); err == nil {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
