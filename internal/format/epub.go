package format

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"

	"github.com/calloway/folio/internal/document"
)

// EPUBAdapter loads packaged XML books as reflowable documents: one or
// more TEXT/IMAGE blocks per spine item, in spine order.
type EPUBAdapter struct{}

func init() {
	Register(&EPUBAdapter{})
}

func (a *EPUBAdapter) Name() string         { return "EPUB" }
func (a *EPUBAdapter) Extensions() []string { return []string{".epub"} }

func (a *EPUBAdapter) Load(p string) (*document.Document, error) {
	enc, err := epubEncrypted(p)
	if err != nil {
		return nil, formatErr(p, ErrCorrupt, err)
	}
	if enc {
		return nil, formatErr(p, ErrEncrypted, nil)
	}

	rc, err := epub.OpenReader(p)
	if err != nil {
		return nil, formatErr(p, ErrCorrupt, err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, formatErr(p, ErrCorrupt, fmt.Errorf("no rootfiles in epub"))
	}
	book := rc.Rootfiles[0]

	doc := &document.Document{
		Format: document.Reflowable,
		Title:  strings.TrimSpace(book.Title),
		Author: strings.TrimSpace(book.Creator),
	}

	// First block index of each spine section, keyed by href and by
	// basename. The NCX references sections either way.
	sectionBlock := make(map[string]int)

	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}

		blocks := blocksFromXHTML(data, ref.Item.HREF)
		if len(blocks) == 0 {
			continue
		}
		start := len(doc.Blocks)
		if ref.Item.HREF != "" {
			if _, seen := sectionBlock[ref.Item.HREF]; !seen {
				sectionBlock[ref.Item.HREF] = start
			}
			base := path.Base(ref.Item.HREF)
			if _, seen := sectionBlock[base]; !seen {
				sectionBlock[base] = start
			}
		}
		doc.Blocks = append(doc.Blocks, blocks...)
	}

	doc.Outline = epubOutline(p, book, sectionBlock)
	return doc, nil
}

// epubEncrypted reports whether the archive carries DRM encryption
// metadata. Presence of META-INF/encryption.xml is treated as
// encrypted; decrypting is out of scope.
func epubEncrypted(p string) (bool, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return false, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "META-INF/encryption.xml" {
			return true, nil
		}
	}
	return false, nil
}

// blocksFromXHTML converts one spine section into content blocks: one
// TEXT block per block-level element with text, one IMAGE block per
// img/image element. Section locators are "<href>#<ordinal>" so every
// block has a unique, re-derivable anchor.
func blocksFromXHTML(data []byte, href string) []document.ContentBlock {
	root, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil
	}

	var blocks []document.ContentBlock
	nextLocator := func() document.Locator {
		return document.Locator{Section: fmt.Sprintf("%s#%d", href, len(blocks))}
	}

	var para strings.Builder
	flush := func() {
		text := strings.Join(strings.Fields(para.String()), " ")
		para.Reset()
		if text == "" {
			return
		}
		blocks = append(blocks, document.ContentBlock{
			Kind:    document.Text,
			Text:    text,
			Locator: nextLocator(),
		})
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head", "script", "style":
				return
			case "img", "image":
				flush()
				src := nodeAttr(n, "src")
				if src == "" {
					src = nodeAttr(n, "href") // SVG image uses xlink:href
				}
				if src != "" {
					blocks = append(blocks, document.ContentBlock{
						Kind:     document.Image,
						ImageRef: src,
						Locator:  nextLocator(),
					})
				}
				return
			}
		}
		if n.Type == html.TextNode {
			para.WriteString(n.Data)
			para.WriteString(" ")
		}

		block := isBlockElement(n)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(root)
	flush()

	return blocks
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "blockquote", "pre", "div", "table", "tr", "figcaption", "br", "hr":
		return true
	}
	return false
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key || strings.HasSuffix(a.Key, ":"+key) {
			return a.Val
		}
	}
	return ""
}
