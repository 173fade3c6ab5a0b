package format

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/calloway/folio/internal/document"
)

// pdfBuilder assembles a minimal uncompressed PDF, tracking object
// offsets so the cross-reference table is correct.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets []int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) obj(body string) int {
	num := len(b.offsets) + 1
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return num
}

func (b *pdfBuilder) streamObj(stream string) int {
	return b.obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
}

func (b *pdfBuilder) finish(root, info int) []byte {
	xrefOff := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offsets)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	trailer := fmt.Sprintf("/Size %d /Root %d 0 R", len(b.offsets)+1, root)
	if info > 0 {
		trailer += fmt.Sprintf(" /Info %d 0 R", info)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xrefOff)
	return b.buf.Bytes()
}

// buildPDF writes a PDF with one page per entry in pageStreams; an
// empty string yields a page with an empty content stream.
func buildPDF(t *testing.T, pageStreams []string) string {
	t.Helper()
	b := newPDFBuilder()

	root := b.obj("<< /Type /Catalog /Pages 2 0 R >>")

	// Object numbers are allocated sequentially: pages tree is 2, then
	// alternating page and content objects, then font, then info.
	kids := ""
	for i := range pageStreams {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	b.obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		kids, len(pageStreams)))

	fontNum := 3 + 2*len(pageStreams)
	for _, stream := range pageStreams {
		b.obj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontNum, len(b.offsets)+2))
		b.streamObj(stream)
	}
	b.obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	info := b.obj("<< /Title (Fixture PDF) /Author (Ann Author) >>")

	p := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(p, b.finish(root, info), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func textStream(s string) string {
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", s)
}

func TestPDFAdapter_Load(t *testing.T) {
	p := buildPDF(t, []string{textStream("Hello, first page."), ""})

	doc, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if doc.Format != document.FixedLayout {
		t.Errorf("Format = %v, want FixedLayout", doc.Format)
	}
	if doc.Title != "Fixture PDF" {
		t.Errorf("Title = %q, want Fixture PDF", doc.Title)
	}
	if doc.Author != "Ann Author" {
		t.Errorf("Author = %q, want Ann Author", doc.Author)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(doc.Blocks))
	}

	if doc.Blocks[0].Kind != document.Text || doc.Blocks[0].Text != "Hello, first page." {
		t.Errorf("block 0 = %+v, want extracted page text", doc.Blocks[0])
	}
	if doc.Blocks[0].Locator != (document.Locator{Page: 1}) {
		t.Errorf("block 0 locator = %v, want page 1", doc.Blocks[0].Locator)
	}

	// Page without text becomes an image placeholder, keeping the
	// block/page mapping 1:1.
	if doc.Blocks[1].Kind != document.Image || doc.Blocks[1].ImageRef != "#page=2" {
		t.Errorf("block 1 = %+v, want image placeholder for page 2", doc.Blocks[1])
	}
	if doc.Blocks[1].Locator != (document.Locator{Page: 2}) {
		t.Errorf("block 1 locator = %v, want page 2", doc.Blocks[1].Locator)
	}
}

func TestPDFAdapter_OneBlockPerPage(t *testing.T) {
	var streams []string
	for i := 1; i <= 5; i++ {
		streams = append(streams, textStream(fmt.Sprintf("Content of page %d.", i)))
	}
	p := buildPDF(t, streams)

	doc, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.Blocks) != 5 {
		t.Fatalf("got %d blocks, want 5", len(doc.Blocks))
	}
	for i, b := range doc.Blocks {
		if b.Locator.Page != i+1 {
			t.Errorf("block %d locator page = %d, want %d", i, b.Locator.Page, i+1)
		}
		want := fmt.Sprintf("Content of page %d.", i+1)
		if b.Text != want {
			t.Errorf("block %d text = %q, want %q", i, b.Text, want)
		}
	}
}

func TestPDFAdapter_Corrupt(t *testing.T) {
	p := writeFile(t, "broken.pdf", "%PDF-1.4 garbage with no structure")

	_, err := Load(p)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestClassifyPDFError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"pdfcpu: please provide the correct password", ErrEncrypted},
		{"pdfcpu: this file is encrypted", ErrEncrypted},
		{"pdfcpu: no xref table found", ErrCorrupt},
		{"unexpected EOF", ErrCorrupt},
	}
	for _, tt := range tests {
		if got := classifyPDFError(errors.New(tt.msg)); got != tt.want {
			t.Errorf("classifyPDFError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestBookmarkTree(t *testing.T) {
	bms := []pdfcpu.Bookmark{
		{Title: "Intro", PageFrom: 1},
		{Title: "Part I", PageFrom: 3, Kids: []pdfcpu.Bookmark{
			{Title: "Chapter 1", PageFrom: 3},
			{Title: "Chapter 2", PageFrom: 7},
		}},
	}

	entries := bookmarkTree(bms)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Title != "Intro" || entries[0].Block != 0 {
		t.Errorf("entries[0] = %+v, want Intro at block 0", entries[0])
	}
	if entries[1].Block != 2 || len(entries[1].Children) != 2 {
		t.Errorf("entries[1] = %+v, want Part I at block 2 with 2 children", entries[1])
	}
	if entries[1].Children[1].Block != 6 {
		t.Errorf("Chapter 2 block = %d, want 6", entries[1].Children[1].Block)
	}
}
