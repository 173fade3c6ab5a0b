package format

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"

	"github.com/calloway/folio/internal/document"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// epubOutline builds the outline tree from the NCX navigation map.
// Entries reference the first block of the section they point at;
// documents without an NCX get an empty outline.
func epubOutline(filename string, book *epub.Rootfile, sectionBlock map[string]int) []document.OutlineEntry {
	ncxData, err := findAndReadNCX(filename, book)
	if err != nil {
		return nil
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return nil
	}

	return navTree(toc.NavMap.NavPoints, sectionBlock)
}

func navTree(points []navPoint, sectionBlock map[string]int) []document.OutlineEntry {
	var entries []document.OutlineEntry
	for _, np := range points {
		href := np.Content.Src
		if idx := strings.Index(href, "#"); idx != -1 {
			href = href[:idx]
		}

		block, ok := sectionBlock[href]
		if !ok {
			block, ok = sectionBlock[path.Base(href)]
		}
		if !ok {
			block = 0
		}

		entries = append(entries, document.OutlineEntry{
			Title:    strings.TrimSpace(np.Label.Text),
			Block:    block,
			Children: navTree(np.Children, sectionBlock),
		})
	}
	return entries
}

func findAndReadNCX(filename string, book *epub.Rootfile) ([]byte, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ncxPath string
	for _, item := range book.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}

	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}

	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}
