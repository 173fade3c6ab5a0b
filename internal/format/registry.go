// Package format converts source documents into the common document
// model. Each supported format registers an Adapter; Load dispatches on
// the file extension and stamps the loaded document with a stable
// content-derived identity.
package format

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calloway/folio/internal/document"
)

const fingerprintBytes = 8192 // leading bytes hashed for document identity

// Adapter converts one source format into a Document.
//
// Load either returns a fully constructed document or a *FormatError;
// it never returns a partial document and never retains open file
// handles after it returns.
type Adapter interface {
	Name() string
	Extensions() []string
	Load(path string) (*document.Document, error)
}

var registry []Adapter

// Register adds an adapter to the registry.
func Register(a Adapter) {
	registry = append(registry, a)
}

// Load selects the adapter for path by extension and loads the
// document. Unsupported extensions fail fast with ErrUnsupported before
// any file access.
func Load(path string) (*document.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range registry {
		for _, e := range a.Extensions() {
			if ext != e {
				continue
			}
			doc, err := a.Load(path)
			if err != nil {
				return nil, err
			}
			id, err := identity(path)
			if err != nil {
				return nil, formatErr(path, ErrCorrupt, err)
			}
			doc.Identity = id
			if doc.Title == "" {
				doc.Title = filepath.Base(path)
			}
			return doc, nil
		}
	}
	return nil, formatErr(path, ErrUnsupported, nil)
}

// Supported returns registered format names with their extensions.
func Supported() []string {
	var out []string
	for _, a := range registry {
		out = append(out, a.Name()+" ("+strings.Join(a.Extensions(), ", ")+")")
	}
	return out
}

// identity derives the stable document identity: a content hash over the
// leading bytes plus the file basename. Re-opening the same file yields
// the same identity regardless of where the file lives.
func identity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, fingerprintBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	sum := sha256.Sum256(buf[:n])
	return hex.EncodeToString(sum[:16]) + ":" + filepath.Base(path), nil
}
