package sitemap

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Kind is the type of a sitemap document, taken from its root element.
type Kind string

const (
	// KindIndex lists the locations of other sitemaps.
	KindIndex Kind = "sitemapindex"
	// KindURLSet lists page locations directly.
	KindURLSet Kind = "urlset"
)

// Document is a parsed sitemap: its kind and the loc values in document order.
type Document struct {
	Kind Kind
	Locs []string
}

// ParseError reports a body that is not a usable sitemap document.
type ParseError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse sitemap %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse sitemap %s: %s", e.URL, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

var gzipMagic = []byte{0x1f, 0x8b}

// maxDecompressedBytes caps a gzip sitemap after decompression, matching the
// 50 MB limit on uncompressed sitemaps.
var maxDecompressedBytes int64 = 50 << 20

// Parse reads a sitemap index or urlset. Namespaces are ignored and elements
// are matched by local name, so documents with or without the sitemaps.org
// namespace parse the same way. Gzip-compressed bodies are decompressed.
func Parse(sourceURL string, body []byte) (*Document, error) {
	var reader io.Reader = bytes.NewReader(body)
	if bytes.HasPrefix(body, gzipMagic) {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, &ParseError{URL: sourceURL, Reason: "invalid gzip stream", Err: err}
		}
		defer func() { _ = gz.Close() }()

		data, err := io.ReadAll(io.LimitReader(gz, maxDecompressedBytes+1))
		if err != nil {
			return nil, &ParseError{URL: sourceURL, Reason: "invalid gzip stream", Err: err}
		}
		if int64(len(data)) > maxDecompressedBytes {
			return nil, &ParseError{URL: sourceURL, Reason: fmt.Sprintf("decompressed body exceeds %d bytes", maxDecompressedBytes)}
		}
		reader = bytes.NewReader(data)
	}

	doc, err := xmlquery.Parse(reader)
	if err != nil {
		return nil, &ParseError{URL: sourceURL, Reason: "malformed XML", Err: err}
	}

	root := rootElement(doc)
	if root == nil {
		return nil, &ParseError{URL: sourceURL, Reason: "empty document"}
	}

	var entry string
	switch Kind(root.Data) {
	case KindIndex:
		entry = "sitemap"
	case KindURLSet:
		entry = "url"
	default:
		return nil, &ParseError{URL: sourceURL, Reason: fmt.Sprintf("unexpected root element <%s>", root.Data)}
	}

	parsed := &Document{Kind: Kind(root.Data)}
	for _, item := range childElements(root, entry) {
		for _, loc := range childElements(item, "loc") {
			parsed.Locs = append(parsed.Locs, strings.TrimSpace(loc.InnerText()))
		}
	}
	return parsed, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func childElements(parent *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == name {
			out = append(out, n)
		}
	}
	return out
}
