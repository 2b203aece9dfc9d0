package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/lukemcguire/zombiemap/fetch"
)

// referenceSelector matches every element whose target is checked.
const referenceSelector = "a, img, iframe, script, link"

// noText labels references without text content or alt text.
const noText = "No text"

// Candidate is a reference found on a page, before classification.
type Candidate struct {
	SourcePage string // The page the element was found on
	Target     string // href, or src when href is absent
	Text       string // Trimmed text content, alt text, or "No text"
}

// PageFetchError reports a page that could not be loaded or parsed.
// The page is skipped and the crawl continues.
type PageFetchError struct {
	Page string
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch page %s: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// PageFetcher loads a page body.
type PageFetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

// Scanner extracts reference candidates from pages.
type Scanner struct {
	fetcher PageFetcher
}

// NewScanner creates a Scanner loading pages through fetcher.
func NewScanner(fetcher PageFetcher) *Scanner {
	return &Scanner{fetcher: fetcher}
}

// Scan fetches pageURL and returns its reference candidates in document order.
// Any failure is returned as a *PageFetchError.
func (s *Scanner) Scan(ctx context.Context, pageURL string) ([]Candidate, error) {
	resp, err := s.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, &PageFetchError{Page: pageURL, Err: err}
	}

	candidates, err := ExtractCandidates(bytes.NewReader(resp.Body), resp.ContentType, pageURL)
	if err != nil {
		return nil, &PageFetchError{Page: pageURL, Err: err}
	}
	return candidates, nil
}

// ExtractCandidates parses an HTML document and returns one candidate per
// anchor, image, iframe, script and link element carrying an href or src.
// The body is decoded to UTF-8 using contentType or the document's meta tags.
func ExtractCandidates(body io.Reader, contentType, pageURL string) ([]Candidate, error) {
	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse HTML of %s: %w", pageURL, err)
	}

	var candidates []Candidate
	doc.Find(referenceSelector).Each(func(_ int, sel *goquery.Selection) {
		target := strings.TrimSpace(sel.AttrOr("href", ""))
		if target == "" {
			target = strings.TrimSpace(sel.AttrOr("src", ""))
		}
		if target == "" {
			return
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			text = sel.AttrOr("alt", "")
		}
		if text == "" {
			text = noText
		}

		candidates = append(candidates, Candidate{
			SourcePage: pageURL,
			Target:     target,
			Text:       text,
		})
	})
	return candidates, nil
}
