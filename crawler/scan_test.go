package crawler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lukemcguire/zombiemap/crawler"
	"github.com/lukemcguire/zombiemap/fetch"
)

func TestExtractCandidates(t *testing.T) {
	const page = "https://example.com/page"

	tests := []struct {
		name string
		html string
		want []crawler.Candidate
	}{
		{
			name: "anchor text",
			html: `<a href="/about">  About us </a>`,
			want: []crawler.Candidate{{SourcePage: page, Target: "/about", Text: "About us"}},
		},
		{
			name: "image falls back to src and alt",
			html: `<img src="/logo.png" alt="Logo">`,
			want: []crawler.Candidate{{SourcePage: page, Target: "/logo.png", Text: "Logo"}},
		},
		{
			name: "no text and no alt",
			html: `<iframe src="https://video.example.com/embed"></iframe>`,
			want: []crawler.Candidate{{SourcePage: page, Target: "https://video.example.com/embed", Text: "No text"}},
		},
		{
			name: "empty href uses src",
			html: `<a href="" src="/weird">x</a>`,
			want: []crawler.Candidate{{SourcePage: page, Target: "/weird", Text: "x"}},
		},
		{
			name: "elements without target are skipped",
			html: `<a name="anchor">Named</a><script>var x = 1;</script><img alt="none">`,
			want: nil,
		},
		{
			name: "document order across element kinds",
			html: `<head><link rel="stylesheet" href="/s.css"><script src="/app.js"></script></head>
				<body><a href="#top">Top</a><img src="/i.png"></body>`,
			want: []crawler.Candidate{
				{SourcePage: page, Target: "/s.css", Text: "No text"},
				{SourcePage: page, Target: "/app.js", Text: "No text"},
				{SourcePage: page, Target: "#top", Text: "Top"},
				{SourcePage: page, Target: "/i.png", Text: "No text"},
			},
		},
		{
			name: "unrelated elements are ignored",
			html: `<form action="/submit"></form><video src="/v.mp4"></video>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := crawler.ExtractCandidates(strings.NewReader(tt.html), "text/html", page)
			if err != nil {
				t.Fatalf("ExtractCandidates() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractCandidates() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("candidate[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractCandidatesDecodesCharset(t *testing.T) {
	body := "<a href=\"/caf\xe9\">Caf\xe9</a>"

	got, err := crawler.ExtractCandidates(strings.NewReader(body), "text/html; charset=iso-8859-1", "https://example.com/")
	if err != nil {
		t.Fatalf("ExtractCandidates() error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Café" || got[0].Target != "/café" {
		t.Errorf("ExtractCandidates() = %+v, want decoded Latin-1", got)
	}
}

func TestScannerScan(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/x">X</a><img src="/y.png">`))
	}))
	defer ts.Close()

	scanner := crawler.NewScanner(fetch.New(fetch.Options{Retry: fetch.RetryPolicy{MaxRetries: -1}}))

	candidates, err := scanner.Scan(context.Background(), ts.URL+"/page")
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("Scan() returned %d candidates, want 2", len(candidates))
	}
	if candidates[0].SourcePage != ts.URL+"/page" {
		t.Errorf("SourcePage = %q", candidates[0].SourcePage)
	}

	_, err = scanner.Scan(context.Background(), ts.URL+"/gone")
	var pageErr *crawler.PageFetchError
	if !errors.As(err, &pageErr) {
		t.Fatalf("Scan() error = %v, want *PageFetchError", err)
	}
	if pageErr.Page != ts.URL+"/gone" {
		t.Errorf("PageFetchError.Page = %q", pageErr.Page)
	}
	if fetch.StatusCodeOf(err) != http.StatusNotFound {
		t.Errorf("StatusCodeOf() = %d, want 404", fetch.StatusCodeOf(err))
	}
}
