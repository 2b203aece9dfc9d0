package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/crawler"
	"github.com/lukemcguire/zombiemap/result"
)

// fakeStreamer replays fixed events and records the requested site.
type fakeStreamer struct {
	events []crawler.Event
	site   chan string
}

func (f *fakeStreamer) Stream(ctx context.Context, siteURL string) (iter.Seq[crawler.Event], error) {
	if strings.TrimSpace(siteURL) == "" {
		return nil, crawler.ErrMissingInput
	}
	if f.site != nil {
		f.site <- siteURL
	}
	return func(yield func(crawler.Event) bool) {
		for _, ev := range f.events {
			if ctx.Err() != nil || !yield(ev) {
				return
			}
		}
	}, nil
}

func newTestHandler(s Streamer) http.Handler {
	return NewHandler(s, Options{Logger: log.New(io.Discard)})
}

func TestStreamMissingURL(t *testing.T) {
	for _, target := range []string{"/check-links-stream", "/check-links-stream?url=", "/check-links-stream?url=%20"} {
		rec := httptest.NewRecorder()
		newTestHandler(&fakeStreamer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type = %q", target, ct)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "Site URL is required" {
			t.Errorf("%s: body = %s", target, rec.Body.String())
		}
	}
}

func TestStreamWritesEvents(t *testing.T) {
	streamer := &fakeStreamer{
		site: make(chan string, 1),
		events: []crawler.Event{
			{Kind: crawler.EventInit, TotalPages: 1},
			{Kind: crawler.EventChecked, Page: "https://example.com/a", Links: 3, ProcessedPages: 1},
			{Kind: crawler.EventCompleted, BrokenLinks: []result.BrokenLink{
				{PageURL: "https://example.com/a", Link: "https://example.com/x", LinkText: "X", StatusCode: 404},
			}},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/check-links-stream?url=https://example.com/", nil)
	newTestHandler(streamer).ServeHTTP(rec, req)

	if got := <-streamer.site; got != "https://example.com/" {
		t.Errorf("Stream() site = %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for header, want := range map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed")
	}

	want := `data: {"status":"init","totalPages":1}` + "\n\n" +
		`data: {"status":"checked","page":"https://example.com/a","links":3,"processedPages":1}` + "\n\n" +
		`data: {"status":"completed","brokenLinks":[{"pageUrl":"https://example.com/a","link":"https://example.com/x","linkText":"X","statusCode":404}]}` + "\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body =\n%s\nwant\n%s", got, want)
	}
}

func TestStreamErrorEvent(t *testing.T) {
	streamer := &fakeStreamer{events: []crawler.Event{
		{Kind: crawler.EventError, Message: "your site doesn't have a sitemap"},
	}}

	rec := httptest.NewRecorder()
	newTestHandler(streamer).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/check-links-stream?url=https://example.com", nil))

	want := `data: {"status":"error","message":"your site doesn't have a sitemap"}` + "\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	handler := NewHandler(&fakeStreamer{}, Options{AllowedOrigin: "https://app.example.com", Logger: log.New(io.Discard)})
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/check-links-stream", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeStreamer{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

// blockingStreamer yields init and then waits for the run context to end.
type blockingStreamer struct {
	cancelled chan struct{}
}

func (b *blockingStreamer) Stream(ctx context.Context, _ string) (iter.Seq[crawler.Event], error) {
	return func(yield func(crawler.Event) bool) {
		if !yield(crawler.Event{Kind: crawler.EventInit, TotalPages: 1}) {
			return
		}
		<-ctx.Done()
		close(b.cancelled)
	}, nil
}

func TestClientDisconnectCancelsRun(t *testing.T) {
	streamer := &blockingStreamer{cancelled: make(chan struct{})}
	ts := httptest.NewServer(newTestHandler(streamer))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/check-links-stream?url=https://example.com", nil)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil || !strings.HasPrefix(line, `data: {"status":"init"`) {
		t.Fatalf("first line = %q, err = %v", line, err)
	}

	cancel()
	select {
	case <-streamer.cancelled:
	case <-time.After(3 * time.Second):
		t.Fatal("run context was not cancelled after the client disconnected")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, newTestHandler(&fakeStreamer{}), time.Second, log.New(io.Discard))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestRunListenError(t *testing.T) {
	if err := Run(context.Background(), "256.0.0.1:bad", http.NotFoundHandler(), time.Second, log.New(io.Discard)); err == nil {
		t.Error("Run() with invalid address succeeded")
	}
}
