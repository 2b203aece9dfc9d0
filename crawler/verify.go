package crawler

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/fetch"
)

// Status is the verdict for one link.
type Status struct {
	Broken     bool
	StatusCode int
}

// StatusChecker reports the HTTP status of a URL.
type StatusChecker interface {
	Status(ctx context.Context, url string) (int, error)
}

// Verifier classifies links as broken or alive.
type Verifier struct {
	checker StatusChecker
	logger  *log.Logger
}

// NewVerifier creates a Verifier issuing requests through checker.
func NewVerifier(checker StatusChecker, logger *log.Logger) *Verifier {
	return &Verifier{checker: checker, logger: logger}
}

// IsBrokenStatus reports whether an HTTP status marks a link as broken.
func IsBrokenStatus(code int) bool {
	return code == http.StatusNotFound || code >= http.StatusInternalServerError
}

// Check verifies link. It never fails: a response is judged by its status,
// a failure carrying 404 is broken, and any other failure (timeout, DNS,
// connection reset, redirect cap) counts as alive with the last known status,
// or 500 when there is none.
func (v *Verifier) Check(ctx context.Context, link string) Status {
	code, err := v.checker.Status(ctx, link)
	if err == nil {
		return Status{Broken: IsBrokenStatus(code), StatusCode: code}
	}

	if code == http.StatusNotFound {
		return Status{Broken: true, StatusCode: code}
	}

	v.logger.Warn("error checking link", "link", link, "kind", fetch.FailureKind(err), "err", err)

	if code == 0 {
		code = http.StatusInternalServerError
	}
	return Status{Broken: false, StatusCode: code}
}
