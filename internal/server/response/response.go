// Package response writes registry documents and problem details. Every
// document carries a strong ETag computed from its body, so clients can
// revalidate with If-None-Match and receive 304 without a body.
package response

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/constants"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// Problem is an RFC 7807 style error document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Instance string `json:"instance"`
	Detail   string `json:"detail,omitempty"`
}

// Problem types.
const (
	TypeInvalidRequest      = "invalid_request"
	TypeUnauthorized        = "unauthorized"
	TypeNotFound            = "entity_not_found"
	TypeNotAcceptable       = "not_acceptable"
	TypeMethodNotAllowed    = "action_not_supported"
	TypeUpstreamUnavailable = "upstream_unavailable"
	TypeAdapterUnreachable  = "adapter_unreachable"
	TypeRateLimited         = "too_many_requests"
	TypeServerError         = "server_error"
)

// ProblemContentType is the media type of problem documents.
const ProblemContentType = "application/problem+json"

// ETag returns the strong entity tag of body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// JSON marshals v and writes it as a registry document. lastModified may be
// zero. A matching If-None-Match yields 304 with no body.
func JSON(w http.ResponseWriter, r *http.Request, v any, lastModified time.Time) {
	body, err := json.Marshal(v)
	if err != nil {
		ErrorFromType(w, r, errors.WrapParse("json", r.URL.Path, err))
		return
	}
	Raw(w, r, http.StatusOK, body, constants.MediaType, lastModified)
}

// Raw writes an already encoded body with the conditional headers.
func Raw(w http.ResponseWriter, r *http.Request, status int, body []byte, contentType string, lastModified time.Time) {
	etag := ETag(body)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "no-cache")
	if !lastModified.IsZero() {
		h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}

	if status == http.StatusOK && NotModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", contentType)
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		logging.FromContext(r.Context()).Debug().Err(err).Msg("Failed to write response body")
	}
}

// NotModified reports whether the request's If-None-Match matches etag.
func NotModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}
	for _, t := range strings.Split(inm, ",") {
		t = strings.TrimSpace(t)
		if t == "*" || strings.TrimPrefix(t, "W/") == etag {
			return true
		}
	}
	return false
}

// AddWarning appends a Warning header (code 199, miscellaneous).
func AddWarning(w http.ResponseWriter, text string) {
	w.Header().Add("Warning", `199 - "`+strings.ReplaceAll(text, `"`, `'`)+`"`)
}

// WriteProblem writes a problem document.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, typ, title, detail string) {
	p := Problem{
		Type:     typ,
		Title:    title,
		Status:   status,
		Instance: r.URL.Path,
		Detail:   detail,
	}
	body, _ := json.Marshal(p)
	w.Header().Set("Content-Type", ProblemContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	WriteProblem(w, r, http.StatusNotFound, TypeNotFound, "The requested entity was not found", detail)
}

// MethodNotAllowed writes a 405 problem. The registry is read-only.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	WriteProblem(w, r, http.StatusMethodNotAllowed, TypeMethodNotAllowed,
		"Method not allowed", "method "+r.Method+" is not supported by this read-only registry")
}

// Unauthorized writes a 401 problem with a bearer challenge.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="xregistry"`)
	WriteProblem(w, r, http.StatusUnauthorized, TypeUnauthorized, "Authentication required", detail)
}

// RateLimited writes a 429 problem.
func RateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	WriteProblem(w, r, http.StatusTooManyRequests, TypeRateLimited, "Rate limit exceeded", "too many requests, retry later")
}

// InternalError writes a 500 problem without exposing err.
func InternalError(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, r, http.StatusInternalServerError, TypeServerError, "Internal server error", "an unexpected error occurred")
}

// ErrorFromType maps typed errors to problem documents.
func ErrorFromType(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	switch {
	case errors.IsValidationError(err):
		WriteProblem(w, r, http.StatusBadRequest, TypeInvalidRequest, "Invalid request", err.Error())
	case errors.IsUnauthorized(err):
		Unauthorized(w, r, err.Error())
	case errors.IsNotAcceptable(err):
		WriteProblem(w, r, http.StatusNotAcceptable, TypeNotAcceptable, "Not acceptable", err.Error())
	case errors.IsNotFound(err):
		NotFound(w, r, err.Error())
	case errors.IsCanceled(err) || errors.Is(err, context.Canceled):
		logger.Debug().Err(err).Msg("Request canceled")
		WriteProblem(w, r, http.StatusServiceUnavailable, TypeUpstreamUnavailable, "Request canceled", err.Error())
	case errors.IsUpstreamUnavailable(err) || errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("Upstream unavailable")
		WriteProblem(w, r, http.StatusServiceUnavailable, TypeUpstreamUnavailable, "Upstream registry unavailable", err.Error())
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		InternalError(w, r)
	}
}
