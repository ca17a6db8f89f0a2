// Package errors provides the typed error taxonomy shared by the registry
// adapters and the gateway. Every error type supports errors.Is against one
// of the sentinel errors below, so HTTP layers can map failures to status
// codes without knowing which component produced them.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Sentinel errors. Typed errors report membership via their Is methods.
var (
	// ErrNotFound indicates that a requested group, resource, version or package does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed client input (bad limit, filter syntax, ...)
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidIdentifier indicates a malformed xid or parent path
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnauthorized indicates a missing or invalid credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAcceptable indicates a content negotiation request that cannot be satisfied
	ErrNotAcceptable = errors.New("not acceptable")

	// ErrUpstreamUnavailable indicates an upstream registry (or, at the gateway, an adapter) could not be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrRunInProgress indicates a catalog synchronization run was skipped because another is active
	ErrRunInProgress = errors.New("synchronization already in progress")

	// ErrReadOnly indicates an attempt to modify the read-only registry
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a rejected request parameter.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IdentifierError reports a malformed xid or parent path.
type IdentifierError struct {
	Path    string
	Message string
}

// Error implements the error interface
func (e *IdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Path, e.Message)
}

// Is implements errors.Is support. An invalid identifier is also invalid input.
func (e *IdentifierError) Is(target error) bool {
	return target == ErrInvalidIdentifier || target == ErrInvalidInput
}

// NewIdentifierError creates a new IdentifierError
func NewIdentifierError(path, message string) *IdentifierError {
	return &IdentifierError{Path: path, Message: message}
}

// NotAcceptableError reports an Accept header or schema parameter the
// server cannot produce.
type NotAcceptableError struct {
	What  string // "accept", "schema"
	Value string
}

// Error implements the error interface
func (e *NotAcceptableError) Error() string {
	return fmt.Sprintf("cannot satisfy %s %q", e.What, e.Value)
}

// Is implements errors.Is support
func (e *NotAcceptableError) Is(target error) bool {
	return target == ErrNotAcceptable
}

// AuthenticationError represents a missing or rejected credential.
type AuthenticationError struct {
	Method  string // "bearer"
	Message string
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Is implements errors.Is support
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// UpstreamError represents a failed call to an upstream registry API or,
// at the gateway, to a downstream adapter. StatusCode is zero when no
// response was received at all.
type UpstreamError struct {
	Upstream   string
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned %d for %s: %s", e.Upstream, e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("upstream %s unreachable for %s: %s", e.Upstream, e.URL, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. Transport failures and 5xx answers
// count as unavailability; a 404 counts as not found.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamUnavailable:
		return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Unreachable reports whether no HTTP response was received.
func (e *UpstreamError) Unreachable() bool {
	return e.StatusCode == 0
}

// NewUpstreamError creates a new UpstreamError for an HTTP status answer.
func NewUpstreamError(upstream, url string, statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		Upstream:   upstream,
		URL:        url,
		StatusCode: statusCode,
		Message:    message,
	}
}

// SyncError represents a failure while synchronizing a catalog feed page.
type SyncError struct {
	Feed string
	Page string
	Err  error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Page != "" {
		return fmt.Sprintf("sync error for feed %s (page %s): %v", e.Feed, e.Page, e.Err)
	}
	return fmt.Sprintf("sync error for feed %s: %v", e.Feed, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(feed, page string, err error) *SyncError {
	return &SyncError{Feed: feed, Page: page, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when decoding upstream or configuration data
type ParseError struct {
	Format  string // "json", "yaml"
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.Source, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, source, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during storage I/O
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.Operation, e.Duration)
}

// Is implements errors.Is support. A timeout is also an unavailable upstream.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrUpstreamUnavailable
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is an invalid input error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if an error is an authentication error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotAcceptable checks if an error is a content negotiation error
func IsNotAcceptable(err error) bool {
	return errors.Is(err, ErrNotAcceptable)
}

// IsUpstreamUnavailable checks if an error indicates upstream unavailability
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Is is errors.Is, re-exported so callers need only this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need only this package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, source, err.Error(), err)
}

// WrapUpstream wraps a transport failure as an unreachable UpstreamError
func WrapUpstream(upstream, url string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{
		Upstream: upstream,
		URL:      url,
		Message:  err.Error(),
		Err:      err,
	}
}
