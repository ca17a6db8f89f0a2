package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/clemensv/xregistry-package-registries-sub002/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{Resource: "package", ID: "Newtonsoft.Json"}
		assert.Equal(t, `package "Newtonsoft.Json" not found`, err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("version", "13.0.1")
		wrapped := fmt.Errorf("lookup failed: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
		assert.False(t, pkgerrors.IsValidationError(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("limit", "-1", "must be a positive integer")
		assert.Equal(t, "invalid value for limit: must be a positive integer", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty filter term"}
		assert.Equal(t, "invalid request: empty filter term", err.Error())
	})
}

func TestIdentifierError(t *testing.T) {
	err := pkgerrors.NewIdentifierError("//a", "repeated separator")
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidIdentifier))
	assert.True(t, pkgerrors.IsValidationError(err))
	assert.Contains(t, err.Error(), "//a")
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
		notFound    bool
	}{
		{"unreachable", 0, true, false},
		{"server error", http.StatusBadGateway, true, false},
		{"not found", http.StatusNotFound, false, true},
		{"forbidden", http.StatusForbidden, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewUpstreamError("nuget", "https://api.nuget.org/v3/index.json", tt.status, "x")
			assert.Equal(t, tt.unavailable, pkgerrors.IsUpstreamUnavailable(err))
			assert.Equal(t, tt.notFound, pkgerrors.IsNotFound(err))
			assert.Equal(t, tt.status == 0, err.Unreachable())
		})
	}

	t.Run("wrap keeps cause", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := pkgerrors.WrapUpstream("nuget", "https://example.test", cause)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, pkgerrors.IsUpstreamUnavailable(err))

		var ue *pkgerrors.UpstreamError
		require.True(t, pkgerrors.As(err, &ue))
		assert.True(t, ue.Unreachable())
	})
}

func TestTimeoutError(t *testing.T) {
	err := &pkgerrors.TimeoutError{Operation: "adapter health", Duration: "2s"}
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.True(t, pkgerrors.IsUpstreamUnavailable(err))
}

func TestSyncError(t *testing.T) {
	cause := pkgerrors.NewUpstreamError("nuget", "page1.json", 503, "unavailable")
	err := pkgerrors.NewSyncError("nuget", "page1.json", cause)
	assert.Contains(t, err.Error(), "page1.json")
	assert.True(t, pkgerrors.IsUpstreamUnavailable(err))
}

func TestWrapHelpersNil(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapValidation("x", nil))
	assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
	assert.NoError(t, pkgerrors.WrapParse("json", "x", nil))
	assert.NoError(t, pkgerrors.WrapUpstream("x", "y", nil))
}

func TestWrapParse(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := pkgerrors.WrapParse("json", "catalog0/index.json", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "catalog0/index.json")
}
