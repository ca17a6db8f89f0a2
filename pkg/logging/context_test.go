package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

func TestFromContextDefaults(t *testing.T) {
	assert.Equal(t, logging.Default(), logging.FromContext(context.Background()))
	//nolint:staticcheck // nil context is tolerated
	assert.Equal(t, logging.Default(), logging.FromContext(nil))
}

func TestContextFields(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithRequestID(ctx, "req-123")
	ctx = logging.WithAdapter(ctx, "nuget")
	ctx = logging.WithGroup(ctx, "/dotnetregistries/nuget.org")
	ctx = logging.WithResource(ctx, "/dotnetregistries/nuget.org/packages/Newtonsoft.Json")
	ctx = logging.WithFeed(ctx, "catalog0")

	logging.FromContext(ctx).Info().Msg("hello")

	assert.Equal(t, "req-123", logging.RequestID(ctx))
	tl.AssertContains(t, `"request_id":"req-123"`)
	tl.AssertContains(t, `"adapter":"nuget"`)
	tl.AssertContains(t, `"group":"/dotnetregistries/nuget.org"`)
	tl.AssertContains(t, `"resource":"/dotnetregistries/nuget.org/packages/Newtonsoft.Json"`)
	tl.AssertContains(t, `"feed":"catalog0"`)
	assert.Len(t, tl.Lines(), 1)
}

func TestRequestIDMissing(t *testing.T) {
	assert.Empty(t, logging.RequestID(context.Background()))
}
