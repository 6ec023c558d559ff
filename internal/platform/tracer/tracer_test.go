package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopTracer(t *testing.T) {
	tr := NewNoop()

	ctx := context.Background()
	gotCtx, span := tr.Start(ctx, SpanLoginLocal, String(AttrEmailHash, "abcd"))

	assert.Equal(t, ctx, gotCtx, "noop tracer must not replace the context")
	assert.NotPanics(t, func() {
		span.SetAttributes(Bool(AttrForceReauth, true))
		span.AddEvent("checked")
		span.End(nil)
	})
}

func TestHashEmail(t *testing.T) {
	assert.Empty(t, HashEmail(""))

	h1 := HashEmail("admin@example.com")
	h2 := HashEmail("admin@example.com")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
	assert.NotEqual(t, h1, HashEmail("other@example.com"))
	assert.NotContains(t, h1, "@")
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, Attribute{Key: "k", Value: "v"}, String("k", "v"))
	assert.Equal(t, Attribute{Key: "k", Value: true}, Bool("k", true))
	assert.Equal(t, Attribute{Key: "k", Value: int64(7)}, Int64("k", 7))
}
