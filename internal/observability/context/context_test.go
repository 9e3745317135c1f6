package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TenantIDFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithTenantID(ctx, "42")
	ctx = WithActor(ctx, "system", "scheduler")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "42", TenantIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "system", actorType)
	assert.Equal(t, "scheduler", actorID)
}

func TestBlankValuesAreIgnored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  ")
	ctx = WithTenantID(ctx, "")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TenantIDFromContext(ctx))
}
