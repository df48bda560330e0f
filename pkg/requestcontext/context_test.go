package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Operator(ctx))

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithOperator(ctx, "screening-ops")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "screening-ops", Operator(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
