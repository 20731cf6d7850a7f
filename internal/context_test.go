package internal

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req_1")
	assert.Equal(t, "req_1", GetRequestID(ctx))

	id := NewRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.Len(t, id, 12)
	assert.NotEqual(t, id, NewRequestID())
}
