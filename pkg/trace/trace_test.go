package trace

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))

	id := GenerateTraceID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	ctx := WithContext(context.Background(), id)
	assert.Equal(t, id, FromContext(ctx))
}
