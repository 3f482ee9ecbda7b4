package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := New(KindRerank, "rerank failed")
	wrapped := fmt.Errorf("answering query: %w", inner)

	assert.Equal(t, KindRerank, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindRerank))
	assert.False(t, IsKind(wrapped, KindGeneration))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestRetryableFlag(t *testing.T) {
	base := errors.New("connection refused")

	assert.True(t, IsRetryable(Retryable(KindIndex, "index write failed", base)))
	assert.False(t, IsRetryable(Wrap(KindIndex, "index write failed", base)))
	assert.False(t, IsRetryable(base))
}

func TestUnwrapPreservesCause(t *testing.T) {
	base := errors.New("root cause")
	err := Wrap(KindEmbedding, "embed failed", base)

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "embed failed")
	assert.Contains(t, err.Error(), "root cause")
}
