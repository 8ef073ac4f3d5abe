package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = NotFound("order_not_found", "order not found")

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(errSample))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", errSample)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestIs_MatchesCopies(t *testing.T) {
	wrapped := errSample.Wrap(errors.New("sql: no rows"))
	assert.True(t, errors.Is(wrapped, errSample))
	assert.True(t, errors.Is(errSample.WithMessage("order %d not found", 7), errSample))
	assert.False(t, errors.Is(wrapped, Validation("order_not_found", "x")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "order_not_found", CodeOf(errSample))
	assert.Equal(t, "internal_error", CodeOf(errors.New("x")))
	assert.Equal(t, "upstream_failure", Upstream("", errors.New("timeout")).Kind.String())
}

func TestError_Message(t *testing.T) {
	err := Upstream("courier_unavailable", errors.New("timeout"))
	assert.Equal(t, "upstream request failed: timeout", err.Error())
	assert.Equal(t, "order not found", errSample.Error())
}
