package domainerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "kinerja/pkg/domain-errors"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := dErrors.New(dErrors.CodeConflict, "duplicate target")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("wrapped code is found through the chain", func(t *testing.T) {
		inner := dErrors.New(dErrors.CodeNotFound, "indicator missing")
		outer := dErrors.Wrap(inner, dErrors.CodeInternal, "load indicator")
		assert.True(t, dErrors.HasCode(outer, dErrors.CodeNotFound))
		assert.True(t, dErrors.HasCode(outer, dErrors.CodeInternal))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, dErrors.HasCode(errors.New("boom"), dErrors.CodeInternal))
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, dErrors.Wrap(nil, dErrors.CodeInternal, "ignored"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(dErrors.New(dErrors.CodeValidation, "bad period")))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(fmt.Errorf("uncoded")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("pq: unique violation")
	err := dErrors.Wrap(cause, dErrors.CodeConflict, "target exists")
	assert.ErrorIs(t, err, cause)
}
