package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorKeepsCode(t *testing.T) {
	cause := fmt.Errorf("cipher: message authentication failed")
	err := fmt.Errorf("decrypt payload: %w", ErrDecryption.WithCause(cause))

	assert.True(t, IsDecryption(err))
	assert.True(t, stderrors.Is(err, ErrDecryption))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(err))
}

func TestFatalAndRetryable(t *testing.T) {
	assert.True(t, ErrValidation.IsFatal())
	assert.False(t, ErrValidation.IsRetryable())
	assert.True(t, ErrServiceUnavailable.IsRetryable())
	assert.True(t, ErrServiceUnavailable.AsFatal().IsFatal())
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrNotFound.WithMessage("message m-1 not found")
	assert.Empty(t, ErrNotFound.Details)
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrNotFound.WithMessage("message m-1 not found"))
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.Equal(t, "message m-1 not found", resp["error"])

	resp = ToErrorResponse(fmt.Errorf("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("stage exploded")
	var appErr *Error
	assert.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
}
