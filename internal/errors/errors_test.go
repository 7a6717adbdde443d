package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("loan %d not found", 7)

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))
	assert.Equal(t, "loan 7 not found", err.Error())
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := StoreFailuref(cause, "insert loan")

	assert.True(t, Is(err, cause))
	assert.True(t, Is(err, ErrStoreFailure))
	assert.Equal(t, "insert loan: disk full", err.Error())

	wrapped := fmt.Errorf("issue book: %w", err)
	assert.Equal(t, CodeStoreFailure, CodeOf(wrapped))
	assert.Equal(t, http.StatusInternalServerError, CodeOf(wrapped).HTTPStatus())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeCopyUnavailable, http.StatusConflict},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNoAvailableCopy, http.StatusBadRequest},
		{CodeDeleteBlocked, http.StatusBadRequest},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeStoreFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("x")))
}

func TestWithDetails(t *testing.T) {
	err := ErrValidation.WithDetails(map[string]string{"email": "is required"})
	assert.True(t, Is(err, ErrValidation))
	assert.NotNil(t, err.Details)
	assert.Nil(t, ErrValidation.Details)
}
