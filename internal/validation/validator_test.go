package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/internal/validation"
)

type memberRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Days  int    `json:"days,omitempty" validate:"gte=0,lte=365"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(memberRequest{Name: "Ada", Email: "ada@example.com", Days: 14}))
}

func TestValidator_Errors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       memberRequest
		wantField string
	}{
		{"missing name", memberRequest{Email: "ada@example.com"}, "name"},
		{"bad email", memberRequest{Name: "Ada", Email: "nope"}, "email"},
		{"days too large", memberRequest{Name: "Ada", Email: "ada@example.com", Days: 400}, "days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Details, tt.wantField)
			assert.Contains(t, domainErr.Message, tt.wantField)
		})
	}
}
