package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneMatchesTemplate(t *testing.T) {
	cloned := Clone(ErrNotFound, "voice call not found")
	assert.True(t, errors.Is(cloned, ErrNotFound))
	assert.False(t, errors.Is(cloned, ErrForbidden))
	assert.Equal(t, "voice call not found", cloned.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestValidationCollectsFieldDetails(t *testing.T) {
	type payload struct {
		Title string `validate:"required"`
		Grade int    `validate:"gte=0"`
	}
	err := validator.New().Struct(payload{Grade: -1})
	require.Error(t, err)

	appErr := Validation(err, "invalid payload")
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "required", appErr.Details["Title"])
	assert.Equal(t, "gte", appErr.Details["Grade"])
}
