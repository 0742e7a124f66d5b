package domain

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationError(nil).HTTPStatus())
	assert.Equal(t, http.StatusForbidden, AuthorizationError("no").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFoundError("thing").HTTPStatus())
	assert.Equal(t, http.StatusConflict, ConflictError("busy").HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, StateError("wrong state").HTTPStatus())
}

func TestAsErrorUnwrapsWrappedErrors(t *testing.T) {
	base := NotFoundError("proposal")
	wrapped := fmt.Errorf("while deciding: %w", base)

	de, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, de.Kind)

	_, ok = AsError(fmt.Errorf("plain error"))
	assert.False(t, ok)
}

func TestValidationErrorMessageCountsFields(t *testing.T) {
	err := ValidationError(map[string]string{"title": "too short", "city": "required"})
	assert.Contains(t, err.Error(), "2 invalid fields")
	assert.Equal(t, "thing not found", NotFoundError("thing").Error())
}
