package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorsAggregation(t *testing.T) {
	errs := NewValidationErrors([]FieldError{
		{Field: "name", Message: "is required"},
		{Field: "age", Message: "expected integer"},
	})

	assert.Equal(t, http.StatusBadRequest, errs.HTTPStatus())
	assert.Equal(t, "VALIDATION_ERROR", errs.Code())
	assert.Contains(t, errs.Error(), "name: is required")
	assert.Contains(t, errs.Error(), "age: expected integer")

	assert.True(t, IsValidation(errs))
	assert.Len(t, Details(errs), 2)
}

func TestPredicatesUnwrapWrappedErrors(t *testing.T) {
	base := NewConflictError("Table", "name", "person")
	wrapped := fmt.Errorf("create table: %w", base)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(wrapped))
	assert.Equal(t, "CONFLICT", GetErrorCode(wrapped))
}

func TestGetHTTPStatusDefaults(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(fmt.Errorf("boom")))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(fmt.Errorf("boom")))
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewPersistenceError("record insert", cause)

	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)
}
