package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrNotFound, "application not found")

	assert.Equal(t, "application not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	raw := fmt.Errorf("boom")
	appErr := FromError(raw)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, raw)
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("outer: %w", ErrForbidden)
	assert.Equal(t, ErrForbidden, FromError(wrapped))
}

type loanForm struct {
	FullName   string `validate:"required"`
	CibilScore int    `validate:"min=300,max=900"`
}

func TestValidationListsFailingFields(t *testing.T) {
	err := validator.New().Struct(loanForm{CibilScore: 120})
	appErr := Validation(err, "invalid application payload")

	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.True(t, errors.Is(appErr, ErrValidation))
	assert.Equal(t, "invalid application payload: FullName, CibilScore", appErr.Message)
	assert.Equal(t, []FieldError{{Field: "FullName", Rule: "required"}, {Field: "CibilScore", Rule: "min"}}, appErr.Fields)

	plain := Validation(fmt.Errorf("unexpected EOF"), "invalid login payload")
	assert.Equal(t, "invalid login payload", plain.Message)
	assert.Empty(t, plain.Fields)
	assert.Empty(t, Clone(appErr, "").Fields)
}

func TestInternalKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Internal(cause, "failed to store document")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "failed to store document: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}
