package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name  string `json:"name" validate:"required,max=5"`
	Email string `json:"email" validate:"required,email"`
	Kind  string `json:"kind" validate:"omitempty,oneof=A B"`
}

func TestStruct(t *testing.T) {
	err := Struct(form{Name: "toolong", Email: "nope", Kind: "C"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	fields, ok := Details(err)
	require.True(t, ok)
	assert.Equal(t, "must be at most 5 characters", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be one of: A B", fields["kind"])

	assert.NoError(t, Struct(form{Name: "ok", Email: "a@example.com"}))
}

func TestVarAndField(t *testing.T) {
	err := Var("email", "x", "required,email")
	fields, ok := Details(err)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email address", fields["email"])

	assert.NoError(t, Var("email", "a@example.com", "required,email"))

	err = Field("notes", "is required when rejecting")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "notes: is required when rejecting")
}

func TestDetails_NotValidation(t *testing.T) {
	_, ok := Details(errors.New("boom"))
	assert.False(t, ok)
}
