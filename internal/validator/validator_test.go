package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registration struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func TestStruct(t *testing.T) {
	assert.Nil(t, Struct(&registration{Name: "Komang", Email: "komang@example.com"}))

	fields := Struct(&registration{Email: "nope"})
	require.Len(t, fields, 2)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields["email"], "valid email")
}
