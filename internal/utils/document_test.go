package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDocument(t *testing.T) {
	assert.Equal(t, "12345678909", NormalizeDocument("123.456.789-09"))
	assert.Equal(t, "11222333000181", NormalizeDocument("11.222.333/0001-81"))
	assert.Equal(t, "", NormalizeDocument("--"))
}

func TestHashDocument(t *testing.T) {
	a := HashDocument("123.456.789-09", "secret")
	b := HashDocument("12345678909", "secret")

	assert.Equal(t, a, b, "formatting must not change the hash")
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "12345678909")
	assert.NotEqual(t, a, HashDocument("12345678909", "other"))
}
