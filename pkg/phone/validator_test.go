package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("Valid US number", func(t *testing.T) {
		result, err := Validate("+12125551234", "")
		require.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Equal(t, "+12125551234", result.E164Format)
		assert.Equal(t, "US", result.CountryCode)
	})

	t.Run("National format uses region hint", func(t *testing.T) {
		result, err := Validate("2125551234", "US")
		require.NoError(t, err)
		assert.Equal(t, "+12125551234", result.E164Format)
	})

	t.Run("Error - empty number", func(t *testing.T) {
		_, err := Validate("", "US")
		assert.Error(t, err)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("Normalizes to E164", func(t *testing.T) {
		normalized, err := Normalize("(212) 555-1234", "US")
		require.NoError(t, err)
		assert.Equal(t, "+12125551234", normalized)
	})

	t.Run("Error - invalid number", func(t *testing.T) {
		_, err := Normalize("12345", "US")
		assert.Error(t, err)
	})
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("+12125551234", ""))
	assert.False(t, IsValid("12345", "US"))
	assert.False(t, IsValid("", "US"))
}
