package refdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewCountryValidatesCode(t *testing.T) {
	c, err := NewCountry("us")
	require.NoError(t, err)
	assert.Equal(t, "US", c.IsoCode)
	assert.True(t, c.Attributes.Deletable())

	_, err = NewCountry("ZZZZ")
	assert.ErrorIs(t, err, ErrInvalidCountryCode)
}

func TestCountryLocalize(t *testing.T) {
	c, err := NewCountry("DE")
	require.NoError(t, err)

	c.Localize(language.English)
	assert.Equal(t, "Germany", c.DisplayName)
	assert.Equal(t, "EUR", c.Currency)

	c.Localize(language.German)
	assert.Equal(t, "Deutschland", c.DisplayName)
}

func TestInternationalCountry(t *testing.T) {
	c := NewInternationalCountry()
	assert.True(t, c.IsInternational())
	assert.False(t, c.Attributes.Deletable())

	c.Localize(language.English)
	assert.Equal(t, "world", strings.ToLower(c.DisplayName))
}

