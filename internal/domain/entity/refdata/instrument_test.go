package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentNormalize(t *testing.T) {
	inst := &Instrument{Ticker: " msft ", AlternateTickers: []string{"msft", "Msft.O", "MSFT.O", ""}}
	require.NoError(t, inst.Normalize())

	assert.Equal(t, "MSFT", inst.Ticker)
	assert.Equal(t, []string{"MSFT.O"}, inst.AlternateTickers)
	assert.Equal(t, InstrumentUnknown, inst.Type)

	assert.Error(t, (&Instrument{Ticker: "  "}).Normalize())
}

func TestInstrumentEquivalence(t *testing.T) {
	a := &Instrument{Ticker: "BRK.B", AlternateTickers: []string{"BRKB"}}
	b := &Instrument{Ticker: "BRK-B", AlternateTickers: []string{"BRKB"}}
	c := &Instrument{Ticker: "AAPL"}

	assert.True(t, a.Matches("brkb"))
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestInstrumentNormalizePrice(t *testing.T) {
	inst := &Instrument{PriceDecimals: 2, MinMovement: 5}
	assert.Equal(t, 101.25, inst.NormalizePrice(101.2312))
	assert.Equal(t, 101.3, inst.NormalizePrice(101.2761))

	whole := &Instrument{PriceDecimals: 0, MinMovement: 1}
	assert.Equal(t, 12.0, whole.NormalizePrice(11.6))

	plain := &Instrument{PriceDecimals: 3}
	assert.Equal(t, 1.235, plain.NormalizePrice(1.23456))
}

func TestInstrumentSecondaryExchangeSkipsPrimary(t *testing.T) {
	primary := InternationalCountryID
	inst := &Instrument{Ticker: "X", PrimaryExchangeID: primary}
	inst.AddSecondaryExchange(primary)
	assert.Empty(t, inst.SecondaryExchangeIDs)
}

func TestValidateProviderName(t *testing.T) {
	assert.NoError(t, ValidateProviderName("Invest"))
	assert.NoError(t, ValidateProviderName("p2"))
	assert.ErrorIs(t, ValidateProviderName("2p"), ErrInvalidProvider)
	assert.ErrorIs(t, ValidateProviderName(`x"; DROP TABLE countries; --`), ErrInvalidProvider)
	assert.ErrorIs(t, ValidateProviderName(""), ErrInvalidProvider)
}
