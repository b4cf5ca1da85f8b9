package persistence

import (
	"strings"
	"testing"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceTableNames(t *testing.T) {
	cases := map[marketdata.Resolution]string{
		marketdata.ResolutionMinute: `"InvestDataMinute"`,
		marketdata.ResolutionHour:   `"InvestDataHour"`,
		marketdata.ResolutionDay:    `"InvestDataDay"`,
		marketdata.ResolutionWeek:   `"InvestDataWeek"`,
		marketdata.ResolutionMonth:  `"InvestDataMonth"`,
		marketdata.ResolutionLevel1: `"InvestDataLevel1"`,
	}
	for resolution, want := range cases {
		got, err := priceTable("Invest", resolution)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPriceTableRejectsLevel2AndBadProvider(t *testing.T) {
	_, err := priceTable("Invest", marketdata.ResolutionLevel2)
	assert.ErrorIs(t, err, marketdata.ErrNotImplemented)

	_, err = priceTable(`x"; DROP TABLE countries; --`, marketdata.ResolutionDay)
	assert.ErrorIs(t, err, refdata.ErrInvalidProvider)
}

func TestAssociationTables(t *testing.T) {
	assert.Equal(t, `"InvestCountryFundamentalAssociations"`, associationTable("Invest", kindCountry))
	assert.Equal(t, `"InvestInstrumentFundamentalValues"`, valueTable("Invest", kindInstrument))
	assert.Equal(t, "country_id", kindCountry.column())
	assert.Equal(t, "ticker", kindInstrument.column())
}

func TestProviderDDL(t *testing.T) {
	stmts, err := providerDDL("Invest")
	require.NoError(t, err)
	assert.Len(t, stmts, 2*len(entityKinds)+len(marketdata.Resolutions))

	var level1 string
	for _, stmt := range stmts {
		assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS "))
		if strings.Contains(stmt, `"InvestDataLevel1"`) {
			level1 = stmt
		}
	}
	require.NotEmpty(t, level1)
	assert.Contains(t, level1, "bid_size")
	assert.NotContains(t, level1, "volume")
	assert.Contains(t, level1, "PRIMARY KEY (ticker, date_time)")

	_, err = providerDDL("1bad")
	assert.ErrorIs(t, err, refdata.ErrInvalidProvider)
}
