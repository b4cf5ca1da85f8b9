//go:build integration

package persistence

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationRepository(t *testing.T) *Repository {
	t.Helper()
	return newIntegrationRepositoryWithConns(t, 4)
}

func newIntegrationRepositoryWithConns(t *testing.T, maxConns int32) *Repository {
	t.Helper()
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("DATABASE_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger, _ := test.NewNullLogger()
	repo, err := NewRepository(ctx, Config{DSN: dsn, MaxConns: maxConns, CommandTimeout: 10 * time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	require.NoError(t, repo.CreateSchema(ctx))
	return repo
}

func uniqueProvider(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

func TestIntegrationCountryRoundTrip(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()

	country := &refdata.Country{ID: uuid.New(), Attributes: refdata.AttrDefault, IsoCode: uuid.NewString()[:8]}
	country.Tag.Set("source", refdata.StringValue("integration"))
	require.NoError(t, repo.CreateCountry(ctx, country))
	t.Cleanup(func() { _ = repo.DeleteCountry(context.Background(), country.ID) })

	countries, err := repo.LoadCountries(ctx)
	require.NoError(t, err)
	var found *refdata.Country
	for _, c := range countries {
		if c.ID == country.ID {
			found = c
		}
	}
	require.NotNil(t, found)
	value, ok := found.Tag.Get("source")
	require.True(t, ok)
	assert.Equal(t, "integration", value.Str)

	require.NoError(t, repo.DeleteCountry(ctx, country.ID))
	assert.ErrorIs(t, repo.DeleteCountry(ctx, country.ID), refdata.ErrNotFound)
}

func TestIntegrationAssociationReuseAndInvalidation(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	first, second := uniqueProvider("A"), uniqueProvider("B")
	require.NoError(t, repo.RegisterProvider(ctx, first))
	require.NoError(t, repo.RegisterProvider(ctx, second))

	fundamental := &refdata.Fundamental{
		ID:              uuid.New(),
		Attributes:      refdata.AttrDefault,
		Name:            "GDP " + first,
		Category:        refdata.CategoryCountry,
		ReleaseInterval: refdata.ReleaseQuarterly,
	}
	require.NoError(t, repo.CreateFundamental(ctx, fundamental))
	countryID := uuid.New()

	id, err := repo.CreateCountryFundamental(ctx, first, fundamental.ID, countryID)
	require.NoError(t, err)
	again, err := repo.CreateCountryFundamental(ctx, first, fundamental.ID, countryID)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	at := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertCountryFundamentalValue(ctx, second, fundamental.ID, countryID, refdata.FundamentalValue{DateTime: at, Value: 1.5}))

	loaded, err := repo.LoadCountryFundamentals(ctx, second)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, id, loaded[0].AssociationID)
	require.Len(t, loaded[0].Values, 1)
	assert.Equal(t, 1.5, loaded[0].Values[0].Value)

	require.NoError(t, repo.DeleteFundamental(ctx, fundamental.ID))
	err = repo.UpsertCountryFundamentalValue(ctx, first, fundamental.ID, countryID, refdata.FundamentalValue{DateTime: at, Value: 2})
	assert.ErrorIs(t, err, refdata.ErrNotAssociated)
}

func TestIntegrationValueWriteWithSingleConnection(t *testing.T) {
	repo := newIntegrationRepositoryWithConns(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	provider := uniqueProvider("S")
	require.NoError(t, repo.RegisterProvider(ctx, provider))

	fundamental := &refdata.Fundamental{
		ID:              uuid.New(),
		Attributes:      refdata.AttrDefault,
		Name:            "CPI " + provider,
		Category:        refdata.CategoryCountry,
		ReleaseInterval: refdata.ReleaseMonthly,
	}
	require.NoError(t, repo.CreateFundamental(ctx, fundamental))
	t.Cleanup(func() { _ = repo.DeleteFundamental(context.Background(), fundamental.ID) })
	countryID := uuid.New()
	_, err := repo.CreateCountryFundamental(ctx, provider, fundamental.ID, countryID)
	require.NoError(t, err)

	// The association index is cold, so it is rebuilt inside the write.
	at := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertCountryFundamentalValue(ctx, provider, fundamental.ID, countryID, refdata.FundamentalValue{DateTime: at, Value: 3}))
	require.NoError(t, repo.DeleteCountryFundamentalValue(ctx, provider, fundamental.ID, countryID, at))
}

func TestIntegrationBarsUpsertAndRead(t *testing.T) {
	repo := newIntegrationRepository(t)
	ctx := context.Background()
	provider := uniqueProvider("P")
	require.NoError(t, repo.RegisterProvider(ctx, provider))

	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, 0, 5)
	for i := 4; i >= 0; i-- {
		bars = append(bars, marketdata.Bar{
			DateTime:  start.Add(time.Duration(i) * time.Minute),
			Open:      float64(i),
			High:      float64(i) + 1,
			Low:       float64(i) - 1,
			Close:     float64(i),
			Volume:    10,
			Synthetic: i == 2,
		})
	}
	require.NoError(t, repo.UpsertBars(ctx, provider, "SBER", marketdata.ResolutionMinute, bars))
	require.NoError(t, repo.UpsertBars(ctx, provider, "SBER", marketdata.ResolutionMinute, []marketdata.Bar{
		{DateTime: start, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
	}))

	cache, err := repo.GetDataCache(ctx, provider, "SBER", marketdata.ResolutionMinute, start, start.Add(time.Hour), marketdata.PriceDataBoth)
	require.NoError(t, err)
	require.Equal(t, 5, cache.Count())
	assert.Equal(t, start, cache.DateTime[0])
	assert.Equal(t, 100.0, cache.Close[0])
	assert.True(t, cache.DateTime[3].After(cache.DateTime[2]))

	actual, err := repo.GetDataCache(ctx, provider, "SBER", marketdata.ResolutionMinute, start, start.Add(time.Hour), marketdata.PriceDataActual)
	require.NoError(t, err)
	assert.Equal(t, 4, actual.Count())

	removed, err := repo.DeletePriceData(ctx, provider, "SBER", marketdata.ResolutionMinute, start, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}
