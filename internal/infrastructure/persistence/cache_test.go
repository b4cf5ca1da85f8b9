package persistence

import (
	"context"
	"errors"
	"testing"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssociations struct {
	data     map[string]map[associationKey]uuid.UUID
	loads    map[string]int
	queriers []querier
	err      error
}

func newFakeAssociations() *fakeAssociations {
	return &fakeAssociations{
		data:  make(map[string]map[associationKey]uuid.UUID),
		loads: make(map[string]int),
	}
}

func (f *fakeAssociations) add(provider string, key associationKey, id uuid.UUID) {
	if f.data[provider] == nil {
		f.data[provider] = make(map[associationKey]uuid.UUID)
	}
	f.data[provider][key] = id
}

func (f *fakeAssociations) load(_ context.Context, q querier, provider string) (map[associationKey]uuid.UUID, error) {
	f.loads[provider]++
	f.queriers = append(f.queriers, q)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[associationKey]uuid.UUID, len(f.data[provider]))
	for k, v := range f.data[provider] {
		out[k] = v
	}
	return out, nil
}

func TestAssociationCacheHitsOwnProvider(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAssociations()
	key := countryKey(uuid.New(), uuid.New())
	id := uuid.New()
	fake.add("Invest", key, id)

	cache := NewAssociationCache(fake.load)
	for range 3 {
		got, owner, err := cache.Lookup(ctx, nil, "Invest", []string{"Invest", "Other"}, key)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		assert.Equal(t, "Invest", owner)
	}
	assert.Equal(t, 1, fake.loads["Invest"])
	assert.Zero(t, fake.loads["Other"])
}

func TestAssociationCacheFallsBackInNameOrder(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAssociations()
	key := instrumentKey(uuid.New(), "SBER")
	alpha, zulu := uuid.New(), uuid.New()
	fake.add("Zulu", key, zulu)
	fake.add("Alpha", key, alpha)

	cache := NewAssociationCache(fake.load)
	got, owner, err := cache.Lookup(ctx, nil, "Invest", []string{"Zulu", "Invest", "Alpha"}, key)
	require.NoError(t, err)
	assert.Equal(t, alpha, got)
	assert.Equal(t, "Alpha", owner)
}

func TestAssociationCacheMiss(t *testing.T) {
	cache := NewAssociationCache(newFakeAssociations().load)
	_, _, err := cache.Lookup(context.Background(), nil, "Invest", []string{"Invest", "Other"}, countryKey(uuid.New(), uuid.New()))
	assert.ErrorIs(t, err, refdata.ErrNotAssociated)
}

func TestAssociationCacheInvalidateRebuilds(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAssociations()
	key := countryKey(uuid.New(), uuid.New())
	cache := NewAssociationCache(fake.load)

	_, _, err := cache.Lookup(ctx, nil, "Invest", nil, key)
	require.ErrorIs(t, err, refdata.ErrNotAssociated)

	id := uuid.New()
	fake.add("Invest", key, id)
	_, _, err = cache.Lookup(ctx, nil, "Invest", nil, key)
	require.ErrorIs(t, err, refdata.ErrNotAssociated, "stale index is used until invalidated")

	cache.Invalidate("Invest")
	got, _, err := cache.Lookup(ctx, nil, "Invest", nil, key)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 2, fake.loads["Invest"])

	cache.Invalidate("")
	assert.Zero(t, cache.Len())
}

func TestAssociationCacheLoadError(t *testing.T) {
	fake := newFakeAssociations()
	fake.err = errors.New("connection refused")
	cache := NewAssociationCache(fake.load)

	_, _, err := cache.Lookup(context.Background(), nil, "Invest", nil, countryKey(uuid.New(), uuid.New()))
	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, cache.Len())
}

type txQuerier struct{ name string }

func (txQuerier) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func TestAssociationCacheRebuildsThroughCallerQuerier(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAssociations()
	key := countryKey(uuid.New(), uuid.New())
	fake.add("Other", key, uuid.New())
	cache := NewAssociationCache(fake.load)

	tx := &txQuerier{name: "tx"}
	_, owner, err := cache.Lookup(ctx, tx, "Invest", []string{"Invest", "Other"}, key)
	require.NoError(t, err)
	assert.Equal(t, "Other", owner)
	require.Len(t, fake.queriers, 2)
	for _, q := range fake.queriers {
		assert.Same(t, tx, q)
	}
}
