package persistence

import (
	"context"
	"slices"
	"sync"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
)

type associationKey struct {
	kind          entityKind
	fundamentalID uuid.UUID
	entity        string
}

func countryKey(fundamentalID, countryID uuid.UUID) associationKey {
	return associationKey{kind: kindCountry, fundamentalID: fundamentalID, entity: countryID.String()}
}

func instrumentKey(fundamentalID uuid.UUID, ticker string) associationKey {
	return associationKey{kind: kindInstrument, fundamentalID: fundamentalID, entity: ticker}
}

// associationLoader reads every association id of one provider through q,
// which is the open transaction when the rebuild happens inside a write.
type associationLoader func(ctx context.Context, q querier, provider string) (map[associationKey]uuid.UUID, error)

// AssociationCache indexes association ids per provider so fundamental
// value writes skip a lookup query. A provider's index is rebuilt from
// the store on first use after it was invalidated.
type AssociationCache struct {
	mu         sync.Mutex
	load       associationLoader
	byProvider map[string]map[associationKey]uuid.UUID
}

func NewAssociationCache(load associationLoader) *AssociationCache {
	return &AssociationCache{
		load:       load,
		byProvider: make(map[string]map[associationKey]uuid.UUID),
	}
}

func (c *AssociationCache) index(ctx context.Context, q querier, provider string) (map[associationKey]uuid.UUID, error) {
	if idx, ok := c.byProvider[provider]; ok {
		return idx, nil
	}
	idx, err := c.load(ctx, q, provider)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx = make(map[associationKey]uuid.UUID)
	}
	c.byProvider[provider] = idx
	return idx, nil
}

// Lookup returns the association id for key under provider. When the
// provider has none, the other providers are searched in name order and
// the first match is returned together with its owner. A miss everywhere
// yields refdata.ErrNotAssociated. Missing indexes are rebuilt through q.
func (c *AssociationCache) Lookup(ctx context.Context, q querier, provider string, others []string, key associationKey) (uuid.UUID, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.index(ctx, q, provider)
	if err != nil {
		return uuid.Nil, "", err
	}
	if id, ok := idx[key]; ok {
		return id, provider, nil
	}
	others = slices.Clone(others)
	slices.Sort(others)
	for _, other := range others {
		if other == provider {
			continue
		}
		idx, err := c.index(ctx, q, other)
		if err != nil {
			return uuid.Nil, "", err
		}
		if id, ok := idx[key]; ok {
			return id, other, nil
		}
	}
	return uuid.Nil, "", refdata.ErrNotAssociated
}

// Invalidate drops the index of one provider, or of all providers when
// provider is empty.
func (c *AssociationCache) Invalidate(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if provider == "" {
		clear(c.byProvider)
		return
	}
	delete(c.byProvider, provider)
}

// Len reports how many provider indexes are currently built.
func (c *AssociationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byProvider)
}
