// Package memstore is an in-memory implementation of interfaces.Store
// used by tests. It mirrors the persistence rules of the Postgres bridge:
// provider-scoped associations with cross-provider reuse, unique
// (ticker, date time) price rows and copy-on-read entities.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/domain/interfaces"

	"github.com/google/uuid"
)

var _ interfaces.Store = (*Store)(nil)

type assocKey struct {
	fundamentalID uuid.UUID
	entity        string
}

type association struct {
	id     uuid.UUID
	values refdata.FundamentalSeries
}

type priceKey struct {
	provider   string
	resolution marketdata.Resolution
	ticker     string
}

type Store struct {
	mu sync.Mutex

	countries    map[uuid.UUID]*refdata.Country
	exchanges    map[uuid.UUID]*refdata.Exchange
	holidays     map[uuid.UUID]*refdata.Holiday
	sessions     map[uuid.UUID]*refdata.Session
	groups       map[uuid.UUID]*refdata.InstrumentGroup
	memberships  map[refdata.GroupMembership]struct{}
	instruments  map[string]*refdata.Instrument
	fundamentals map[uuid.UUID]*refdata.Fundamental
	translations map[string]refdata.Translation

	providers       map[string]struct{}
	countryAssoc    map[string]map[assocKey]*association
	instrumentAssoc map[string]map[assocKey]*association
	bars            map[priceKey]map[int64]marketdata.Bar
	ticks           map[priceKey]map[int64]marketdata.Level1Tick

	failures      map[string]error
	calls         map[string]int
	schemaCreated bool
}

func New() *Store {
	return &Store{
		countries:       make(map[uuid.UUID]*refdata.Country),
		exchanges:       make(map[uuid.UUID]*refdata.Exchange),
		holidays:        make(map[uuid.UUID]*refdata.Holiday),
		sessions:        make(map[uuid.UUID]*refdata.Session),
		groups:          make(map[uuid.UUID]*refdata.InstrumentGroup),
		memberships:     make(map[refdata.GroupMembership]struct{}),
		instruments:     make(map[string]*refdata.Instrument),
		fundamentals:    make(map[uuid.UUID]*refdata.Fundamental),
		translations:    make(map[string]refdata.Translation),
		providers:       make(map[string]struct{}),
		countryAssoc:    make(map[string]map[assocKey]*association),
		instrumentAssoc: make(map[string]map[assocKey]*association),
		bars:            make(map[priceKey]map[int64]marketdata.Bar),
		ticks:           make(map[priceKey]map[int64]marketdata.Level1Tick),
		failures:        make(map[string]error),
		calls:           make(map[string]int),
	}
}

// FailNext makes the next call of the named method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Calls returns how many times the named method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// enter records the call and returns an injected failure. Callers hold mu.
func (s *Store) enter(method string) error {
	s.calls[method]++
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Store) Close() {}

func (s *Store) CreateSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateSchema"); err != nil {
		return err
	}
	s.schemaCreated = true
	return nil
}

func (s *Store) RegisterProvider(ctx context.Context, name string) error {
	if err := refdata.ValidateProviderName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RegisterProvider"); err != nil {
		return err
	}
	s.providers[name] = struct{}{}
	return nil
}

func (s *Store) Providers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerNamesLocked(), nil
}

func (s *Store) providerNamesLocked() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) requireProviderLocked(name string) error {
	if _, ok := s.providers[name]; !ok {
		return fmt.Errorf("%w: %q is not registered", refdata.ErrInvalidProvider, name)
	}
	return nil
}

// Countries

func (s *Store) LoadCountries(ctx context.Context) ([]*refdata.Country, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadCountries"); err != nil {
		return nil, err
	}
	return cloneAll(s.countries, (*refdata.Country).Clone), nil
}

func (s *Store) CreateCountry(ctx context.Context, c *refdata.Country) error {
	return s.put("CreateCountry", func() error {
		if _, ok := s.countries[c.ID]; ok {
			return fmt.Errorf("country %s already exists", c.ID)
		}
		s.countries[c.ID] = c.Clone()
		return nil
	})
}

func (s *Store) UpdateCountry(ctx context.Context, c *refdata.Country) error {
	return s.put("UpdateCountry", func() error {
		if _, ok := s.countries[c.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.countries[c.ID] = c.Clone()
		return nil
	})
}

func (s *Store) DeleteCountry(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteCountry", func() error {
		if _, ok := s.countries[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.countries, id)
		s.dropAssociationsLocked(s.countryAssoc, func(k assocKey) bool { return k.entity == id.String() })
		s.dropTranslationsLocked(id.String())
		return nil
	})
}

// Exchanges

func (s *Store) LoadExchanges(ctx context.Context) ([]*refdata.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadExchanges"); err != nil {
		return nil, err
	}
	return cloneAll(s.exchanges, (*refdata.Exchange).Clone), nil
}

func (s *Store) CreateExchange(ctx context.Context, e *refdata.Exchange) error {
	return s.put("CreateExchange", func() error {
		s.exchanges[e.ID] = e.Clone()
		return nil
	})
}

func (s *Store) UpdateExchange(ctx context.Context, e *refdata.Exchange) error {
	return s.put("UpdateExchange", func() error {
		if _, ok := s.exchanges[e.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.exchanges[e.ID] = e.Clone()
		return nil
	})
}

func (s *Store) DeleteExchange(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteExchange", func() error {
		if _, ok := s.exchanges[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.exchanges, id)
		for _, inst := range s.instruments {
			inst.RemoveSecondaryExchange(id)
		}
		s.dropTranslationsLocked(id.String())
		return nil
	})
}

// Holidays

func (s *Store) LoadHolidays(ctx context.Context) ([]*refdata.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadHolidays"); err != nil {
		return nil, err
	}
	return cloneAll(s.holidays, (*refdata.Holiday).Clone), nil
}

func (s *Store) CreateHoliday(ctx context.Context, h *refdata.Holiday) error {
	return s.put("CreateHoliday", func() error {
		s.holidays[h.ID] = h.Clone()
		return nil
	})
}

func (s *Store) UpdateHoliday(ctx context.Context, h *refdata.Holiday) error {
	return s.put("UpdateHoliday", func() error {
		if _, ok := s.holidays[h.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.holidays[h.ID] = h.Clone()
		return nil
	})
}

func (s *Store) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteHoliday", func() error {
		if _, ok := s.holidays[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.holidays, id)
		return nil
	})
}

// Sessions

func (s *Store) LoadSessions(ctx context.Context) ([]*refdata.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadSessions"); err != nil {
		return nil, err
	}
	return cloneAll(s.sessions, (*refdata.Session).Clone), nil
}

func (s *Store) CreateSession(ctx context.Context, session *refdata.Session) error {
	return s.put("CreateSession", func() error {
		s.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (s *Store) UpdateSession(ctx context.Context, session *refdata.Session) error {
	return s.put("UpdateSession", func() error {
		if _, ok := s.sessions[session.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteSession", func() error {
		if _, ok := s.sessions[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.sessions, id)
		return nil
	})
}

// Instrument groups

func (s *Store) LoadInstrumentGroups(ctx context.Context) ([]*refdata.InstrumentGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadInstrumentGroups"); err != nil {
		return nil, err
	}
	return cloneAll(s.groups, (*refdata.InstrumentGroup).Clone), nil
}

func (s *Store) CreateInstrumentGroup(ctx context.Context, g *refdata.InstrumentGroup) error {
	return s.put("CreateInstrumentGroup", func() error {
		s.groups[g.ID] = g.Clone()
		return nil
	})
}

func (s *Store) UpdateInstrumentGroup(ctx context.Context, g *refdata.InstrumentGroup) error {
	return s.put("UpdateInstrumentGroup", func() error {
		if _, ok := s.groups[g.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.groups[g.ID] = g.Clone()
		return nil
	})
}

func (s *Store) DeleteInstrumentGroup(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteInstrumentGroup", func() error {
		if _, ok := s.groups[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.groups, id)
		for m := range s.memberships {
			if m.GroupID == id {
				delete(s.memberships, m)
			}
		}
		s.dropTranslationsLocked(id.String())
		return nil
	})
}

func (s *Store) LoadGroupMemberships(ctx context.Context) ([]refdata.GroupMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadGroupMemberships"); err != nil {
		return nil, err
	}
	out := make([]refdata.GroupMembership, 0, len(s.memberships))
	for m := range s.memberships {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID.String() < out[j].GroupID.String()
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

func (s *Store) AddGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error {
	return s.put("AddGroupInstrument", func() error {
		s.memberships[refdata.GroupMembership{GroupID: groupID, Ticker: ticker}] = struct{}{}
		return nil
	})
}

func (s *Store) RemoveGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error {
	return s.put("RemoveGroupInstrument", func() error {
		delete(s.memberships, refdata.GroupMembership{GroupID: groupID, Ticker: ticker})
		return nil
	})
}

// Instruments

func (s *Store) LoadInstruments(ctx context.Context) ([]*refdata.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadInstruments"); err != nil {
		return nil, err
	}
	out := make([]*refdata.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *Store) CreateInstrument(ctx context.Context, inst *refdata.Instrument) error {
	return s.put("CreateInstrument", func() error {
		if _, ok := s.instruments[inst.Ticker]; ok {
			return refdata.ErrDuplicateTicker
		}
		stored := inst.Clone()
		stored.GroupIDs = nil
		s.instruments[inst.Ticker] = stored
		return nil
	})
}

func (s *Store) UpdateInstrument(ctx context.Context, inst *refdata.Instrument) error {
	return s.put("UpdateInstrument", func() error {
		if _, ok := s.instruments[inst.Ticker]; !ok {
			return refdata.ErrNotFound
		}
		stored := inst.Clone()
		stored.GroupIDs = nil
		s.instruments[inst.Ticker] = stored
		return nil
	})
}

func (s *Store) DeleteInstrument(ctx context.Context, ticker string) error {
	return s.put("DeleteInstrument", func() error {
		if _, ok := s.instruments[ticker]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.instruments, ticker)
		for m := range s.memberships {
			if m.Ticker == ticker {
				delete(s.memberships, m)
			}
		}
		s.dropAssociationsLocked(s.instrumentAssoc, func(k assocKey) bool { return k.entity == ticker })
		s.dropTranslationsLocked(ticker)
		return nil
	})
}

// Fundamentals

func (s *Store) LoadFundamentals(ctx context.Context) ([]*refdata.Fundamental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadFundamentals"); err != nil {
		return nil, err
	}
	return cloneAll(s.fundamentals, (*refdata.Fundamental).Clone), nil
}

func (s *Store) CreateFundamental(ctx context.Context, f *refdata.Fundamental) error {
	return s.put("CreateFundamental", func() error {
		s.fundamentals[f.ID] = f.Clone()
		return nil
	})
}

func (s *Store) UpdateFundamental(ctx context.Context, f *refdata.Fundamental) error {
	return s.put("UpdateFundamental", func() error {
		if _, ok := s.fundamentals[f.ID]; !ok {
			return refdata.ErrNotFound
		}
		s.fundamentals[f.ID] = f.Clone()
		return nil
	})
}

func (s *Store) DeleteFundamental(ctx context.Context, id uuid.UUID) error {
	return s.put("DeleteFundamental", func() error {
		if _, ok := s.fundamentals[id]; !ok {
			return refdata.ErrNotFound
		}
		delete(s.fundamentals, id)
		match := func(k assocKey) bool { return k.fundamentalID == id }
		s.dropAssociationsLocked(s.countryAssoc, match)
		s.dropAssociationsLocked(s.instrumentAssoc, match)
		s.dropTranslationsLocked(id.String())
		return nil
	})
}

// Associations

func (s *Store) LoadCountryFundamentals(ctx context.Context, provider string) ([]*refdata.CountryFundamental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadCountryFundamentals"); err != nil {
		return nil, err
	}
	var out []*refdata.CountryFundamental
	for key, a := range s.countryAssoc[provider] {
		countryID, err := uuid.Parse(key.entity)
		if err != nil {
			return nil, err
		}
		out = append(out, &refdata.CountryFundamental{
			AssociationID: a.id,
			Provider:      provider,
			FundamentalID: key.fundamentalID,
			CountryID:     countryID,
			Values:        slices.Clone(a.values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssociationID.String() < out[j].AssociationID.String() })
	return out, nil
}

func (s *Store) CreateCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.put("CreateCountryFundamental", func() error {
		var err error
		id, err = s.createAssociationLocked(s.countryAssoc, provider, assocKey{fundamentalID, countryID.String()})
		return err
	})
	return id, err
}

func (s *Store) DeleteCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) error {
	return s.put("DeleteCountryFundamental", func() error {
		return s.deleteAssociationLocked(s.countryAssoc, provider, assocKey{fundamentalID, countryID.String()})
	})
}

func (s *Store) UpsertCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, value refdata.FundamentalValue) error {
	return s.put("UpsertCountryFundamentalValue", func() error {
		a, err := s.resolveAssociationLocked(s.countryAssoc, provider, assocKey{fundamentalID, countryID.String()})
		if err != nil {
			return err
		}
		a.values = a.values.Upsert(value.DateTime, value.Value)
		return nil
	})
}

func (s *Store) DeleteCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, at time.Time) error {
	return s.put("DeleteCountryFundamentalValue", func() error {
		a, err := s.resolveAssociationLocked(s.countryAssoc, provider, assocKey{fundamentalID, countryID.String()})
		if err != nil {
			return err
		}
		a.values, _ = a.values.Delete(at)
		return nil
	})
}

func (s *Store) LoadInstrumentFundamentals(ctx context.Context, provider string) ([]*refdata.InstrumentFundamental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadInstrumentFundamentals"); err != nil {
		return nil, err
	}
	var out []*refdata.InstrumentFundamental
	for key, a := range s.instrumentAssoc[provider] {
		out = append(out, &refdata.InstrumentFundamental{
			AssociationID: a.id,
			Provider:      provider,
			FundamentalID: key.fundamentalID,
			Ticker:        key.entity,
			Values:        slices.Clone(a.values),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssociationID.String() < out[j].AssociationID.String() })
	return out, nil
}

func (s *Store) CreateInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.put("CreateInstrumentFundamental", func() error {
		var err error
		id, err = s.createAssociationLocked(s.instrumentAssoc, provider, assocKey{fundamentalID, ticker})
		return err
	})
	return id, err
}

func (s *Store) DeleteInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) error {
	return s.put("DeleteInstrumentFundamental", func() error {
		return s.deleteAssociationLocked(s.instrumentAssoc, provider, assocKey{fundamentalID, ticker})
	})
}

func (s *Store) UpsertInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, value refdata.FundamentalValue) error {
	return s.put("UpsertInstrumentFundamentalValue", func() error {
		a, err := s.resolveAssociationLocked(s.instrumentAssoc, provider, assocKey{fundamentalID, ticker})
		if err != nil {
			return err
		}
		a.values = a.values.Upsert(value.DateTime, value.Value)
		return nil
	})
}

func (s *Store) DeleteInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, at time.Time) error {
	return s.put("DeleteInstrumentFundamentalValue", func() error {
		a, err := s.resolveAssociationLocked(s.instrumentAssoc, provider, assocKey{fundamentalID, ticker})
		if err != nil {
			return err
		}
		a.values, _ = a.values.Delete(at)
		return nil
	})
}

func (s *Store) createAssociationLocked(table map[string]map[assocKey]*association, provider string, key assocKey) (uuid.UUID, error) {
	if err := s.requireProviderLocked(provider); err != nil {
		return uuid.Nil, err
	}
	if _, ok := s.fundamentals[key.fundamentalID]; !ok {
		return uuid.Nil, refdata.ErrNotFound
	}
	if existing, ok := table[provider][key]; ok {
		return existing.id, nil
	}
	id := uuid.New()
	for _, other := range s.providerNamesLocked() {
		if a, ok := table[other][key]; ok {
			id = a.id
			break
		}
	}
	if table[provider] == nil {
		table[provider] = make(map[assocKey]*association)
	}
	table[provider][key] = &association{id: id}
	return id, nil
}

func (s *Store) deleteAssociationLocked(table map[string]map[assocKey]*association, provider string, key assocKey) error {
	if _, ok := table[provider][key]; !ok {
		return refdata.ErrNotAssociated
	}
	delete(table[provider], key)
	return nil
}

// resolveAssociationLocked finds the association for the provider,
// reusing the id of another provider's association when needed.
func (s *Store) resolveAssociationLocked(table map[string]map[assocKey]*association, provider string, key assocKey) (*association, error) {
	if err := s.requireProviderLocked(provider); err != nil {
		return nil, err
	}
	if a, ok := table[provider][key]; ok {
		return a, nil
	}
	for _, other := range s.providerNamesLocked() {
		if a, ok := table[other][key]; ok {
			if table[provider] == nil {
				table[provider] = make(map[assocKey]*association)
			}
			reused := &association{id: a.id}
			table[provider][key] = reused
			return reused, nil
		}
	}
	return nil, refdata.ErrNotAssociated
}

func (s *Store) dropAssociationsLocked(table map[string]map[assocKey]*association, match func(assocKey) bool) {
	for _, byKey := range table {
		for key := range byKey {
			if match(key) {
				delete(byKey, key)
			}
		}
	}
}

// Translations

func translationKey(t refdata.Translation) string {
	return t.EntityKey + "|" + string(t.Field) + "|" + t.Locale
}

func (s *Store) PutTranslation(ctx context.Context, t refdata.Translation) error {
	return s.put("PutTranslation", func() error {
		s.translations[translationKey(t)] = t
		return nil
	})
}

func (s *Store) LoadTranslations(ctx context.Context, locale string) ([]refdata.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LoadTranslations"); err != nil {
		return nil, err
	}
	var out []refdata.Translation
	for _, t := range s.translations {
		if t.Locale == locale {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return translationKey(out[i]) < translationKey(out[j]) })
	return out, nil
}

func (s *Store) dropTranslationsLocked(entityKey string) {
	for key, t := range s.translations {
		if t.EntityKey == entityKey {
			delete(s.translations, key)
		}
	}
}

// Price data

func (s *Store) UpsertBars(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error {
	if !resolution.IsBar() {
		return fmt.Errorf("%w: %s", marketdata.ErrNotImplemented, resolution)
	}
	return s.put("UpsertBars", func() error {
		if err := s.requireProviderLocked(provider); err != nil {
			return err
		}
		key := priceKey{provider, resolution, ticker}
		if s.bars[key] == nil {
			s.bars[key] = make(map[int64]marketdata.Bar)
		}
		for _, b := range bars {
			s.bars[key][b.DateTime.UnixNano()] = b
		}
		return nil
	})
}

func (s *Store) UpsertTicks(ctx context.Context, provider, ticker string, ticks []marketdata.Level1Tick) error {
	return s.put("UpsertTicks", func() error {
		if err := s.requireProviderLocked(provider); err != nil {
			return err
		}
		key := priceKey{provider, marketdata.ResolutionLevel1, ticker}
		if s.ticks[key] == nil {
			s.ticks[key] = make(map[int64]marketdata.Level1Tick)
		}
		for _, t := range ticks {
			s.ticks[key][t.DateTime.UnixNano()] = t
		}
		return nil
	})
}

func (s *Store) DeletePriceData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time) (int64, error) {
	if _, err := resolution.TableSuffix(); err != nil {
		return 0, err
	}
	var removed int64
	err := s.put("DeletePriceData", func() error {
		key := priceKey{provider, resolution, ticker}
		lo, hi := from.UnixNano(), to.UnixNano()
		if resolution == marketdata.ResolutionLevel1 {
			for at := range s.ticks[key] {
				if at >= lo && at <= hi {
					delete(s.ticks[key], at)
					removed++
				}
			}
			return nil
		}
		for at := range s.bars[key] {
			if at >= lo && at <= hi {
				delete(s.bars[key], at)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (s *Store) GetDataCache(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time, dataType marketdata.PriceDataType) (*marketdata.DataCache, error) {
	if _, err := resolution.TableSuffix(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetDataCache"); err != nil {
		return nil, err
	}
	key := priceKey{provider, resolution, ticker}
	lo, hi := from.UnixNano(), to.UnixNano()
	cache := marketdata.NewDataCache(ticker, resolution, from, to)
	if resolution == marketdata.ResolutionLevel1 {
		rows := s.ticks[key]
		for _, at := range sortedKeys(rows) {
			t := rows[at]
			if at >= lo && at <= hi && dataType.Includes(t.Synthetic) {
				cache.AppendTick(t)
			}
		}
		return cache, nil
	}
	rows := s.bars[key]
	for _, at := range sortedKeys(rows) {
		b := rows[at]
		if at >= lo && at <= hi && dataType.Includes(b.Synthetic) {
			cache.AppendBar(b)
		}
	}
	return cache, nil
}

func (s *Store) put(method string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(method); err != nil {
		return err
	}
	return fn()
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func cloneAll[T any](m map[uuid.UUID]T, clone func(T) T) []T {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(m[id]))
	}
	return out
}
