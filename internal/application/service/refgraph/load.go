package refgraph

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// load rebuilds the graph from the store in dependency order. Entities
// whose parent is missing are logged and left out.
func (m *Manager) load(ctx context.Context) (*graph, error) {
	g := newGraph()

	if err := m.loadCountries(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadExchanges(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadHolidays(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadSessions(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadGroups(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadFundamentals(ctx, g); err != nil {
		return nil, err
	}
	if err := m.loadInstruments(ctx, g); err != nil {
		return nil, err
	}
	if err := m.linkMemberships(ctx, g); err != nil {
		return nil, err
	}
	if m.provider != "" {
		if err := m.loadAssociations(ctx, g, m.provider); err != nil {
			return nil, err
		}
	}
	if err := m.loadTranslations(ctx, g); err != nil {
		return nil, err
	}
	for _, c := range g.countries {
		c.Localize(m.locale)
		c.DisplayName = g.text(c.ID.String(), refdata.FieldName, c.DisplayName)
	}

	m.logger.WithFields(logrus.Fields{
		"countries":    len(g.countries),
		"exchanges":    len(g.exchanges),
		"holidays":     len(g.holidays),
		"sessions":     len(g.sessions),
		"groups":       len(g.groups),
		"fundamentals": len(g.fundamentals),
		"instruments":  len(g.instruments),
		"provider":     m.provider,
	}).Info("reference data loaded")
	return g, nil
}

func (m *Manager) dangling(entity string, id any, parent any) {
	m.logger.WithFields(logrus.Fields{
		"entity": entity,
		"id":     fmt.Sprint(id),
		"parent": fmt.Sprint(parent),
	}).Warn("parent not found, relationship skipped")
}

func (m *Manager) loadCountries(ctx context.Context, g *graph) error {
	countries, err := m.store.LoadCountries(ctx)
	if err != nil {
		return fmt.Errorf("load countries: %w", err)
	}
	for _, c := range countries {
		c.ResetLinks()
		g.countries[c.ID] = c
	}
	if _, ok := g.countries[refdata.InternationalCountryID]; !ok {
		intl := refdata.NewInternationalCountry()
		if err := m.store.CreateCountry(ctx, intl); err != nil {
			return fmt.Errorf("create international country: %w", err)
		}
		g.countries[intl.ID] = intl
	}
	return nil
}

func (m *Manager) loadExchanges(ctx context.Context, g *graph) error {
	exchanges, err := m.store.LoadExchanges(ctx)
	if err != nil {
		return fmt.Errorf("load exchanges: %w", err)
	}
	for _, e := range exchanges {
		e.ResetLinks()
		country, ok := g.countries[e.CountryID]
		if !ok {
			m.dangling("exchange", e.ID, e.CountryID)
			continue
		}
		g.exchanges[e.ID] = e
		country.AddExchange(e.ID)
	}
	return nil
}

func (m *Manager) loadHolidays(ctx context.Context, g *graph) error {
	holidays, err := m.store.LoadHolidays(ctx)
	if err != nil {
		return fmt.Errorf("load holidays: %w", err)
	}
	for _, h := range holidays {
		switch h.Scope {
		case refdata.ScopeCountry:
			country, ok := g.countries[h.ParentID]
			if !ok {
				m.dangling("country_holiday", h.ID, h.ParentID)
				continue
			}
			country.AddHoliday(h.ID)
		case refdata.ScopeExchange:
			exchange, ok := g.exchanges[h.ParentID]
			if !ok {
				m.dangling("exchange_holiday", h.ID, h.ParentID)
				continue
			}
			exchange.AddHoliday(h.ID)
		default:
			m.dangling("holiday", h.ID, h.Scope)
			continue
		}
		g.holidays[h.ID] = h
	}
	return nil
}

func (m *Manager) loadSessions(ctx context.Context, g *graph) error {
	sessions, err := m.store.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, s := range sessions {
		exchange, ok := g.exchanges[s.ExchangeID]
		if !ok {
			m.dangling("session", s.ID, s.ExchangeID)
			continue
		}
		g.sessions[s.ID] = s
		exchange.AddSession(s.ID)
	}
	return nil
}

func (m *Manager) loadGroups(ctx context.Context, g *graph) error {
	groups, err := m.store.LoadInstrumentGroups(ctx)
	if err != nil {
		return fmt.Errorf("load instrument groups: %w", err)
	}
	candidates := make(map[uuid.UUID]*refdata.InstrumentGroup, len(groups))
	for _, group := range groups {
		group.ResetLinks()
		candidates[group.ID] = group
	}
	if _, ok := candidates[refdata.RootGroupID]; !ok {
		root := refdata.NewRootGroup()
		if err := m.store.CreateInstrumentGroup(ctx, root); err != nil {
			return fmt.Errorf("create root group: %w", err)
		}
		candidates[root.ID] = root
	}
	root := candidates[refdata.RootGroupID]
	root.ParentID = uuid.Nil
	g.groups[root.ID] = root

	// A group is linked once its whole ancestry reaches the root.
	state := make(map[uuid.UUID]int) // 1 visiting, 2 linked, 3 rejected
	state[root.ID] = 2
	var link func(id uuid.UUID) bool
	link = func(id uuid.UUID) bool {
		switch state[id] {
		case 1:
			return false
		case 2:
			return true
		case 3:
			return false
		}
		group := candidates[id]
		state[id] = 1
		if _, ok := candidates[group.ParentID]; !ok || !link(group.ParentID) {
			state[id] = 3
			m.dangling("instrument_group", group.ID, group.ParentID)
			return false
		}
		state[id] = 2
		g.groups[id] = group
		g.groups[group.ParentID].AddChild(id)
		return true
	}
	for _, group := range groups {
		link(group.ID)
	}
	return nil
}

func (m *Manager) loadFundamentals(ctx context.Context, g *graph) error {
	fundamentals, err := m.store.LoadFundamentals(ctx)
	if err != nil {
		return fmt.Errorf("load fundamentals: %w", err)
	}
	for _, f := range fundamentals {
		g.fundamentals[f.ID] = f
	}
	return nil
}

func (m *Manager) loadInstruments(ctx context.Context, g *graph) error {
	instruments, err := m.store.LoadInstruments(ctx)
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	for _, inst := range instruments {
		inst.GroupIDs = nil
		primary, ok := g.exchanges[inst.PrimaryExchangeID]
		if !ok {
			m.dangling("instrument", inst.Ticker, inst.PrimaryExchangeID)
			continue
		}
		if owner, taken := g.tickerOwner(inst.Tickers(), inst.Ticker); taken {
			m.logger.WithFields(logrus.Fields{
				"entity": "instrument",
				"id":     inst.Ticker,
				"owner":  owner,
			}).Warn("ticker already used, instrument skipped")
			continue
		}
		secondary := inst.SecondaryExchangeIDs[:0]
		for _, id := range inst.SecondaryExchangeIDs {
			exchange, ok := g.exchanges[id]
			if !ok {
				m.dangling("instrument_secondary_exchange", inst.Ticker, id)
				continue
			}
			exchange.AddSecondaryListing(inst.Ticker)
			secondary = append(secondary, id)
		}
		inst.SecondaryExchangeIDs = secondary
		primary.AddInstrument(inst.Ticker)
		g.instruments[inst.Ticker] = inst
		g.indexTickers(inst)
	}
	return nil
}

func (m *Manager) linkMemberships(ctx context.Context, g *graph) error {
	memberships, err := m.store.LoadGroupMemberships(ctx)
	if err != nil {
		return fmt.Errorf("load group memberships: %w", err)
	}
	for _, ms := range memberships {
		group, ok := g.groups[ms.GroupID]
		if !ok {
			m.dangling("group_membership", ms.Ticker, ms.GroupID)
			continue
		}
		inst, ok := g.instrument(ms.Ticker)
		if !ok {
			m.dangling("group_membership", ms.GroupID, ms.Ticker)
			continue
		}
		group.AddInstrument(inst.Ticker)
		inst.AddGroup(group.ID)
	}
	return nil
}

func (m *Manager) loadAssociations(ctx context.Context, g *graph, provider string) error {
	countryFundamentals, err := m.store.LoadCountryFundamentals(ctx, provider)
	if err != nil {
		return fmt.Errorf("load country fundamentals: %w", err)
	}
	for _, cf := range countryFundamentals {
		if _, ok := g.fundamentals[cf.FundamentalID]; !ok {
			m.dangling("country_fundamental", cf.AssociationID, cf.FundamentalID)
			continue
		}
		if _, ok := g.countries[cf.CountryID]; !ok {
			m.dangling("country_fundamental", cf.AssociationID, cf.CountryID)
			continue
		}
		g.countryFundamentals[fundamentalKey{cf.FundamentalID, cf.CountryID.String()}] = cf
	}

	instrumentFundamentals, err := m.store.LoadInstrumentFundamentals(ctx, provider)
	if err != nil {
		return fmt.Errorf("load instrument fundamentals: %w", err)
	}
	for _, inf := range instrumentFundamentals {
		if _, ok := g.fundamentals[inf.FundamentalID]; !ok {
			m.dangling("instrument_fundamental", inf.AssociationID, inf.FundamentalID)
			continue
		}
		inst, ok := g.instrument(inf.Ticker)
		if !ok {
			m.dangling("instrument_fundamental", inf.AssociationID, inf.Ticker)
			continue
		}
		inf.Ticker = inst.Ticker
		g.instrumentFundamentals[fundamentalKey{inf.FundamentalID, inst.Ticker}] = inf
	}
	return nil
}

func (m *Manager) loadTranslations(ctx context.Context, g *graph) error {
	translations, err := m.store.LoadTranslations(ctx, m.locale.String())
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	for _, t := range translations {
		g.translations[translationKey{t.EntityKey, t.Field}] = t.Value
	}
	return nil
}
