package refgraph

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/application/service/feed"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/testutil/memstore"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var errBoom = errors.New("boom")

type fixture struct {
	ctx   context.Context
	m     *Manager
	store *memstore.Store
	hook  *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := memstore.New()
	m := NewManager(store, nil, logger, WithProvider("Test"))
	ctx := context.Background()
	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Refresh(ctx))
	return &fixture{ctx: ctx, m: m, store: store, hook: hook}
}

func (f *fixture) country(t *testing.T, iso string) *refdata.Country {
	t.Helper()
	c, err := f.m.CreateCountry(f.ctx, iso)
	require.NoError(t, err)
	return c
}

func (f *fixture) exchange(t *testing.T, countryID uuid.UUID, name string) *refdata.Exchange {
	t.Helper()
	e, err := f.m.CreateExchange(f.ctx, &refdata.Exchange{CountryID: countryID, Name: name, TimeZone: "Europe/Berlin", DefaultPriceDecimals: 2})
	require.NoError(t, err)
	return e
}

func (f *fixture) instrument(t *testing.T, exchangeID uuid.UUID, ticker string, alternates ...string) *refdata.Instrument {
	t.Helper()
	inst, err := f.m.CreateInstrument(f.ctx, &refdata.Instrument{
		Ticker:            ticker,
		AlternateTickers:  alternates,
		Type:              refdata.InstrumentStock,
		Name:              ticker + " Inc",
		PrimaryExchangeID: exchangeID,
		PriceDecimals:     2,
		MinMovement:       1,
		BigPointValue:     1,
	})
	require.NoError(t, err)
	return inst
}

type modelRecorder struct {
	mu      sync.Mutex
	batches [][]notify.ModelChange
}

func (r *modelRecorder) OnChanges(changes []notify.ModelChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]notify.ModelChange(nil), changes...))
}

func (r *modelRecorder) events() []notify.ModelChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.ModelChange
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func TestLoadCreatesSentinels(t *testing.T) {
	f := newFixture(t)

	intl, err := f.m.Country(f.ctx, refdata.InternationalCountryID)
	require.NoError(t, err)
	assert.Equal(t, refdata.InternationalIsoCode, intl.IsoCode)

	root, err := f.m.InstrumentGroup(f.ctx, refdata.RootGroupID)
	require.NoError(t, err)
	assert.Equal(t, refdata.RootGroupName, root.Name)

	require.NoError(t, f.m.Refresh(f.ctx))
	assert.Equal(t, 1, f.store.Calls("CreateCountry"))
	assert.Equal(t, 1, f.store.Calls("CreateInstrumentGroup"))

	assert.ErrorIs(t, f.m.DeleteCountry(f.ctx, refdata.InternationalCountryID), refdata.ErrProtectedEntity)
	assert.ErrorIs(t, f.m.DeleteInstrumentGroup(f.ctx, refdata.RootGroupID), refdata.ErrProtectedEntity)
	root.Name = "Renamed"
	assert.ErrorIs(t, f.m.UpdateInstrumentGroup(f.ctx, root), refdata.ErrProtectedEntity)
}

func TestEntitiesSurviveReload(t *testing.T) {
	f := newFixture(t)
	de := f.country(t, "de")
	xetra := f.exchange(t, de.ID, "Xetra")
	xetra.AlternateNames = []string{"XETR"}
	xetra.URL = "https://xetra.com"
	require.NoError(t, f.m.UpdateExchange(f.ctx, xetra))

	holiday, err := f.m.CreateHoliday(f.ctx, &refdata.Holiday{
		Scope: refdata.ScopeCountry, ParentID: de.ID, Name: "Christmas",
		Type: refdata.HolidayDayOfMonth, Month: time.December, DayOfMonth: 25,
		MoveWeekend: refdata.MoveNextBusinessDay,
	})
	require.NoError(t, err)
	session, err := f.m.CreateSession(f.ctx, &refdata.Session{
		ExchangeID: xetra.ID, Name: "Regular", DayOfWeek: time.Monday,
		Start: 9 * time.Hour, End: 17*time.Hour + 30*time.Minute,
	})
	require.NoError(t, err)
	group, err := f.m.CreateInstrumentGroup(f.ctx, &refdata.InstrumentGroup{Name: "DAX", Description: "Blue chips"})
	require.NoError(t, err)
	inst := f.instrument(t, xetra.ID, "sap", "SAP.DE")
	require.NoError(t, f.m.AddInstrumentToGroup(f.ctx, group.ID, "SAP.DE"))
	fundamental, err := f.m.CreateFundamental(f.ctx, &refdata.Fundamental{Name: "GDP", Category: refdata.CategoryCountry, ReleaseInterval: refdata.ReleaseQuarterly})
	require.NoError(t, err)

	f.m.Invalidate()

	gotCountry, err := f.m.CountryByIsoCode(f.ctx, "DE")
	require.NoError(t, err)
	assert.Equal(t, de.ID, gotCountry.ID)
	assert.Equal(t, "Germany", gotCountry.DisplayName)
	assert.Equal(t, "EUR", gotCountry.Currency)
	assert.Equal(t, []uuid.UUID{xetra.ID}, gotCountry.ExchangeIDs)
	assert.Equal(t, []uuid.UUID{holiday.ID}, gotCountry.HolidayIDs)

	gotExchange, err := f.m.FindExchange(f.ctx, de.ID, "xetr")
	require.NoError(t, err)
	assert.Equal(t, xetra.ID, gotExchange.ID)
	assert.Equal(t, "https://xetra.com", gotExchange.URL)
	assert.Equal(t, []uuid.UUID{session.ID}, gotExchange.SessionIDs)
	assert.Equal(t, []string{"SAP"}, gotExchange.InstrumentTickers)

	gotHoliday, err := f.m.Holiday(f.ctx, holiday.ID)
	require.NoError(t, err)
	assert.Equal(t, refdata.MoveNextBusinessDay, gotHoliday.MoveWeekend)
	assert.Equal(t, 25, gotHoliday.DayOfMonth)

	gotSession, err := f.m.Session(f.ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 17*time.Hour+30*time.Minute, gotSession.End)

	gotInst, err := f.m.FindInstrument(f.ctx, "sap.de")
	require.NoError(t, err)
	assert.Equal(t, inst.Ticker, gotInst.Ticker)
	assert.Equal(t, []string{"SAP.DE"}, gotInst.AlternateTickers)
	assert.Equal(t, []uuid.UUID{group.ID}, gotInst.GroupIDs)

	members, err := f.m.InstrumentsByGroup(f.ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "SAP", members[0].Ticker)

	gotFundamental, err := f.m.Fundamental(f.ctx, fundamental.ID)
	require.NoError(t, err)
	assert.Equal(t, refdata.ReleaseQuarterly, gotFundamental.ReleaseInterval)
}

func TestRefreshIsIdempotent(t *testing.T) {
	f := newFixture(t)
	de := f.country(t, "DE")
	xetra := f.exchange(t, de.ID, "Xetra")
	f.instrument(t, xetra.ID, "SAP")
	_, err := f.m.CreateInstrumentGroup(f.ctx, &refdata.InstrumentGroup{Name: "Tech"})
	require.NoError(t, err)

	snapshot := func() ([]*refdata.Country, []*refdata.Exchange, []*refdata.Instrument, []*refdata.InstrumentGroup) {
		require.NoError(t, f.m.Refresh(f.ctx))
		countries, err := f.m.Countries(f.ctx)
		require.NoError(t, err)
		exchanges, err := f.m.Exchanges(f.ctx)
		require.NoError(t, err)
		instruments, err := f.m.Instruments(f.ctx)
		require.NoError(t, err)
		groups, err := f.m.InstrumentGroups(f.ctx)
		require.NoError(t, err)
		return countries, exchanges, instruments, groups
	}
	c1, e1, i1, g1 := snapshot()
	c2, e2, i2, g2 := snapshot()
	assert.Equal(t, c1, c2)
	assert.Equal(t, e1, e2)
	assert.Equal(t, i1, i2)
	assert.Equal(t, g1, g2)
}

func TestDanglingRelationshipIsSkipped(t *testing.T) {
	f := newFixture(t)
	ghost := &refdata.Exchange{ID: uuid.New(), Attributes: refdata.AttrDefault, CountryID: uuid.New(), Name: "Ghost", TimeZone: "UTC"}
	require.NoError(t, f.store.CreateExchange(f.ctx, ghost))

	require.NoError(t, f.m.Refresh(f.ctx))

	_, err := f.m.Exchange(f.ctx, ghost.ID)
	assert.ErrorIs(t, err, refdata.ErrNotFound)

	var warned bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["entity"] == "exchange" && entry.Data["id"] == ghost.ID.String() {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDuplicateNamesWithinScope(t *testing.T) {
	f := newFixture(t)
	de := f.country(t, "DE")
	xetra := f.exchange(t, de.ID, "Xetra")

	_, err := f.m.CreateExchange(f.ctx, &refdata.Exchange{CountryID: de.ID, Name: "XETRA", TimeZone: "Europe/Berlin"})
	assert.ErrorIs(t, err, refdata.ErrDuplicateName)
	_, err = f.m.CreateExchange(f.ctx, &refdata.Exchange{Name: "Xetra", TimeZone: "UTC"})
	assert.NoError(t, err, "same name in another country")

	holiday := &refdata.Holiday{Scope: refdata.ScopeExchange, ParentID: xetra.ID, Name: "Christmas Eve",
		Type: refdata.HolidayDayOfMonth, Month: time.December, DayOfMonth: 24}
	_, err = f.m.CreateHoliday(f.ctx, holiday)
	require.NoError(t, err)
	holiday.Name = "christmas eve"
	_, err = f.m.CreateHoliday(f.ctx, holiday)
	assert.ErrorIs(t, err, refdata.ErrDuplicateName)

	session := &refdata.Session{ExchangeID: xetra.ID, Name: "Regular", DayOfWeek: time.Monday, Start: 9 * time.Hour, End: 17 * time.Hour}
	_, err = f.m.CreateSession(f.ctx, session)
	require.NoError(t, err)
	_, err = f.m.CreateSession(f.ctx, session)
	assert.ErrorIs(t, err, refdata.ErrDuplicateName)
	session.DayOfWeek = time.Tuesday
	_, err = f.m.CreateSession(f.ctx, session)
	assert.NoError(t, err)

	_, err = f.m.CreateHoliday(f.ctx, &refdata.Holiday{Scope: refdata.ScopeExchange, ParentID: xetra.ID, Name: "Bad",
		Type: refdata.HolidayDayOfMonth, Month: time.April, DayOfMonth: 31})
	assert.ErrorIs(t, err, refdata.ErrInvalidDayOfMonth)
}

func TestTickerEquivalence(t *testing.T) {
	f := newFixture(t)
	lse := f.exchange(t, uuid.Nil, "LSE")
	f.instrument(t, lse.ID, "ABC", "abc.l")

	for _, ticker := range []string{"ABC", "abc", "ABC.L"} {
		inst, err := f.m.FindInstrument(f.ctx, ticker)
		require.NoError(t, err, ticker)
		assert.Equal(t, "ABC", inst.Ticker)
	}

	_, err := f.m.CreateInstrument(f.ctx, &refdata.Instrument{Ticker: "ABC.L", PrimaryExchangeID: lse.ID})
	assert.ErrorIs(t, err, refdata.ErrDuplicateTicker)
	_, err = f.m.CreateInstrument(f.ctx, &refdata.Instrument{Ticker: "XYZ", AlternateTickers: []string{"ABC"}, PrimaryExchangeID: lse.ID})
	assert.ErrorIs(t, err, refdata.ErrDuplicateTicker)
	_, err = f.m.CreateInstrument(f.ctx, &refdata.Instrument{Ticker: "XYZ", PrimaryExchangeID: uuid.New()})
	assert.ErrorIs(t, err, refdata.ErrInvalidParent)
}

func TestDeleteFundamentalInvalidatesAssociations(t *testing.T) {
	f := newFixture(t)
	us := f.country(t, "US")
	gdp, err := f.m.CreateFundamental(f.ctx, &refdata.Fundamental{Name: "GDP", Category: refdata.CategoryCountry})
	require.NoError(t, err)
	q1 := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	first, err := f.m.AssociateCountryFundamental(f.ctx, gdp.ID, us.ID)
	require.NoError(t, err)
	require.NoError(t, f.m.SetCountryFundamentalValue(f.ctx, gdp.ID, us.ID, q1, 27.1))

	require.NoError(t, f.m.SetActiveProvider(f.ctx, "Other"))
	second, err := f.m.AssociateCountryFundamental(f.ctx, gdp.ID, us.ID)
	require.NoError(t, err)
	assert.Equal(t, first.AssociationID, second.AssociationID)
	assert.Equal(t, "Other", second.Provider)

	_, err = f.m.AssociateInstrumentFundamental(f.ctx, gdp.ID, "NOPE")
	assert.ErrorIs(t, err, refdata.ErrCategoryMismatch)

	require.NoError(t, f.m.DeleteFundamental(f.ctx, gdp.ID))

	err = f.m.SetCountryFundamentalValue(f.ctx, gdp.ID, us.ID, q1, 28)
	assert.ErrorIs(t, err, refdata.ErrNotAssociated)
	for _, provider := range []string{"Test", "Other"} {
		rows, err := f.store.LoadCountryFundamentals(f.ctx, provider)
		require.NoError(t, err)
		assert.Empty(t, rows, provider)
	}
}

func TestFundamentalValuesAreKeptInOrder(t *testing.T) {
	f := newFixture(t)
	xetra := f.exchange(t, uuid.Nil, "Xetra")
	f.instrument(t, xetra.ID, "SAP", "SAP.DE")
	eps, err := f.m.CreateFundamental(f.ctx, &refdata.Fundamental{Name: "EPS", Category: refdata.CategoryInstrument})
	require.NoError(t, err)
	_, err = f.m.AssociateInstrumentFundamental(f.ctx, eps.ID, "sap.de")
	require.NoError(t, err)

	d1 := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	d0 := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.m.SetInstrumentFundamentalValue(f.ctx, eps.ID, "SAP", d1, 1.2))
	require.NoError(t, f.m.SetInstrumentFundamentalValue(f.ctx, eps.ID, "SAP", d0, 1.1))
	require.NoError(t, f.m.SetInstrumentFundamentalValue(f.ctx, eps.ID, "SAP", d1, 1.25))

	inf, err := f.m.InstrumentFundamental(f.ctx, eps.ID, "SAP")
	require.NoError(t, err)
	assert.Equal(t, refdata.FundamentalSeries{{DateTime: d0, Value: 1.1}, {DateTime: d1, Value: 1.25}}, inf.Values)

	require.NoError(t, f.m.DeleteInstrumentFundamentalValue(f.ctx, eps.ID, "SAP", d0))
	f.m.Invalidate()
	inf, err = f.m.InstrumentFundamental(f.ctx, eps.ID, "SAP")
	require.NoError(t, err)
	assert.Equal(t, refdata.FundamentalSeries{{DateTime: d1, Value: 1.25}}, inf.Values)
}

func TestUpdateInOtherLocaleKeepsDisplay(t *testing.T) {
	f := newFixture(t)
	xetra := f.exchange(t, uuid.Nil, "Frankfurt Exchange")

	require.NoError(t, f.m.UpdateExchange(f.ctx, &refdata.Exchange{ID: xetra.ID, Name: "Frankfurter Börse"}, InLocale("de")))
	got, err := f.m.Exchange(f.ctx, xetra.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frankfurt Exchange", got.Name)

	f.m.SetLocale(language.German)
	got, err = f.m.Exchange(f.ctx, xetra.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frankfurter Börse", got.Name)

	// Saving the displayed value back must not overwrite the canonical name.
	require.NoError(t, f.m.UpdateExchange(f.ctx, got))
	f.m.SetLocale(language.English)
	got, err = f.m.Exchange(f.ctx, xetra.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frankfurt Exchange", got.Name)
}

func TestSetActiveProviderForcesReload(t *testing.T) {
	f := newFixture(t)
	loads := f.store.Calls("LoadCountries")

	_, err := f.m.Countries(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, loads, f.store.Calls("LoadCountries"))

	require.NoError(t, f.m.SetActiveProvider(f.ctx, "Other"))
	_, err = f.m.Countries(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, loads+1, f.store.Calls("LoadCountries"))

	require.NoError(t, f.m.SetActiveProvider(f.ctx, "Other"))
	_, err = f.m.Countries(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, loads+1, f.store.Calls("LoadCountries"))

	assert.ErrorIs(t, f.m.SetActiveProvider(f.ctx, "bad-name"), refdata.ErrInvalidProvider)
	providers, err := f.m.Providers(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Other", "Test"}, providers)
}

func TestEachOperationEmitsOneEvent(t *testing.T) {
	f := newFixture(t)
	rec := &modelRecorder{}
	notify.Subscribe(f.m.Bus().Model, rec)

	de := f.country(t, "DE")
	xetra := f.exchange(t, de.ID, "Xetra")
	require.NoError(t, f.m.DeleteExchange(f.ctx, xetra.ID))
	_, err := f.m.CreateExchange(f.ctx, &refdata.Exchange{CountryID: uuid.New(), Name: "Nowhere", TimeZone: "UTC"})
	require.Error(t, err)

	events := rec.events()
	require.Len(t, events, 3)
	assert.Equal(t, notify.ChangeCreated, events[0].Kind)
	assert.Equal(t, notify.EntityCountry, events[0].Entity)
	assert.Equal(t, notify.EntityExchange, events[1].Entity)
	assert.Equal(t, notify.ChangeDeleted, events[2].Kind)
	assert.Equal(t, xetra.ID, events[2].ID)
	runtime.KeepAlive(rec)
}

func TestMutationAfterInvalidateEmitsOneEvent(t *testing.T) {
	f := newFixture(t)
	rec := &modelRecorder{}
	notify.Subscribe(f.m.Bus().Model, rec)

	f.m.Invalidate()
	f.country(t, "DE")

	events := rec.events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.ChangeCreated, events[0].Kind)
	assert.Equal(t, notify.EntityCountry, events[0].Entity)

	f.m.Invalidate()
	_, err := f.m.CreateCountry(f.ctx, "DE")
	require.Error(t, err)
	events = rec.events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.ChangeRefreshed, events[1].Kind)
	runtime.KeepAlive(rec)
}

func TestPausedModelChannelDeliversOneBatch(t *testing.T) {
	f := newFixture(t)
	rec := &modelRecorder{}
	notify.Subscribe(f.m.Bus().Model, rec)

	f.m.Bus().Model.Pause()
	f.m.Bus().Model.Pause()
	f.country(t, "DE")
	f.country(t, "FR")
	f.country(t, "IT")
	f.m.Bus().Model.Resume()
	assert.Empty(t, rec.events())
	f.m.Bus().Model.Resume()

	rec.mu.Lock()
	batches := rec.batches
	rec.mu.Unlock()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "DE", batches[0][0].Key)
	assert.Equal(t, "FR", batches[0][1].Key)
	assert.Equal(t, "IT", batches[0][2].Key)
	runtime.KeepAlive(rec)
}

func TestDeleteExchangeCascades(t *testing.T) {
	f := newFixture(t)
	de := f.country(t, "DE")
	xetra := f.exchange(t, de.ID, "Xetra")
	other := f.exchange(t, de.ID, "Tradegate")
	_, err := f.m.CreateSession(f.ctx, &refdata.Session{ExchangeID: xetra.ID, Name: "Regular", DayOfWeek: time.Monday, Start: 9 * time.Hour, End: 17 * time.Hour})
	require.NoError(t, err)
	_, err = f.m.CreateHoliday(f.ctx, &refdata.Holiday{Scope: refdata.ScopeExchange, ParentID: xetra.ID, Name: "Closed",
		Type: refdata.HolidayDayOfMonth, Month: time.May, DayOfMonth: 1})
	require.NoError(t, err)
	f.instrument(t, xetra.ID, "SAP")
	dual, err := f.m.CreateInstrument(f.ctx, &refdata.Instrument{Ticker: "BAS", PrimaryExchangeID: other.ID, SecondaryExchangeIDs: []uuid.UUID{xetra.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{xetra.ID}, dual.SecondaryExchangeIDs)

	require.NoError(t, f.m.DeleteExchange(f.ctx, xetra.ID))

	_, err = f.m.FindInstrument(f.ctx, "SAP")
	assert.ErrorIs(t, err, refdata.ErrNotFound)
	bas, err := f.m.FindInstrument(f.ctx, "BAS")
	require.NoError(t, err)
	assert.Empty(t, bas.SecondaryExchangeIDs)
	sessions, err := f.store.LoadSessions(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	f.m.Invalidate()
	country, err := f.m.Country(f.ctx, de.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other.ID}, country.ExchangeIDs)
}

func TestCascadeFailureReloadsGraph(t *testing.T) {
	f := newFixture(t)
	xetra := f.exchange(t, uuid.Nil, "Xetra")
	f.instrument(t, xetra.ID, "SAP")
	_, err := f.m.CreateSession(f.ctx, &refdata.Session{ExchangeID: xetra.ID, Name: "Regular", DayOfWeek: time.Monday, Start: 9 * time.Hour, End: 17 * time.Hour})
	require.NoError(t, err)

	f.store.FailNext("DeleteSession", errBoom)
	err = f.m.DeleteExchange(f.ctx, xetra.ID)
	require.ErrorIs(t, err, errBoom)

	loads := f.store.Calls("LoadExchanges")
	got, err := f.m.Exchange(f.ctx, xetra.ID)
	require.NoError(t, err)
	assert.Equal(t, loads+1, f.store.Calls("LoadExchanges"))
	assert.Len(t, got.SessionIDs, 1)
	assert.Empty(t, got.InstrumentTickers, "instrument delete was committed before the failure")
}

func TestGroupTree(t *testing.T) {
	f := newFixture(t)
	equities, err := f.m.CreateInstrumentGroup(f.ctx, &refdata.InstrumentGroup{Name: "Equities"})
	require.NoError(t, err)
	tech, err := f.m.CreateInstrumentGroup(f.ctx, &refdata.InstrumentGroup{ParentID: equities.ID, Name: "Tech"})
	require.NoError(t, err)
	_, err = f.m.CreateInstrumentGroup(f.ctx, &refdata.InstrumentGroup{ParentID: equities.ID, Name: "TECH"})
	assert.ErrorIs(t, err, refdata.ErrDuplicateName)

	path, err := f.m.GroupPath(f.ctx, tech.ID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, refdata.RootGroupID, path[0].ID)
	assert.Equal(t, tech.ID, path[2].ID)

	equities.ParentID = tech.ID
	assert.ErrorIs(t, f.m.UpdateInstrumentGroup(f.ctx, equities), refdata.ErrInvalidParent)

	xetra := f.exchange(t, uuid.Nil, "Xetra")
	f.instrument(t, xetra.ID, "SAP")
	require.NoError(t, f.m.AddInstrumentToGroup(f.ctx, tech.ID, "SAP"))
	assert.ErrorIs(t, f.m.AddInstrumentToGroup(f.ctx, tech.ID, "sap"), refdata.ErrDuplicateTicker)

	require.NoError(t, f.m.DeleteInstrumentGroup(f.ctx, equities.ID))
	_, err = f.m.InstrumentGroup(f.ctx, tech.ID)
	assert.ErrorIs(t, err, refdata.ErrNotFound)
	sap, err := f.m.FindInstrument(f.ctx, "SAP")
	require.NoError(t, err)
	assert.Empty(t, sap.GroupIDs)
	children, err := f.m.GroupChildren(f.ctx, refdata.RootGroupID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestHolidaysForYearMergesScopes(t *testing.T) {
	f := newFixture(t)
	de := f.country(t, "DE")
	xetra := f.exchange(t, de.ID, "Xetra")
	_, err := f.m.CreateHoliday(f.ctx, &refdata.Holiday{Scope: refdata.ScopeCountry, ParentID: de.ID, Name: "Christmas",
		Type: refdata.HolidayDayOfMonth, Month: time.December, DayOfMonth: 25})
	require.NoError(t, err)
	_, err = f.m.CreateHoliday(f.ctx, &refdata.Holiday{Scope: refdata.ScopeExchange, ParentID: xetra.ID, Name: "New Year",
		Type: refdata.HolidayDayOfMonth, Month: time.January, DayOfMonth: 1})
	require.NoError(t, err)

	dates, err := f.m.HolidaysForYear(f.ctx, xetra.ID, 2024)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "New Year", dates[0].Holiday.Name)
	assert.Equal(t, time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC), dates[1].Date)

	closed, err := f.m.IsHoliday(f.ctx, xetra.ID, time.Date(2024, time.December, 25, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, closed)
}

func minuteBars(start time.Time, n int) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		p := float64(100 + i)
		bars[i] = marketdata.Bar{DateTime: start.Add(time.Duration(i) * time.Minute), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	return bars
}

func TestGetDataFeedReusesLiveFeed(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.m.UpsertBars(f.ctx, "", "abc", marketdata.ResolutionMinute, minuteBars(start, 10)))

	params := feed.Params{Ticker: "ABC", Resolution: marketdata.ResolutionMinute, Interval: 5, From: start, To: start.Add(time.Hour)}
	first, err := f.m.GetDataFeed(f.ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count())

	second, err := f.m.GetDataFeed(f.ctx, params)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.store.Calls("GetDataCache"))

	params.Interval = 1
	third, err := f.m.GetDataFeed(f.ctx, params)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 10, third.Count())

	params.Interval = 0
	_, err = f.m.GetDataFeed(f.ctx, params)
	assert.ErrorIs(t, err, marketdata.ErrInvalidInterval)
	runtime.KeepAlive(first)
	runtime.KeepAlive(third)
}

func TestRealTimeUpdateExtendsOpenFeed(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.m.UpsertBars(f.ctx, "Test", "ABC", marketdata.ResolutionMinute, minuteBars(start, 5)))

	open, err := f.m.GetDataFeed(f.ctx, feed.Params{
		Ticker: "ABC", Resolution: marketdata.ResolutionMinute, Interval: 1,
		From: start, To: start.Add(5 * time.Minute), ToDateMode: marketdata.ToDateOpen,
	})
	require.NoError(t, err)

	later := start.Add(30 * time.Minute)
	require.NoError(t, f.m.OnRealTimeUpdate(f.ctx, "Test", "ABC", marketdata.ResolutionMinute, minuteBars(later, 1), nil))
	assert.Equal(t, later, open.To())

	cache, err := f.m.GetDataCache(f.ctx, "ABC", marketdata.ResolutionMinute, start, later, marketdata.PriceDataBoth)
	require.NoError(t, err)
	assert.Equal(t, 6, cache.Count())

	n, err := f.m.DeletePriceData(f.ctx, "ABC", marketdata.ResolutionMinute, start, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	runtime.KeepAlive(open)
}

func TestPriceDataNeedsRegisteredProvider(t *testing.T) {
	f := newFixture(t)
	bars := minuteBars(time.Now().UTC().Truncate(time.Minute), 1)
	assert.ErrorIs(t, f.m.UpsertBars(f.ctx, "Unknown", "ABC", marketdata.ResolutionMinute, bars), refdata.ErrInvalidProvider)
	assert.ErrorIs(t, f.m.UpsertBars(f.ctx, "", "ABC", marketdata.ResolutionLevel1, bars), marketdata.ErrNotImplemented)
	_, err := f.m.GetDataCache(f.ctx, "ABC", marketdata.ResolutionLevel2, time.Time{}, time.Now(), marketdata.PriceDataBoth)
	assert.ErrorIs(t, err, marketdata.ErrNotImplemented)
}
