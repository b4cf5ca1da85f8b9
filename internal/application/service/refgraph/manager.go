// Package refgraph owns the in-memory reference-data graph. Every mutation
// is written through to the store first, then applied to the graph, then
// announced on the notification bus after the manager lock is released.
package refgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/domain/interfaces"
	"marketgraph/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

var ErrNilEntity = errors.New("entity is nil")

type loadState string

const (
	stateDirty     loadState = "dirty"
	stateReloading loadState = "reloading"
	stateClean     loadState = "clean"
)

type Option func(*Manager)

// WithLocale sets the initial display locale.
func WithLocale(tag language.Tag) Option {
	return func(m *Manager) { m.locale = tag }
}

// WithProvider sets the initial active data provider name.
func WithProvider(name string) Option {
	return func(m *Manager) { m.provider = name }
}

func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mtr }
}

// UpdateOption adjusts a single Update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	locale string
}

// InLocale turns an update of names and descriptions into a translation
// write for the given locale.
func InLocale(locale string) UpdateOption {
	return func(o *updateOptions) { o.locale = locale }
}

func applyUpdateOptions(opts []UpdateOption) updateOptions {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// emission collects the events of one operation.
type emission struct {
	model       []notify.ModelChange
	fundamental []notify.FundamentalChange
	price       []notify.PriceChange
}

func modelEvent(kind notify.ChangeKind, entity notify.EntityKind, id uuid.UUID, key string) emission {
	return emission{model: []notify.ModelChange{{Kind: kind, Entity: entity, ID: id, Key: key}}}
}

type Manager struct {
	store   interfaces.Store
	bus     *notify.Bus
	logger  *logrus.Entry
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    loadState
	locale   language.Tag
	provider string
	source   interfaces.DataProvider
	g        *graph
}

func NewManager(store interfaces.Store, bus *notify.Bus, logger *logrus.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		store:  store,
		bus:    bus,
		logger: logger.WithField("component", "refgraph"),
		state:  stateDirty,
		locale: language.English,
		g:      newGraph(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = notify.NewBus(logger, m.metrics)
	}
	return m
}

// Open creates the structural schema and registers the active provider.
// The graph itself loads lazily on first access.
func (m *Manager) Open(ctx context.Context) error {
	if err := m.store.CreateSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()
	if provider == "" {
		return nil
	}
	if err := m.store.RegisterProvider(ctx, provider); err != nil {
		return fmt.Errorf("register provider %s: %w", provider, err)
	}
	return nil
}

func (m *Manager) Close() {
	m.store.Close()
}

func (m *Manager) Bus() *notify.Bus {
	return m.bus
}

// Invalidate marks the graph dirty; the next access reloads it.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.state = stateDirty
	m.mu.Unlock()
}

// Refresh discards the graph and rebuilds it from the store.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.state = stateDirty
	reloaded, err := m.ensureLoadedLocked(ctx)
	m.mu.Unlock()
	if reloaded {
		m.publish(refreshed())
	}
	return err
}

func refreshed() emission {
	return emission{model: []notify.ModelChange{{Kind: notify.ChangeRefreshed, Entity: notify.EntityGraph}}}
}

func (m *Manager) Locale() language.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locale
}

// SetLocale switches the display locale; translations are reloaded with
// the graph.
func (m *Manager) SetLocale(tag language.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locale == tag {
		return
	}
	m.locale = tag
	m.state = stateDirty
}

func (m *Manager) ActiveProvider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// SetActiveProvider registers name with the store and makes it the
// provider for fundamentals and price data. Provider-scoped data is
// discarded and reloaded on next access.
func (m *Manager) SetActiveProvider(ctx context.Context, name string) error {
	if err := refdata.ValidateProviderName(name); err != nil {
		return err
	}
	if err := m.store.RegisterProvider(ctx, name); err != nil {
		m.metrics.StoreOperation("register_provider", err)
		return fmt.Errorf("register provider %s: %w", name, err)
	}
	m.metrics.StoreOperation("register_provider", nil)
	m.mu.Lock()
	changed := m.provider != name
	m.provider = name
	if changed {
		m.state = stateDirty
	}
	m.mu.Unlock()
	if changed {
		m.logger.WithField("provider", name).Info("active data provider changed")
		m.publish(emission{model: []notify.ModelChange{{Kind: notify.ChangeUpdated, Entity: notify.EntityDataProvider, Key: name}}})
	}
	return nil
}

// Providers lists the registered data provider names.
func (m *Manager) Providers(ctx context.Context) ([]string, error) {
	return m.store.Providers(ctx)
}

func (m *Manager) ensureLoadedLocked(ctx context.Context) (bool, error) {
	if m.state == stateClean {
		return false, nil
	}
	m.state = stateReloading
	g, err := m.load(ctx)
	if err != nil {
		m.state = stateDirty
		return false, fmt.Errorf("load reference data: %w", err)
	}
	m.g = g
	m.state = stateClean
	return true, nil
}

// read runs fn against a loaded graph under the manager lock.
func (m *Manager) read(ctx context.Context, fn func(g *graph) error) error {
	m.mu.Lock()
	reloaded, err := m.ensureLoadedLocked(ctx)
	if err == nil {
		err = fn(m.g)
	}
	m.mu.Unlock()
	if reloaded {
		m.publish(refreshed())
	}
	return err
}

// mutate runs fn under the manager lock and publishes its events once the
// lock is released. A reload forced by the mutation is folded into the
// mutation's own event; it is only reported on its own when fn fails.
func (m *Manager) mutate(ctx context.Context, op string, fn func(g *graph) (emission, error)) error {
	m.mu.Lock()
	reloaded, err := m.ensureLoadedLocked(ctx)
	var out emission
	if err == nil {
		out, err = fn(m.g)
		m.metrics.StoreOperation(op, err)
	}
	m.mu.Unlock()
	if err != nil {
		if reloaded {
			m.publish(refreshed())
		}
		return err
	}
	m.publish(out)
	return nil
}

func (m *Manager) publish(e emission) {
	if len(e.model) > 0 {
		m.bus.Model.Notify(e.model...)
	}
	if len(e.fundamental) > 0 {
		m.bus.Fundamental.Notify(e.fundamental...)
	}
	if len(e.price) > 0 {
		m.bus.Price.Notify(e.price...)
	}
}

// cascadeFailed marks the graph dirty after a multi-step store operation
// failed part way through.
func (m *Manager) cascadeFailed(err error, fields logrus.Fields) error {
	m.state = stateDirty
	m.logger.WithFields(fields).WithError(err).Error("cascading delete failed, graph will reload")
	return err
}

func (m *Manager) requireProviderLocked() (string, error) {
	if m.provider == "" {
		return "", fmt.Errorf("%w: no active data provider", refdata.ErrInvalidProvider)
	}
	return m.provider, nil
}
