package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketgraph/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

// BatchConfig controls batching thresholds for real-time ingestion.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// Sink receives flushed batches; the graph manager implements it.
type Sink interface {
	OnRealTimeUpdate(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error
}

type seriesKey struct {
	provider   string
	ticker     string
	resolution marketdata.Resolution
}

// BatchWriter buffers rows per series and flushes them to the sink when a
// buffer is full or its timeout elapses.
type BatchWriter struct {
	cfg    BatchConfig
	sink   Sink
	logger *logrus.Entry

	mu    sync.Mutex
	ctx   context.Context
	bars  map[seriesKey]*batchBuffer[marketdata.Bar]
	ticks map[seriesKey]*batchBuffer[marketdata.Level1Tick]
}

func NewBatchWriter(cfg BatchConfig, sink Sink, logger *logrus.Logger) *BatchWriter {
	return &BatchWriter{
		cfg:    cfg,
		sink:   sink,
		logger: logger.WithField("component", "batch_writer"),
		bars:   make(map[seriesKey]*batchBuffer[marketdata.Bar]),
		ticks:  make(map[seriesKey]*batchBuffer[marketdata.Level1Tick]),
	}
}

// Run sets the base context for asynchronous flush operations.
func (b *BatchWriter) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
	for _, buf := range b.bars {
		buf.setContext(ctx)
	}
	for _, buf := range b.ticks {
		buf.setContext(ctx)
	}
}

// Stop flushes remaining buffers using the provided context.
func (b *BatchWriter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	bars := make([]*batchBuffer[marketdata.Bar], 0, len(b.bars))
	for _, buf := range b.bars {
		bars = append(bars, buf)
	}
	ticks := make([]*batchBuffer[marketdata.Level1Tick], 0, len(b.ticks))
	for _, buf := range b.ticks {
		ticks = append(ticks, buf)
	}
	b.mu.Unlock()

	var errs []error
	for _, buf := range bars {
		buf.setContext(ctx)
		if err := buf.drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, buf := range ticks {
		buf.setContext(ctx)
		if err := buf.drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Add queues the rows of one message.
func (b *BatchWriter) Add(msg *PriceMessage) error {
	if msg == nil {
		return errors.New("price message is nil")
	}
	key := seriesKey{provider: msg.Provider, ticker: msg.Ticker, resolution: msg.Resolution}
	if len(msg.Bars) > 0 {
		buf, err := b.barBuffer(key)
		if err != nil {
			return err
		}
		for _, bar := range msg.Bars {
			if err := buf.enqueue(bar); err != nil {
				return err
			}
		}
	}
	if len(msg.Ticks) > 0 {
		buf, err := b.tickBuffer(key)
		if err != nil {
			return err
		}
		for _, tick := range msg.Ticks {
			if err := buf.enqueue(tick); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BatchWriter) barBuffer(key seriesKey) (*batchBuffer[marketdata.Bar], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, errors.New("batch writer is not running")
	}
	buf, ok := b.bars[key]
	if !ok {
		buf = newBatchBuffer(b.cfg, func(ctx context.Context, batch []marketdata.Bar) error {
			return b.sink.OnRealTimeUpdate(ctx, key.provider, key.ticker, key.resolution, batch, nil)
		}, b.seriesLogger(key))
		buf.setContext(b.ctx)
		b.bars[key] = buf
	}
	return buf, nil
}

func (b *BatchWriter) tickBuffer(key seriesKey) (*batchBuffer[marketdata.Level1Tick], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, errors.New("batch writer is not running")
	}
	buf, ok := b.ticks[key]
	if !ok {
		buf = newBatchBuffer(b.cfg, func(ctx context.Context, batch []marketdata.Level1Tick) error {
			return b.sink.OnRealTimeUpdate(ctx, key.provider, key.ticker, key.resolution, nil, batch)
		}, b.seriesLogger(key))
		buf.setContext(b.ctx)
		b.ticks[key] = buf
	}
	return buf, nil
}

func (b *BatchWriter) seriesLogger(key seriesKey) *logrus.Entry {
	return b.logger.WithFields(logrus.Fields{
		"provider":   key.provider,
		"ticker":     key.ticker,
		"resolution": key.resolution,
	})
}

type batchBuffer[T any] struct {
	cfg     BatchConfig
	mu      sync.Mutex
	items   []T
	timer   *time.Timer
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry
	ctx     context.Context
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	return &batchBuffer[T]{
		cfg:     cfg,
		flushFn: flushFn,
		logger:  logger,
	}
}

func (bb *batchBuffer[T]) setContext(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	bb.ctx = ctx
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	if ctx == nil {
		bb.mu.Unlock()
		return errors.New("batch buffer is not running")
	}
	if err := ctx.Err(); err != nil {
		bb.mu.Unlock()
		return err
	}
	bb.items = append(bb.items, item)
	var batch []T
	limit := bb.cfg.Size
	if limit <= 0 {
		limit = 1
	}
	if len(bb.items) >= limit {
		batch = bb.takeBatchLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.startTimerLocked()
	}
	bb.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) startTimerLocked() {
	timeout := bb.cfg.Timeout
	if timeout <= 0 {
		return
	}
	bb.timer = time.AfterFunc(timeout, func() {
		batch := bb.takeBatch()
		if len(batch) == 0 {
			return
		}
		if err := bb.flushWithCurrentContext(batch); err != nil && bb.logger != nil {
			bb.logger.WithError(err).Warn("batch flush failed")
		}
	})
}

func (bb *batchBuffer[T]) takeBatch() []T {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.takeBatchLocked()
}

func (bb *batchBuffer[T]) takeBatchLocked() []T {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	if len(bb.items) == 0 {
		return nil
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	return batch
}

func (bb *batchBuffer[T]) flushWithCurrentContext(batch []T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	bb.mu.Unlock()
	return bb.flushWithContext(ctx, batch)
}

func (bb *batchBuffer[T]) flushWithContext(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := bb.flushFn(ctx, batch); err != nil {
		return err
	}
	if bb.logger != nil {
		bb.logger.WithFields(logrus.Fields{
			"size":    len(batch),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
	return nil
}

func (bb *batchBuffer[T]) drain(ctx context.Context) error {
	batch := bb.takeBatch()
	if len(batch) == 0 {
		return nil
	}
	return bb.flushWithContext(ctx, batch)
}
