package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"marketgraph/internal/config"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/interfaces"
	"marketgraph/internal/infrastructure/broker"
	"marketgraph/internal/infrastructure/provider/invest"
	"marketgraph/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// publishingSink forwards provider updates onto the price exchanges.
type publishingSink struct {
	pub    *broker.Publisher
	logger *logrus.Logger
}

var _ interfaces.ProviderCallbacks = (*publishingSink)(nil)

func (s *publishingSink) OnHistoricalData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error {
	return s.OnRealTimeUpdate(ctx, provider, ticker, resolution, bars, nil)
}

func (s *publishingSink) OnDownloadComplete(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time) {
	s.logger.WithFields(logrus.Fields{
		"ticker":     ticker,
		"resolution": resolution,
	}).Info("download complete")
}

func (s *publishingSink) OnRealTimeUpdate(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error {
	return s.pub.Publish(ctx, &broker.PriceMessage{
		Provider:   provider,
		Ticker:     ticker,
		Resolution: resolution,
		Bars:       bars,
		Ticks:      ticks,
	})
}

func (s *publishingSink) OnRequestError(ctx context.Context, provider, ticker string, err error) {
	s.logger.WithError(err).WithField("ticker", ticker).Error("provider request failed")
}

func main() {
	bootLogger := logrus.New()
	bootLogger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadProducer()
	if err != nil {
		bootLogger.Fatalf("config error: %v", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		bootLogger.Fatalf("init logger: %v", err)
	}

	instruments, err := readInstruments(cfg.InstrumentsFile)
	if err != nil {
		log.Fatalf("load instruments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rabbitConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("connect rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	pub, err := broker.NewPublisher(rabbitConn, cfg.RabbitMQ, log)
	if err != nil {
		log.Fatalf("init publisher: %v", err)
	}
	defer pub.Close()

	source := invest.NewProvider(cfg.Invest, cfg.Data.Provider, log)
	source.SetCallbacks(&publishingSink{pub: pub, logger: log})
	if err := source.Connect(ctx); err != nil {
		log.Fatalf("connect invest api: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := source.Disconnect(stopCtx); err != nil {
			log.Errorf("disconnect invest api: %v", err)
		}
	}()

	resolutions := []marketdata.Resolution{marketdata.ResolutionMinute}
	if cfg.Level1 {
		resolutions = append(resolutions, marketdata.ResolutionLevel1)
	}
	for _, inst := range instruments {
		for _, res := range resolutions {
			if err := source.Subscribe(ctx, inst, res); err != nil {
				log.Fatalf("subscribe %s %s: %v", inst.Ticker, res, err)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"instruments": len(instruments),
		"bars_ex":     cfg.RabbitMQ.BarsExchange,
		"ticks_ex":    cfg.RabbitMQ.TicksExchange,
		"level1":      cfg.Level1,
	}).Info("producer started")

	<-ctx.Done()
	log.Info("producer stopped")
}
