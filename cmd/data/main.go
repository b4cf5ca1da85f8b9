package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"marketgraph/internal/application/service/refgraph"
	"marketgraph/internal/config"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/infrastructure/persistence"
	"marketgraph/internal/infrastructure/provider/invest"
	"marketgraph/internal/logger"

	"github.com/google/uuid"
	investgo "github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Exchanges reachable through the Invest API are registered under the
// broker's home country.
const (
	brokerCountry   = "RU"
	defaultTimeZone = "UTC"
)

var exchangeTimeZones = map[string]string{
	"MOEX":   "Europe/Moscow",
	"SPB":    "Europe/Moscow",
	"NYSE":   "America/New_York",
	"NASDAQ": "America/New_York",
	"LSE":    "Europe/London",
	"HKEX":   "Asia/Hong_Kong",
}

type loader struct {
	graph     *refgraph.Manager
	logger    *logrus.Logger
	exchanges map[string]uuid.UUID
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLogger := logrus.New()
	bootLogger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatalf("config error: %v", err)
	}
	if cfg.Invest.Token == "" {
		bootLogger.Fatal("INVEST_TOKEN is required")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		bootLogger.Fatalf("init logger: %v", err)
	}

	repo, err := persistence.NewRepository(ctx, persistence.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		CommandTimeout: cfg.Postgres.CommandTimeout,
	}, log)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}

	graph := refgraph.NewManager(repo, nil, log, refgraph.WithProvider(cfg.Data.Provider))
	defer graph.Close()
	if err := graph.Open(ctx); err != nil {
		log.Fatalf("open graph: %v", err)
	}

	client, err := investgo.NewClient(ctx, investgo.Config{
		EndPoint:           cfg.Invest.Endpoint,
		Token:              cfg.Invest.Token,
		AppName:            cfg.Invest.AppName,
		InsecureSkipVerify: cfg.Invest.SkipTLSVerify,
	}, log)
	if err != nil {
		log.Fatalf("create invest api client: %v", err)
	}
	defer func() {
		if stopErr := client.Stop(); stopErr != nil {
			log.Errorf("stop invest api client: %v", stopErr)
		}
	}()

	// One model notification batch for the whole load.
	graph.Bus().Model.Pause()
	defer graph.Bus().Model.Resume()

	l := &loader{graph: graph, logger: log, exchanges: make(map[string]uuid.UUID)}
	instruments := client.NewInstrumentsServiceClient()

	countries, err := l.syncCountries(ctx, instruments)
	if err != nil {
		log.Fatalf("sync countries: %v", err)
	}
	log.WithField("countries", countries).Info("countries synced")

	shares, err := l.syncShares(ctx, instruments)
	if err != nil {
		log.Fatalf("sync shares: %v", err)
	}
	log.WithField("shares", shares).Info("shares synced")
	log.Info("reference data sync finished")
}

func (l *loader) syncCountries(ctx context.Context, client *investgo.InstrumentsServiceClient) (int, error) {
	resp, err := client.GetCountries()
	if err != nil {
		return 0, fmt.Errorf("get countries: %w", err)
	}
	created := 0
	for _, item := range resp.GetCountries() {
		code := strings.ToUpper(strings.TrimSpace(item.GetAlfaTwo()))
		if len(code) != 2 {
			continue
		}
		ok, err := l.ensureCountry(ctx, code)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ensureCountry creates the country unless it exists and reports whether
// it did. Codes unknown to the region registry are skipped.
func (l *loader) ensureCountry(ctx context.Context, code string) (bool, error) {
	if _, err := l.graph.CountryByIsoCode(ctx, code); err == nil {
		return false, nil
	} else if !errors.Is(err, refdata.ErrNotFound) {
		return false, err
	}
	_, err := l.graph.CreateCountry(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, refdata.ErrInvalidCountryCode):
		l.logger.WithField("country", code).Warn("skip unknown country code")
		return false, nil
	default:
		return false, err
	}
}

func (l *loader) exchangeID(ctx context.Context, name string) (uuid.UUID, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if id, ok := l.exchanges[name]; ok {
		return id, nil
	}
	if _, err := l.ensureCountry(ctx, brokerCountry); err != nil {
		return uuid.Nil, err
	}
	country, err := l.graph.CountryByIsoCode(ctx, brokerCountry)
	if err != nil {
		return uuid.Nil, err
	}
	exchange, err := l.graph.FindExchange(ctx, country.ID, name)
	if errors.Is(err, refdata.ErrNotFound) {
		exchange, err = l.graph.CreateExchange(ctx, &refdata.Exchange{
			CountryID:            country.ID,
			Name:                 name,
			TimeZone:             exchangeTimeZone(name),
			DefaultPriceDecimals: 2,
			DefaultMinMovement:   1,
			DefaultBigPointValue: 1,
		})
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("exchange %s: %w", name, err)
	}
	l.exchanges[name] = exchange.ID
	return exchange.ID, nil
}

func exchangeTimeZone(name string) string {
	for prefix, zone := range exchangeTimeZones {
		if strings.HasPrefix(name, prefix) {
			return zone
		}
	}
	return defaultTimeZone
}

func (l *loader) syncShares(ctx context.Context, client *investgo.InstrumentsServiceClient) (int, error) {
	resp, err := client.Shares(pb.InstrumentStatus_INSTRUMENT_STATUS_BASE)
	if err != nil {
		return 0, fmt.Errorf("get shares: %w", err)
	}
	created := 0
	for _, share := range resp.GetInstruments() {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		ticker := refdata.NormalizeTicker(share.GetTicker())
		if ticker == "" || share.GetExchange() == "" {
			continue
		}
		if _, err := l.graph.FindInstrument(ctx, ticker); err == nil {
			continue
		}
		exchangeID, err := l.exchangeID(ctx, share.GetExchange())
		if err != nil {
			return created, err
		}
		_, err = l.graph.CreateInstrument(ctx, shareToInstrument(share, exchangeID))
		switch {
		case err == nil:
			created++
		case errors.Is(err, refdata.ErrDuplicateTicker):
			l.logger.WithField("ticker", ticker).Debug("skip duplicate ticker")
		default:
			return created, fmt.Errorf("create %s: %w", ticker, err)
		}
	}
	return created, nil
}

func shareToInstrument(share *pb.Share, exchangeID uuid.UUID) *refdata.Instrument {
	increment := decimal.Zero
	if q := share.GetMinPriceIncrement(); q != nil {
		increment = decimal.NewFromFloat(q.ToFloat())
	}
	decimals := 0
	if exp := increment.Exponent(); exp < 0 {
		decimals = int(-exp)
	}
	minMovement := 1.0
	if increment.IsPositive() {
		minMovement = increment.Shift(int32(decimals)).InexactFloat64()
	}

	inst := &refdata.Instrument{
		Ticker:            share.GetTicker(),
		Type:              refdata.InstrumentStock,
		Name:              strings.TrimSpace(share.GetName()),
		PrimaryExchangeID: exchangeID,
		PriceDecimals:     decimals,
		MinMovement:       minMovement,
		BigPointValue:     float64(max(share.GetLot(), 1)),
	}
	if ipo := share.GetIpoDate(); ipo != nil {
		inst.InceptionDate = ipo.AsTime().UTC()
	}
	inst.ExtendedProperties.Set(invest.InstrumentUIDKey, refdata.StringValue(share.GetUid()))
	for key, value := range map[string]string{
		"figi":     share.GetFigi(),
		"isin":     share.GetIsin(),
		"currency": share.GetCurrency(),
	} {
		if value != "" {
			inst.ExtendedProperties.Set(key, refdata.StringValue(value))
		}
	}
	return inst
}
