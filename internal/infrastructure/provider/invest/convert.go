package invest

import (
	"fmt"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

// InstrumentUIDKey is the extended property holding the Invest API
// instrument uid. Instruments without it are addressed by ticker.
const InstrumentUIDKey = "invest_uid"

func instrumentID(instrument *refdata.Instrument) string {
	if v, ok := instrument.ExtendedProperties.Get(InstrumentUIDKey); ok && v.Kind == refdata.TagString && v.Str != "" {
		return v.Str
	}
	return instrument.Ticker
}

func candleInterval(resolution marketdata.Resolution) (pb.CandleInterval, error) {
	switch resolution {
	case marketdata.ResolutionMinute:
		return pb.CandleInterval_CANDLE_INTERVAL_1_MIN, nil
	case marketdata.ResolutionHour:
		return pb.CandleInterval_CANDLE_INTERVAL_HOUR, nil
	case marketdata.ResolutionDay:
		return pb.CandleInterval_CANDLE_INTERVAL_DAY, nil
	case marketdata.ResolutionWeek:
		return pb.CandleInterval_CANDLE_INTERVAL_WEEK, nil
	case marketdata.ResolutionMonth:
		return pb.CandleInterval_CANDLE_INTERVAL_MONTH, nil
	default:
		return pb.CandleInterval_CANDLE_INTERVAL_UNSPECIFIED, fmt.Errorf("%w: %s", marketdata.ErrNotImplemented, resolution)
	}
}

func quotationToFloat(q *pb.Quotation) float64 {
	if q == nil {
		return 0
	}
	return q.ToFloat()
}

func historicToBar(c *pb.HistoricCandle) (marketdata.Bar, bool) {
	if c == nil || c.GetTime() == nil {
		return marketdata.Bar{}, false
	}
	return marketdata.Bar{
		DateTime: c.GetTime().AsTime().UTC(),
		Open:     quotationToFloat(c.GetOpen()),
		High:     quotationToFloat(c.GetHigh()),
		Low:      quotationToFloat(c.GetLow()),
		Close:    quotationToFloat(c.GetClose()),
		Volume:   float64(c.GetVolume()),
	}, true
}

func candleToBar(c *pb.Candle) (marketdata.Bar, bool) {
	if c == nil || c.GetTime() == nil {
		return marketdata.Bar{}, false
	}
	return marketdata.Bar{
		DateTime: c.GetTime().AsTime().UTC(),
		Open:     quotationToFloat(c.GetOpen()),
		High:     quotationToFloat(c.GetHigh()),
		Low:      quotationToFloat(c.GetLow()),
		Close:    quotationToFloat(c.GetClose()),
		Volume:   float64(c.GetVolume()),
	}, true
}

// quoteBook keeps the latest top of book and last trade per subscribed
// instrument id so each stream event can be emitted as a complete Level1
// tick.
type quoteBook map[string]marketdata.Level1Tick

func (q quoteBook) applyOrderBook(key string, ob *pb.OrderBook) (marketdata.Level1Tick, bool) {
	if ob.GetTime() == nil {
		return marketdata.Level1Tick{}, false
	}
	tick := q[key]
	tick.DateTime = ob.GetTime().AsTime().UTC()
	if bids := ob.GetBids(); len(bids) > 0 {
		tick.Bid = quotationToFloat(bids[0].GetPrice())
		tick.BidSize = float64(bids[0].GetQuantity())
	}
	if asks := ob.GetAsks(); len(asks) > 0 {
		tick.Ask = quotationToFloat(asks[0].GetPrice())
		tick.AskSize = float64(asks[0].GetQuantity())
	}
	q[key] = tick
	return tick, true
}

func (q quoteBook) applyTrade(key string, tr *pb.Trade) (marketdata.Level1Tick, bool) {
	if tr.GetTime() == nil {
		return marketdata.Level1Tick{}, false
	}
	tick := q[key]
	tick.DateTime = tr.GetTime().AsTime().UTC()
	tick.Last = quotationToFloat(tr.GetPrice())
	tick.LastSize = float64(tr.GetQuantity())
	q[key] = tick
	return tick, true
}
