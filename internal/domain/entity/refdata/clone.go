package refdata

import "slices"

func (c *Country) Clone() *Country {
	out := *c
	out.Tag = c.Tag.Clone()
	out.ExchangeIDs = slices.Clone(c.ExchangeIDs)
	out.HolidayIDs = slices.Clone(c.HolidayIDs)
	return &out
}

func (e *Exchange) Clone() *Exchange {
	out := *e
	out.Tag = e.Tag.Clone()
	out.AlternateNames = slices.Clone(e.AlternateNames)
	out.SessionIDs = slices.Clone(e.SessionIDs)
	out.HolidayIDs = slices.Clone(e.HolidayIDs)
	out.InstrumentTickers = slices.Clone(e.InstrumentTickers)
	out.SecondaryTickers = slices.Clone(e.SecondaryTickers)
	return &out
}

func (h *Holiday) Clone() *Holiday {
	out := *h
	out.Tag = h.Tag.Clone()
	return &out
}

func (s *Session) Clone() *Session {
	out := *s
	out.Tag = s.Tag.Clone()
	return &out
}

func (i *Instrument) Clone() *Instrument {
	out := *i
	out.Tag = i.Tag.Clone()
	out.ExtendedProperties = i.ExtendedProperties.Clone()
	out.AlternateTickers = slices.Clone(i.AlternateTickers)
	out.SecondaryExchangeIDs = slices.Clone(i.SecondaryExchangeIDs)
	out.GroupIDs = slices.Clone(i.GroupIDs)
	return &out
}

func (g *InstrumentGroup) Clone() *InstrumentGroup {
	out := *g
	out.Tag = g.Tag.Clone()
	out.AlternateNames = slices.Clone(g.AlternateNames)
	out.ChildIDs = slices.Clone(g.ChildIDs)
	out.InstrumentTickers = slices.Clone(g.InstrumentTickers)
	return &out
}

func (f *Fundamental) Clone() *Fundamental {
	out := *f
	out.Tag = f.Tag.Clone()
	return &out
}

func (c *CountryFundamental) Clone() *CountryFundamental {
	out := *c
	out.Values = slices.Clone(c.Values)
	return &out
}

func (i *InstrumentFundamental) Clone() *InstrumentFundamental {
	out := *i
	out.Values = slices.Clone(i.Values)
	return &out
}
