package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	body := []byte(`{"provider":"Invest","ticker":"SBER","resolution":"minute",
		"bars":[{"date_time":"2024-01-02T10:00:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":100}]}`)

	msg, err := decodeMessage(streamBars, body)
	require.NoError(t, err)
	assert.Equal(t, "SBER", msg.Ticker)
	require.Len(t, msg.Bars, 1)
	assert.Equal(t, 1.5, msg.Bars[0].Close)
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	cases := map[string]struct {
		stream streamType
		body   string
	}{
		"not json":          {streamBars, `{`},
		"missing ticker":    {streamBars, `{"resolution":"minute","bars":[{"close":1}]}`},
		"bad resolution":    {streamBars, `{"ticker":"SBER","resolution":"fortnight","bars":[{"close":1}]}`},
		"ticks at minute":   {streamTicks, `{"ticker":"SBER","resolution":"minute","ticks":[{"bid":1}]}`},
		"bars on tick feed": {streamTicks, `{"ticker":"SBER","resolution":"minute","bars":[{"close":1}]}`},
		"empty":             {streamBars, `{"ticker":"SBER","resolution":"minute"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeMessage(tc.stream, []byte(tc.body))
			assert.ErrorIs(t, err, errMalformed)
		})
	}
}
