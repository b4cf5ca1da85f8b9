package main

import (
	"os"
	"path/filepath"
	"testing"

	"marketgraph/internal/infrastructure/provider/invest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInstruments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"instruments":[
		{"ticker":" sber ","id":"BBG004730N88"},
		{"ticker":"","id":"ignored"},
		{"ticker":"GAZP"}
	]}`), 0o600))

	instruments, err := readInstruments(path)
	require.NoError(t, err)
	require.Len(t, instruments, 2)
	assert.Equal(t, "SBER", instruments[0].Ticker)
	uid, ok := instruments[0].ExtendedProperties.Get(invest.InstrumentUIDKey)
	require.True(t, ok)
	assert.Equal(t, "BBG004730N88", uid.Str)
	_, ok = instruments[1].ExtendedProperties.Get(invest.InstrumentUIDKey)
	assert.False(t, ok)
}

func TestReadInstrumentsRejectsEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruments.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"instruments":[]}`), 0o600))

	_, err := readInstruments(path)
	assert.EqualError(t, err, "instruments list is empty")
}
