package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/infrastructure/provider/invest"
)

type instrumentEntry struct {
	Ticker string `json:"ticker"`

	// Invest API instrument uid or FIGI.
	ID string `json:"id"`
}

func readInstruments(path string) ([]*refdata.Instrument, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}
	var payload struct {
		Instruments []instrumentEntry `json:"instruments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	instruments := make([]*refdata.Instrument, 0, len(payload.Instruments))
	for _, entry := range payload.Instruments {
		ticker := refdata.NormalizeTicker(entry.Ticker)
		id := strings.TrimSpace(entry.ID)
		if ticker == "" {
			continue
		}
		inst := &refdata.Instrument{Ticker: ticker}
		if id != "" {
			inst.ExtendedProperties.Set(invest.InstrumentUIDKey, refdata.StringValue(id))
		}
		instruments = append(instruments, inst)
	}
	if len(instruments) == 0 {
		return nil, errors.New("instruments list is empty")
	}
	return instruments, nil
}
