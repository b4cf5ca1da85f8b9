package persistence

import (
	"fmt"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/jackc/pgx/v5"
)

// entityKind selects the country or instrument side of the fundamental
// association tables.
type entityKind string

const (
	kindCountry    entityKind = "Country"
	kindInstrument entityKind = "Instrument"
)

var entityKinds = []entityKind{kindCountry, kindInstrument}

// column is the entity key column of the association table.
func (k entityKind) column() string {
	if k == kindCountry {
		return "country_id"
	}
	return "ticker"
}

func (k entityKind) columnType() string {
	if k == kindCountry {
		return "uuid"
	}
	return "varchar(64)"
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func associationTable(provider string, kind entityKind) string {
	return quote(provider + string(kind) + "FundamentalAssociations")
}

func valueTable(provider string, kind entityKind) string {
	return quote(provider + string(kind) + "FundamentalValues")
}

// priceTable names the per-provider table of a resolution, for example
// "InvestDataMinute".
func priceTable(provider string, resolution marketdata.Resolution) (string, error) {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return "", err
	}
	suffix, err := resolution.TableSuffix()
	if err != nil {
		return "", err
	}
	return quote(provider + "Data" + suffix), nil
}

// providerDDL lists the statements creating every per-provider table.
func providerDDL(provider string) ([]string, error) {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return nil, err
	}
	var stmts []string
	for _, kind := range entityKinds {
		assoc := associationTable(provider, kind)
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id uuid PRIMARY KEY,
				fundamental_id uuid NOT NULL,
				%s %s NOT NULL,
				UNIQUE (fundamental_id, %s)
			)`, assoc, kind.column(), kind.columnType(), kind.column()),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				association_id uuid NOT NULL,
				date_time timestamptz NOT NULL,
				value double precision NOT NULL,
				PRIMARY KEY (association_id, date_time)
			)`, valueTable(provider, kind)),
		)
	}
	for _, resolution := range marketdata.Resolutions {
		table, err := priceTable(provider, resolution)
		if err != nil {
			return nil, err
		}
		columns := `open double precision NOT NULL,
				high double precision NOT NULL,
				low double precision NOT NULL,
				close double precision NOT NULL,
				volume double precision NOT NULL`
		if !resolution.IsBar() {
			columns = `bid double precision NOT NULL,
				bid_size double precision NOT NULL,
				ask double precision NOT NULL,
				ask_size double precision NOT NULL,
				last double precision NOT NULL,
				last_size double precision NOT NULL`
		}
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				ticker varchar(64) NOT NULL,
				date_time timestamptz NOT NULL,
				%s,
				synthetic boolean NOT NULL DEFAULT false,
				PRIMARY KEY (ticker, date_time)
			)`, table, columns))
	}
	return stmts, nil
}
