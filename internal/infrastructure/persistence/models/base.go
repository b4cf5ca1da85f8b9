// Package models declares the structural tables of the reference-data
// store. They are migrated with gorm; rows are read and written with pgx.
package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel carries the columns shared by every uuid-keyed entity table.
type BaseModel struct {
	ID         uuid.UUID `gorm:"primaryKey;column:id;type:uuid"`
	Attributes int       `gorm:"column:attributes;type:integer;not null;default:3"`
	Tag        string    `gorm:"column:tag;type:text;not null;default:'{}'"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;default:CURRENT_TIMESTAMP"`
}

// All lists the structural models in migration order.
func All() []any {
	return []any{
		&DataProviderModel{},
		&CountryModel{},
		&ExchangeModel{},
		&HolidayModel{},
		&SessionModel{},
		&InstrumentGroupModel{},
		&InstrumentModel{},
		&InstrumentSecondaryExchangeModel{},
		&InstrumentGroupInstrumentModel{},
		&FundamentalModel{},
		&TranslationModel{},
	}
}
