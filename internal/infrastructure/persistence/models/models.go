package models

import (
	"time"

	"github.com/google/uuid"
)

type DataProviderModel struct {
	Name      string    `gorm:"primaryKey;column:name;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;default:CURRENT_TIMESTAMP"`
}

func (DataProviderModel) TableName() string {
	return "data_providers"
}

type CountryModel struct {
	BaseModel
	IsoCode string `gorm:"column:iso_code;type:varchar(8);not null;uniqueIndex"`
}

func (CountryModel) TableName() string {
	return "countries"
}

type ExchangeModel struct {
	BaseModel
	CountryID            uuid.UUID `gorm:"column:country_id;type:uuid;not null;index"`
	Name                 string    `gorm:"column:name;type:varchar(255);not null"`
	AlternateNames       []string  `gorm:"column:alternate_names;type:text[];not null;default:'{}'"`
	TimeZone             string    `gorm:"column:time_zone;type:varchar(64);not null"`
	URL                  string    `gorm:"column:url;type:varchar"`
	LogoID               uuid.UUID `gorm:"column:logo_id;type:uuid"`
	DefaultPriceDecimals int       `gorm:"column:default_price_decimals;type:integer;not null;default:2"`
	DefaultMinMovement   float64   `gorm:"column:default_min_movement;type:double precision;not null;default:1"`
	DefaultBigPointValue float64   `gorm:"column:default_big_point_value;type:double precision;not null;default:1"`
}

func (ExchangeModel) TableName() string {
	return "exchanges"
}

type HolidayModel struct {
	BaseModel
	Scope       string    `gorm:"column:scope;type:varchar(16);not null"`
	ParentID    uuid.UUID `gorm:"column:parent_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Type        string    `gorm:"column:type;type:varchar(16);not null"`
	Month       int       `gorm:"column:month;type:smallint;not null"`
	DayOfMonth  int       `gorm:"column:day_of_month;type:smallint;not null;default:0"`
	DayOfWeek   int       `gorm:"column:day_of_week;type:smallint;not null;default:0"`
	WeekOfMonth int       `gorm:"column:week_of_month;type:smallint;not null;default:0"`
	MoveWeekend string    `gorm:"column:move_weekend;type:varchar(32);not null;default:'none'"`
}

func (HolidayModel) TableName() string {
	return "holidays"
}

// SessionModel stores start and end as seconds from midnight.
type SessionModel struct {
	BaseModel
	ExchangeID   uuid.UUID `gorm:"column:exchange_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;type:varchar(255);not null"`
	DayOfWeek    int       `gorm:"column:day_of_week;type:smallint;not null"`
	StartSeconds int       `gorm:"column:start_seconds;type:integer;not null"`
	EndSeconds   int       `gorm:"column:end_seconds;type:integer;not null"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

type InstrumentGroupModel struct {
	BaseModel
	ParentID       *uuid.UUID `gorm:"column:parent_id;type:uuid;index"`
	Name           string     `gorm:"column:name;type:varchar(255);not null"`
	AlternateNames []string   `gorm:"column:alternate_names;type:text[];not null;default:'{}'"`
	Description    string     `gorm:"column:description;type:text"`
	UserID         string     `gorm:"column:user_id;type:varchar(255)"`
}

func (InstrumentGroupModel) TableName() string {
	return "instrument_groups"
}

type InstrumentModel struct {
	Ticker             string     `gorm:"primaryKey;column:ticker;type:varchar(64)"`
	Attributes         int        `gorm:"column:attributes;type:integer;not null;default:3"`
	Tag                string     `gorm:"column:tag;type:text;not null;default:'{}'"`
	AlternateTickers   []string   `gorm:"column:alternate_tickers;type:text[];not null;default:'{}'"`
	Type               string     `gorm:"column:type;type:varchar(16);not null"`
	Name               string     `gorm:"column:name;type:varchar(255)"`
	Description        string     `gorm:"column:description;type:text"`
	PrimaryExchangeID  uuid.UUID  `gorm:"column:primary_exchange_id;type:uuid;not null;index"`
	InceptionDate      *time.Time `gorm:"column:inception_date;type:timestamptz"`
	PriceDecimals      int        `gorm:"column:price_decimals;type:integer;not null;default:2"`
	MinMovement        float64    `gorm:"column:min_movement;type:double precision;not null;default:1"`
	BigPointValue      float64    `gorm:"column:big_point_value;type:double precision;not null;default:1"`
	ExtendedProperties string     `gorm:"column:extended_properties;type:text;not null;default:'{}'"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;type:timestamptz;default:CURRENT_TIMESTAMP"`
}

func (InstrumentModel) TableName() string {
	return "instruments"
}

type InstrumentSecondaryExchangeModel struct {
	Ticker     string    `gorm:"primaryKey;column:ticker;type:varchar(64)"`
	ExchangeID uuid.UUID `gorm:"primaryKey;column:exchange_id;type:uuid;index"`
}

func (InstrumentSecondaryExchangeModel) TableName() string {
	return "instrument_secondary_exchanges"
}

type InstrumentGroupInstrumentModel struct {
	GroupID uuid.UUID `gorm:"primaryKey;column:group_id;type:uuid"`
	Ticker  string    `gorm:"primaryKey;column:ticker;type:varchar(64);index"`
}

func (InstrumentGroupInstrumentModel) TableName() string {
	return "instrument_group_instruments"
}

type FundamentalModel struct {
	BaseModel
	Name            string `gorm:"column:name;type:varchar(255);not null"`
	Description     string `gorm:"column:description;type:text"`
	Category        string `gorm:"column:category;type:varchar(16);not null"`
	ReleaseInterval string `gorm:"column:release_interval;type:varchar(16);not null;default:'unknown'"`
}

func (FundamentalModel) TableName() string {
	return "fundamentals"
}

// TranslationModel keys a localized text by entity, field and locale.
// The entity key is the id of uuid-keyed entities or an instrument ticker.
type TranslationModel struct {
	EntityKey string `gorm:"primaryKey;column:entity_key;type:varchar(64)"`
	Field     string `gorm:"primaryKey;column:field;type:varchar(32)"`
	Locale    string `gorm:"primaryKey;column:locale;type:varchar(35);index"`
	Value     string `gorm:"column:value;type:text;not null"`
}

func (TranslationModel) TableName() string {
	return "translations"
}
