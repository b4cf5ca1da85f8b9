package refdata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagParseKeepsKinds(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var tag Tag
	tag.Set("sector", StringValue("tech"))
	tag.Set("lots", IntValue(10))
	tag.Set("weight", FloatValue(0.25))
	tag.Set("active", BoolValue(true))
	tag.Set("listed", TimeValue(at))
	assert.True(t, tag.Dirty())

	parsed, err := ParseTag(tag.Bytes())
	require.NoError(t, err)
	assert.False(t, parsed.Dirty())
	assert.Equal(t, []string{"active", "listed", "lots", "sector", "weight"}, parsed.Keys())

	lots, ok := parsed.Get("lots")
	require.True(t, ok)
	assert.Equal(t, TagInt, lots.Kind)
	assert.Equal(t, int64(10), lots.Int)

	listed, _ := parsed.Get("listed")
	assert.True(t, listed.Time.Equal(at))
}

func TestTagSetSameValueStaysClean(t *testing.T) {
	tag, err := ParseTag([]byte(`{"a":{"type":"string","value":"x"}}`))
	require.NoError(t, err)

	tag.Set("a", StringValue("x"))
	assert.False(t, tag.Dirty())
	tag.Delete("missing")
	assert.False(t, tag.Dirty())
	tag.Delete("a")
	assert.True(t, tag.Dirty())
}

func TestTagRejectsUnknownKind(t *testing.T) {
	_, err := ParseTag([]byte(`{"a":{"type":"blob","value":"x"}}`))
	assert.Error(t, err)

	var holder struct {
		Tag Tag `json:"tag"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tag":{}}`), &holder))
	assert.Equal(t, 0, holder.Tag.Len())
}
